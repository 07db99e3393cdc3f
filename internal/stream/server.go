// Package stream serves deformation frames to browsers over websockets and
// forwards ripple/reset commands from them back to the frame loop.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	sendBuffer     = 4
	commandBuffer  = 16
	maxMessageSize = 4096
)

// CommandKind is what a client asked the engine to do.
type CommandKind string

const (
	CommandRipple CommandKind = "ripple"
	CommandReset  CommandKind = "reset"
	CommandStop   CommandKind = "stop"
)

// Command is a client request. Origin is -1 for a random ripple origin.
type Command struct {
	Kind   CommandKind
	Origin int
}

// Frame is one published position buffer.
type Frame struct {
	Time      float32
	Mode      string
	Positions []float32
}

type topologyMessage struct {
	Type        string   `json:"type"`
	VertexCount int      `json:"vertexCount"`
	Edges       []uint32 `json:"edges"`
}

type frameMessage struct {
	Type      string    `json:"type"`
	Time      float32   `json:"time"`
	Mode      string    `json:"mode"`
	Positions []float32 `json:"positions"`
}

type commandMessage struct {
	Type   string `json:"type"`
	Origin *int   `json:"origin,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server broadcasts frames to every connected client.
type Server struct {
	log         *zap.Logger
	upgrader    websocket.Upgrader
	topology    []byte
	vertexCount int
	commands    chan Command

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a server for a mesh with the given vertex count and line
// indices. The topology message is encoded once here.
func New(log *zap.Logger, vertexCount int, edges []uint32) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	topo, err := json.Marshal(topologyMessage{
		Type:        "topology",
		VertexCount: vertexCount,
		Edges:       edges,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding topology: %w", err)
	}
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		topology:    topo,
		vertexCount: vertexCount,
		commands:    make(chan Command, commandBuffer),
		clients:     make(map[*client]struct{}),
	}, nil
}

// Commands delivers client requests. The frame loop drains it between ticks.
func (s *Server) Commands() <-chan Command {
	return s.commands
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler returns the HTTP handler serving /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"clients":%d,"vertices":%d}`, s.ClientCount(), s.vertexCount)
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("stream server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.closeAll()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Publish encodes f and queues it for every client. Slow clients drop
// frames instead of stalling the frame loop. The positions slice is not
// retained.
func (s *Server) Publish(f Frame) error {
	data, err := json.Marshal(frameMessage{
		Type:      "frame",
		Time:      f.Time,
		Mode:      f.Mode,
		Positions: f.Positions,
	})
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.log.Debug("dropping frame for slow client", zap.String("remote", c.conn.RemoteAddr().String()))
		}
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	// Topology goes first so clients can index every following frame
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, s.topology); err != nil {
		s.log.Warn("sending topology failed", zap.Error(err))
		conn.Close()
		return
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Info("stream client connected", zap.String("remote", conn.RemoteAddr().String()))

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer s.remove(c)
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("stream read error", zap.Error(err))
			}
			return
		}

		// a bad message costs the client that message, not the connection
		var msg commandMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("ignoring malformed stream command", zap.Error(err))
			continue
		}
		cmd, err := parseCommand(msg)
		if err != nil {
			s.log.Warn("ignoring stream command", zap.Error(err))
			continue
		}
		select {
		case s.commands <- cmd:
		default:
			s.log.Warn("command queue full, dropping", zap.String("type", msg.Type))
		}
	}
}

func (s *Server) writePump(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug("stream write error", zap.Error(err))
			c.conn.Close()
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	s.log.Info("stream client disconnected", zap.String("remote", c.conn.RemoteAddr().String()))
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func parseCommand(msg commandMessage) (Command, error) {
	switch CommandKind(msg.Type) {
	case CommandRipple:
		origin := -1
		if msg.Origin != nil {
			origin = *msg.Origin
			if origin < 0 {
				return Command{}, fmt.Errorf("negative ripple origin %d", origin)
			}
		}
		return Command{Kind: CommandRipple, Origin: origin}, nil
	case CommandReset:
		return Command{Kind: CommandReset, Origin: -1}, nil
	case CommandStop:
		return Command{Kind: CommandStop, Origin: -1}, nil
	default:
		return Command{}, fmt.Errorf("unknown command type %q", msg.Type)
	}
}
