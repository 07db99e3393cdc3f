// Package input turns SDL2 events into viewer events and actions.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType classifies a processed event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventMouseDrag
	EventMouseWheel
	EventClick // left button released without dragging
)

// clickSlop is how far, in pixels, the mouse may move during a click.
const clickSlop = 4

// Action is what a key press asks the viewer to do.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionRipple     // ripple at a random vertex
	ActionReset      // restore original positions
	ActionStopRipple // back to ambient breathing
	ActionToggleHull // show or hide the translucent faces
	ActionToggleSpin // pause the camera orbit
	ActionScreenshot
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Width  int
	Height int
	DX, DY int
	MouseX int
	MouseY int
	Wheel  float32
}

// Input collects the events of one frame.
type Input struct {
	events   []Event
	dragging bool
	moved    int // pixels travelled since the button went down
}

// New creates an input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Update polls SDL events. It returns true when the window was closed.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit})
			return true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.events = append(i.events, Event{
					Type:   EventWindowResize,
					Width:  int(e.Data1),
					Height: int(e.Data2),
				})
			}

		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Repeat == 0 {
				i.events = append(i.events, Event{
					Type: EventKeyDown,
					Key:  e.Keysym.Scancode,
				})
			}

		case *sdl.MouseButtonEvent:
			if e.Button != sdl.BUTTON_LEFT {
				continue
			}
			if e.Type == sdl.MOUSEBUTTONDOWN {
				i.dragging = true
				i.moved = 0
				continue
			}
			if i.dragging && i.moved <= clickSlop {
				i.events = append(i.events, Event{
					Type:   EventClick,
					MouseX: int(e.X),
					MouseY: int(e.Y),
				})
			}
			i.dragging = false

		case *sdl.MouseMotionEvent:
			if i.dragging {
				i.moved += abs(int(e.XRel)) + abs(int(e.YRel))
				i.events = append(i.events, Event{
					Type: EventMouseDrag,
					DX:   int(e.XRel),
					DY:   int(e.YRel),
				})
			}

		case *sdl.MouseWheelEvent:
			i.events = append(i.events, Event{
				Type:  EventMouseWheel,
				Wheel: float32(e.Y),
			})
		}
	}

	return false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// ActionFor maps a key to its viewer action.
func ActionFor(key sdl.Scancode) Action {
	switch key {
	case sdl.SCANCODE_ESCAPE, sdl.SCANCODE_Q:
		return ActionQuit
	case sdl.SCANCODE_SPACE:
		return ActionRipple
	case sdl.SCANCODE_R:
		return ActionReset
	case sdl.SCANCODE_S:
		return ActionStopRipple
	case sdl.SCANCODE_H:
		return ActionToggleHull
	case sdl.SCANCODE_P:
		return ActionToggleSpin
	case sdl.SCANCODE_F12:
		return ActionScreenshot
	default:
		return ActionNone
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
