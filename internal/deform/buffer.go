package deform

// Buffer is a flat x,y,z position buffer with a dirty flag for the renderer.
// The consumer uploads Positions and then calls MarkClean.
type Buffer struct {
	positions []float32
	dirty     bool
}

// Positions returns the live buffer. It is overwritten on the next update.
func (b *Buffer) Positions() []float32 {
	return b.positions
}

// Dirty reports whether the buffer changed since the last MarkClean.
func (b *Buffer) Dirty() bool {
	return b.dirty
}

// MarkClean clears the dirty flag after upload.
func (b *Buffer) MarkClean() {
	b.dirty = false
}

func (b *Buffer) markDirty() {
	b.dirty = true
}
