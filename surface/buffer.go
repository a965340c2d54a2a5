package surface

import (
	"fmt"
	"image"
)

// BufferState is the lifecycle state of a pooled Buffer.
type BufferState int

const (
	// BufferFree buffers wrap nothing and can be handed out by
	// BufferPool.Acquire.
	BufferFree BufferState = iota

	// BufferRegistered buffers wrap a client buffer that has been
	// attached but not yet committed.
	BufferRegistered

	// BufferCommitted buffers have been made current by a commit.
	BufferCommitted

	// BufferDestroyed buffers belonged to a surface that has been
	// destroyed and will never be reused.
	BufferDestroyed
)

func (s BufferState) String() string {
	switch s {
	case BufferFree:
		return "free"
	case BufferRegistered:
		return "registered"
	case BufferCommitted:
		return "committed"
	case BufferDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("BufferState(%d)", int(s))
	}
}

// Buffer is a reusable wrapper around a client buffer handle. Buffers
// are owned by a BufferPool and are never freed individually; once
// nothing refers to one any more it goes back to the free state.
type Buffer struct {
	pool   *BufferPool
	index  int
	handle BufferHandle
	state  BufferState

	// owned is set while the surface holds the buffer as its pending
	// or current buffer.
	owned bool
	refs  int

	destroyIfUnused bool
}

// Index returns the buffer's slot in its pool.
func (b *Buffer) Index() int {
	return b.index
}

// State returns the buffer's lifecycle state.
func (b *Buffer) State() BufferState {
	return b.state
}

// Handle returns the wrapped client buffer, or nil if there isn't one
// or the client has destroyed it.
func (b *Buffer) Handle() BufferHandle {
	return b.handle
}

// Size returns the size of the wrapped client buffer, or the zero
// point if there is none.
func (b *Buffer) Size() image.Point {
	if b.handle == nil {
		return image.Point{}
	}
	return b.handle.Size()
}

// Refs returns the number of outstanding BufferRefs.
func (b *Buffer) Refs() int {
	return b.refs
}

// DestroyPending reports whether the buffer will be destroyed instead
// of returning to the free state once it is unreferenced.
func (b *Buffer) DestroyPending() bool {
	return b.destroyIfUnused
}

// HandleDestroyed is called when the client destroys the underlying
// buffer. The wrapper forgets the handle and becomes free once
// nothing refers to it.
func (b *Buffer) HandleDestroyed() {
	b.handle = nil
	if b.pool.lost != nil {
		b.pool.lost(b)
	}
	b.maybeFree()
}

func (b *Buffer) init(handle BufferHandle) {
	b.handle = handle
	b.state = BufferRegistered
	b.owned = true
	b.refs = 0
}

func (b *Buffer) newRef() *BufferRef {
	if b != nil {
		b.refs++
	}
	return &BufferRef{buf: b}
}

func (b *Buffer) unref() {
	b.refs--
	if b.refs < 0 {
		panic("buffer reference count underflow")
	}
	b.maybeFree()
}

func (b *Buffer) maybeFree() {
	if b.owned || (b.refs > 0) || (b.state == BufferDestroyed) {
		return
	}

	if (b.state == BufferCommitted) && (b.handle != nil) && !b.pool.wraps(b.handle, b) {
		b.handle.Release()
	}
	b.handle = nil

	if b.destroyIfUnused {
		b.state = BufferDestroyed
		return
	}
	b.state = BufferFree
}

// BufferRef is a counted reference to a Buffer. A reference may also
// refer to no buffer at all, which is what a surface holds after a nil
// buffer is committed.
type BufferRef struct {
	buf      *Buffer
	released bool
}

// Buffer returns the referenced buffer, or nil.
func (r *BufferRef) Buffer() *Buffer {
	if (r == nil) || r.released {
		return nil
	}
	return r.buf
}

// HasBuffer reports whether r refers to a buffer.
func (r *BufferRef) HasBuffer() bool {
	return r.Buffer() != nil
}

// Handle returns the client buffer behind r, or nil.
func (r *BufferRef) Handle() BufferHandle {
	buf := r.Buffer()
	if buf == nil {
		return nil
	}
	return buf.handle
}

// Ref returns a new, independent reference to the same buffer.
func (r *BufferRef) Ref() *BufferRef {
	return r.Buffer().newRef()
}

// Release drops the reference. Releasing a reference more than once
// has no further effect.
func (r *BufferRef) Release() {
	if (r == nil) || r.released {
		return
	}
	r.released = true
	if r.buf != nil {
		r.buf.unref()
	}
}
