package surface

// DefaultPoolWarnThreshold is the pool size above which growth is
// reported as unusual.
const DefaultPoolWarnThreshold = 3

// BufferPool is a surface's collection of reusable Buffers. It only
// ever grows: slots are reused once free, and are reclaimed as a whole
// when the surface is destroyed.
type BufferPool struct {
	buffers   []*Buffer
	threshold int

	// grown is called after a new slot has been added. over is set
	// if the pool is now larger than its warning threshold.
	grown func(size int, over bool)

	// lost is called after the client has destroyed the handle of one
	// of the pool's buffers.
	lost func(b *Buffer)
}

// NewBufferPool returns an empty pool that reports growth past
// threshold to grown. grown may be nil.
func NewBufferPool(threshold int, grown func(size int, over bool)) *BufferPool {
	if threshold <= 0 {
		threshold = DefaultPoolWarnThreshold
	}
	return &BufferPool{
		threshold: threshold,
		grown:     grown,
	}
}

// Acquire returns a Buffer wrapping handle, reusing a free slot if
// there is one.
func (p *BufferPool) Acquire(handle BufferHandle) *Buffer {
	for _, b := range p.buffers {
		if (b.state == BufferFree) && !b.destroyIfUnused {
			b.init(handle)
			return b
		}
	}

	b := Buffer{pool: p, index: len(p.buffers)}
	b.init(handle)
	p.buffers = append(p.buffers, &b)

	if p.grown != nil {
		p.grown(len(p.buffers), len(p.buffers) > p.threshold)
	}

	return &b
}

// Disown drops the surface's ownership of b, for instance because a
// newer buffer was attached before b was ever committed. b becomes
// free once it is also unreferenced.
func (p *BufferPool) Disown(b *Buffer) {
	if (b == nil) || !b.owned {
		return
	}
	b.owned = false
	b.maybeFree()
}

// MarkCommitted records that b has become the surface's visible
// buffer.
func (p *BufferPool) MarkCommitted(b *Buffer) {
	if (b == nil) || (b.state == BufferDestroyed) {
		return
	}
	b.state = BufferCommitted
}

// DestroyAll flags every buffer to be destroyed rather than reused.
// Buffers that nothing refers to are destroyed immediately; the rest
// follow as their last references are released.
func (p *BufferPool) DestroyAll() {
	for _, b := range p.buffers {
		b.destroyIfUnused = true
		b.maybeFree()
	}
}

// Len returns the number of slots in the pool.
func (p *BufferPool) Len() int {
	return len(p.buffers)
}

// Free returns the number of free slots in the pool.
func (p *BufferPool) Free() int {
	var n int
	for _, b := range p.buffers {
		if b.state == BufferFree {
			n++
		}
	}
	return n
}

// Buffer returns the buffer in slot i.
func (p *BufferPool) Buffer(i int) *Buffer {
	return p.buffers[i]
}

// wraps reports whether some buffer other than except still wraps
// handle and is either owned by the surface or referenced by a view.
func (p *BufferPool) wraps(handle BufferHandle, except *Buffer) bool {
	for _, b := range p.buffers {
		if (b != except) && (b.handle == handle) && (b.owned || (b.refs > 0)) {
			return true
		}
	}
	return false
}
