// Package surface implements the compositor-side state of a
// wl_surface.
//
// A Surface accumulates the state a client submits between commits
// (attached buffer, damage, input region) and applies it all at once
// when the client commits. Buffers are wrapped in reusable Buffers
// from a per-surface BufferPool, and frame callbacks are held until
// the render loop reports that a committed frame has actually started
// presentation.
//
// A Surface is not safe for concurrent use. Requests, and the
// FrameStarted and SendFrameCallbacks hooks, must all be called from
// the same goroutine or otherwise be mutually excluded.
package surface

import (
	"errors"
	"image"

	"deedles.dev/wlsurf/internal/debug"
	"deedles.dev/wlsurf/internal/xslices"
	"deedles.dev/wlsurf/region"
	"github.com/charmbracelet/log"
)

// ErrDestroyed is returned by requests made on a destroyed surface.
var ErrDestroyed = errors.New("surface destroyed")

// Options configure a Surface. The zero value is usable.
type Options struct {
	// PoolWarnThreshold is the buffer pool size above which growth is
	// logged as a warning. Zero means DefaultPoolWarnThreshold.
	PoolWarnThreshold int

	// DeferOpaqueRegion makes SetOpaqueRegion take effect on the next
	// commit instead of immediately.
	DeferOpaqueRegion bool

	// Orientation reports the display's native orientation. If nil,
	// the display is assumed to be landscape.
	Orientation OrientationSource

	// Logger is the parent logger. If nil, debug.Logger is used.
	Logger *log.Logger
}

type pendingState struct {
	buffer        *Buffer
	offset        image.Point
	newlyAttached bool
	damage        region.Region
	input         region.Input

	opaque    region.Region
	opaqueSet bool
}

// Surface is the server-side state of one client surface.
type Surface struct {
	id     uint32
	opts   Options
	logger *log.Logger

	size          image.Point
	current       *BufferRef
	opaque        region.Region
	input         region.Region
	orientation   Orientation
	mapped        bool
	destroyed     bool
	role          *Role
	primaryOutput Output
	title         string
	className     string
	pointerPos    image.Point

	pending   pendingState
	pool      *BufferPool
	callbacks FrameCallbackQueue
	views     []View
	listeners []*listener
}

// New returns a new surface with the given protocol object ID.
func New(id uint32, opts Options) *Surface {
	logger := opts.Logger
	if logger == nil {
		logger = debug.Logger
	}

	s := Surface{
		id:     id,
		opts:   opts,
		logger: logger.With("surface", id),
	}
	s.pool = NewBufferPool(opts.PoolWarnThreshold, s.poolGrown)
	s.pool.lost = s.handleLost

	return &s
}

func (s *Surface) poolGrown(size int, over bool) {
	if over {
		s.logger.Warn("increased buffer pool size", "size", size, "title", s.title, "class", s.className)
	}
	s.emit(PoolGrownEvent{Size: size})
}

// handleLost unmaps the surface when the client destroys the buffer
// it is currently showing.
func (s *Surface) handleLost(b *Buffer) {
	if s.destroyed || (s.current.Buffer() != b) {
		return
	}
	s.setMapped(false)
}

// Attach sets the pending buffer. A buffer attached earlier in the
// same cycle is disowned. A nil handle removes the surface's content
// on the next commit.
func (s *Surface) Attach(handle BufferHandle, x, y int32) error {
	if s.destroyed {
		return ErrDestroyed
	}

	if s.pending.buffer != nil {
		s.pool.Disown(s.pending.buffer)
		s.pending.buffer = nil
	}
	if handle != nil {
		s.pending.buffer = s.pool.Acquire(handle)
	}
	s.pending.offset = image.Pt(int(x), int(y))
	s.pending.newlyAttached = true

	return nil
}

// Offset sets the pending buffer offset without attaching anything.
func (s *Surface) Offset(x, y int32) error {
	if s.destroyed {
		return ErrDestroyed
	}

	s.pending.offset = image.Pt(int(x), int(y))
	return nil
}

// Damage adds a rectangle, in surface coordinates, to the pending
// damage.
func (s *Surface) Damage(x, y, width, height int32) error {
	if s.destroyed {
		return ErrDestroyed
	}

	s.pending.damage = s.pending.damage.Union(image.Rect(
		int(x),
		int(y),
		int(x)+int(width),
		int(y)+int(height),
	))
	return nil
}

// SetOpaqueRegion replaces the opaque region. An empty region, which
// is what a null region from the client means, marks nothing opaque.
//
// The region takes effect immediately unless the surface was created
// with Options.DeferOpaqueRegion.
func (s *Surface) SetOpaqueRegion(r region.Region) error {
	if s.destroyed {
		return ErrDestroyed
	}

	if s.opts.DeferOpaqueRegion {
		s.pending.opaque = r
		s.pending.opaqueSet = true
		return nil
	}

	s.opaque = r
	return nil
}

// SetInputRegion replaces the pending input region. Pass
// region.Unbounded for a null region.
func (s *Surface) SetInputRegion(in region.Input) error {
	if s.destroyed {
		return ErrDestroyed
	}

	s.pending.input = in
	return nil
}

// Frame requests a completion notice for the next frame. res is sent
// the presentation time once a commit has made the request part of a
// frame and that frame has been presented.
func (s *Surface) Frame(res CallbackResource) (Token, error) {
	if s.destroyed {
		return 0, ErrDestroyed
	}

	return s.callbacks.Request(res), nil
}

// RemoveFrameCallback forgets a callback whose resource the client
// has destroyed on its own.
func (s *Surface) RemoveFrameCallback(token Token) bool {
	return s.callbacks.Remove(token)
}

// Commit applies the pending state.
func (s *Surface) Commit() error {
	if s.destroyed {
		return ErrDestroyed
	}

	if (s.pending.buffer != nil) || s.pending.newlyAttached {
		s.setBackBuffer(s.pending.buffer, s.pending.damage, s.pending.offset)
	}
	if s.pending.opaqueSet {
		s.opaque = s.pending.opaque
	}

	s.pending.buffer = nil
	s.pending.offset = image.Point{}
	s.pending.newlyAttached = false
	s.pending.damage = region.Region{}
	s.pending.opaque = region.Region{}
	s.pending.opaqueSet = false

	if buf := s.current.Buffer(); buf != nil {
		s.pool.MarkCommitted(buf)
	}

	s.callbacks.PromoteOnCommit()

	s.input = s.pending.input.Clip(s.rect())

	s.emit(RedrawEvent{})

	if s.primaryOutput != nil {
		s.primaryOutput.RequestRepaint()
	}

	return nil
}

// setBackBuffer makes buf the current buffer. buf may be nil.
func (s *Surface) setBackBuffer(buf *Buffer, damage region.Region, offset image.Point) {
	old := s.current
	s.current = buf.newRef()
	if old != nil {
		if prev := old.Buffer(); (prev != nil) && (prev != buf) {
			s.pool.Disown(prev)
		}
		old.Release()
	}

	if buf != nil {
		if buf.Handle() != nil {
			s.setSize(buf.Size())
		}

		damage = damage.Intersect(s.rect())
		if !damage.Empty() {
			s.emit(DamagedEvent{Damage: damage})
		}
	}

	for _, v := range s.views {
		v.Attach(s.current.Ref())
	}

	s.emit(ConfigureEvent{HasBuffer: s.current.HasBuffer()})
	if offset != (image.Point{}) {
		s.emit(OffsetEvent{Offset: offset})
	}

	s.setMapped(s.current.Handle() != nil)
}

func (s *Surface) setSize(size image.Point) {
	if size == s.size {
		return
	}

	s.opaque = region.Region{}
	s.size = size
	s.emit(SizeChangedEvent{Size: size})
}

func (s *Surface) setMapped(mapped bool) {
	if mapped == s.mapped {
		return
	}

	s.mapped = mapped
	if mapped {
		s.emit(MappedEvent{})
		return
	}
	s.emit(UnmappedEvent{})
}

// SetBufferTransform sets the orientation of the surface's content
// from a wl_output.transform value.
func (s *Surface) SetBufferTransform(t Transform) error {
	if s.destroyed {
		return ErrDestroyed
	}

	native := OrientationLandscape
	if s.opts.Orientation != nil {
		native = s.opts.Orientation.NativeOrientation()
	}

	old := s.orientation
	s.orientation = ContentOrientation(t, native)
	if s.orientation != old {
		s.emit(OrientationChangedEvent{Orientation: s.orientation})
	}
	return nil
}

// Destroy tears the surface down. Views are told first so that they
// stop using it, frame callbacks are destroyed without being sent, and
// every pooled buffer is destroyed as soon as nothing refers to it.
// Destroying a surface twice does nothing.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}

	for _, v := range s.views {
		v.SurfaceDestroyed()
	}
	s.views = nil

	s.destroyed = true
	s.callbacks.DestroyAll()

	s.pool.DestroyAll()
	if s.pending.buffer != nil {
		s.pool.Disown(s.pending.buffer)
		s.pending.buffer = nil
	}
	if buf := s.current.Buffer(); buf != nil {
		s.pool.Disown(buf)
	}
	s.current.Release()
	s.current = nil
	s.mapped = false

	s.emit(DestroyedEvent{})
	s.listeners = nil
}

// FrameStarted is called by the render loop when it starts presenting
// a frame. Every callback committed so far becomes eligible to be
// sent.
func (s *Surface) FrameStarted() {
	s.callbacks.Arm()
}

// SendFrameCallbacks sends time to every eligible frame callback.
func (s *Surface) SendFrameCallbacks(time uint32) int {
	return s.callbacks.Fire(time)
}

// AddView registers a view of the surface. The view is immediately
// attached to the current buffer, if there is one.
func (s *Surface) AddView(v View) {
	if s.destroyed {
		v.SurfaceDestroyed()
		return
	}

	s.views = append(s.views, v)
	if s.current != nil {
		v.Attach(s.current.Ref())
	}
}

// RemoveView unregisters a view.
func (s *Surface) RemoveView(v View) {
	s.views, _ = xslices.Remove(s.views, v)
}

// Views returns the surface's views.
func (s *Surface) Views() []View {
	return append([]View(nil), s.views...)
}

// SetPrimaryOutput sets the output that is asked to repaint after
// every commit.
func (s *Surface) SetPrimaryOutput(o Output) {
	if o == s.primaryOutput {
		return
	}

	old := s.primaryOutput
	s.primaryOutput = o
	s.emit(PrimaryOutputChangedEvent{New: o, Old: old})
}

func (s *Surface) PrimaryOutput() Output {
	return s.primaryOutput
}

func (s *Surface) SetTitle(title string) {
	if title == s.title {
		return
	}

	s.title = title
	s.emit(TitleChangedEvent{Title: title})
}

func (s *Surface) Title() string {
	return s.title
}

func (s *Surface) SetClassName(className string) {
	if className == s.className {
		return
	}

	s.className = className
	s.emit(ClassNameChangedEvent{ClassName: className})
}

func (s *Surface) ClassName() string {
	return s.className
}

// SetLastPointerPos records where, in surface coordinates, the pointer
// was last seen over the surface.
func (s *Surface) SetLastPointerPos(p image.Point) {
	s.pointerPos = p
}

func (s *Surface) LastPointerPos() image.Point {
	return s.pointerPos
}

// ID returns the surface's protocol object ID.
func (s *Surface) ID() uint32 {
	return s.id
}

// Size returns the size of the surface, which is the size of the last
// valid buffer committed to it.
func (s *Surface) Size() image.Point {
	return s.size
}

func (s *Surface) rect() image.Rectangle {
	return image.Rectangle{Max: s.size}
}

// Current returns the surface's current buffer, or nil. The returned
// reference belongs to the surface; call Ref on it to keep the buffer.
func (s *Surface) Current() *BufferRef {
	return s.current
}

func (s *Surface) OpaqueRegion() region.Region {
	return s.opaque
}

// InputRegion returns the effective input region, already clipped to
// the surface.
func (s *Surface) InputRegion() region.Region {
	return s.input
}

// PendingDamage returns the damage accumulated since the last commit.
func (s *Surface) PendingDamage() region.Region {
	return s.pending.damage
}

// PendingBuffer returns the buffer attached since the last commit, or
// nil.
func (s *Surface) PendingBuffer() *Buffer {
	return s.pending.buffer
}

func (s *Surface) ContentOrientation() Orientation {
	return s.orientation
}

// Mapped reports whether the surface currently shows a live client
// buffer.
func (s *Surface) Mapped() bool {
	return s.mapped
}

func (s *Surface) Destroyed() bool {
	return s.destroyed
}

// Pool returns the surface's buffer pool.
func (s *Surface) Pool() *BufferPool {
	return s.pool
}

// Callbacks returns the surface's frame callback queue.
func (s *Surface) Callbacks() *FrameCallbackQueue {
	return &s.callbacks
}
