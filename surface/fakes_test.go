package surface

import "image"

type fakeHandle struct {
	name     string
	size     image.Point
	released int
}

func newHandle(name string, w, h int) *fakeHandle {
	return &fakeHandle{name: name, size: image.Pt(w, h)}
}

func (h *fakeHandle) Size() image.Point { return h.size }
func (h *fakeHandle) Release()          { h.released++ }

type fakeCallback struct {
	done      []uint32
	destroyed bool
}

func (cb *fakeCallback) Done(time uint32) {
	cb.done = append(cb.done, time)
	cb.destroyed = true
}

func (cb *fakeCallback) Destroy() {
	cb.destroyed = true
}

// fakeView behaves like a well-mannered view: it keeps the latest
// reference and releases the previous one.
type fakeView struct {
	ref       *BufferRef
	attached  int
	destroyed bool
}

func (v *fakeView) Attach(ref *BufferRef) {
	v.ref.Release()
	v.ref = ref
	v.attached++
}

func (v *fakeView) SurfaceDestroyed() {
	v.destroyed = true
}

// hoardingView keeps every reference it is given, simulating a
// renderer with frames in flight.
type hoardingView struct {
	refs []*BufferRef
}

func (v *hoardingView) Attach(ref *BufferRef) { v.refs = append(v.refs, ref) }
func (v *hoardingView) SurfaceDestroyed()     {}

func (v *hoardingView) releaseAll() {
	for _, ref := range v.refs {
		ref.Release()
	}
	v.refs = nil
}

type fakeOutput struct {
	repaints int
}

func (o *fakeOutput) RequestRepaint() { o.repaints++ }

type fakeReporter struct {
	code uint32
	msgs []string
}

func (r *fakeReporter) PostError(code uint32, msg string) {
	r.code = code
	r.msgs = append(r.msgs, msg)
}

type recorder struct {
	events []Event
}

func record(s *Surface) *recorder {
	var r recorder
	s.Listen(func(ev Event) { r.events = append(r.events, ev) })
	return &r
}

func (r *recorder) reset() {
	r.events = nil
}

func eventsOf[T Event](r *recorder) (evs []T) {
	for _, ev := range r.events {
		if ev, ok := ev.(T); ok {
			evs = append(evs, ev)
		}
	}
	return evs
}
