package output

import (
	"image"

	"deedles.dev/wlsurf/surface"
	"golang.org/x/image/draw"
)

// ImageHandle is a buffer handle whose pixels can be read.
type ImageHandle interface {
	surface.BufferHandle
	Image() (image.Image, bool)
	Opaque() bool
}

// View is one placement of a surface on an Output. It implements
// surface.View, holding a reference to the surface's current buffer
// for as long as it might need to draw it.
type View struct {
	output  *Output
	surface *surface.Surface
	ref     *surface.BufferRef
	pos     image.Point
	cancel  func()
}

func (v *View) Surface() *surface.Surface {
	return v.surface
}

func (v *View) Position() image.Point {
	return v.pos
}

func (v *View) SetPosition(pos image.Point) {
	v.pos = pos
	v.output.RequestRepaint()
}

// Attach implements surface.View.
func (v *View) Attach(ref *surface.BufferRef) {
	v.ref.Release()
	v.ref = ref
}

// SurfaceDestroyed implements surface.View.
func (v *View) SurfaceDestroyed() {
	v.Remove()
}

// Remove takes the view off its output and lets go of its buffer.
func (v *View) Remove() {
	if v.cancel == nil {
		return
	}

	v.cancel()
	v.cancel = nil
	v.surface.RemoveView(v)
	v.ref.Release()
	v.ref = nil
	v.output.removeView(v)
}

func (v *View) handleEvent(ev surface.Event) {
	switch ev := ev.(type) {
	case surface.OffsetEvent:
		v.pos = v.pos.Add(ev.Offset)
	case surface.UnmappedEvent, surface.MappedEvent:
		v.output.RequestRepaint()
	}
}

func (v *View) draw(dst draw.Image) {
	if !v.surface.Mapped() {
		return
	}

	handle, ok := v.ref.Handle().(ImageHandle)
	if !ok {
		return
	}
	img, ok := handle.Image()
	if !ok {
		return
	}

	op := draw.Over
	if handle.Opaque() {
		op = draw.Src
	}
	draw.Copy(dst, v.pos, img, img.Bounds(), op, nil)
}
