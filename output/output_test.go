package output

import (
	"image"
	"image/color"
	"io"
	"testing"

	"deedles.dev/wlsurf/surface"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imageHandle struct {
	img      *image.RGBA
	opaque   bool
	released int
}

func newImageHandle(w, h int, c color.Color) *imageHandle {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return &imageHandle{img: img}
}

func (h *imageHandle) Size() image.Point          { return h.img.Bounds().Size() }
func (h *imageHandle) Release()                   { h.released++ }
func (h *imageHandle) Image() (image.Image, bool) { return h.img, true }
func (h *imageHandle) Opaque() bool               { return h.opaque }

type hooks struct {
	started int
	sent    []uint32
	order   []string
}

func (h *hooks) FrameStarted() {
	h.started++
	h.order = append(h.order, "started")
}

func (h *hooks) SendFrameCallbacks(time uint32) int {
	h.sent = append(h.sent, time)
	h.order = append(h.order, "sent")
	return 0
}

func newTestOutput() *Output {
	return New(Options{Width: 20, Height: 20, Logger: log.New(io.Discard)})
}

func newTestSurface(o *Output) *surface.Surface {
	return surface.New(1, surface.Options{Orientation: o, Logger: log.New(io.Discard)})
}

var red = color.RGBA{R: 0xFF, A: 0xFF}

func TestComposite(t *testing.T) {
	o := newTestOutput()
	s := newTestSurface(o)
	v := o.Show(s, image.Pt(5, 5))

	h := newImageHandle(4, 4, red)
	require.NoError(t, s.Attach(h, 0, 0))
	require.NoError(t, s.Commit())
	assert.True(t, o.NeedsRepaint())

	var hk hooks
	require.True(t, o.Frame(&hk, 16))
	assert.Equal(t, []string{"started", "sent"}, hk.order)
	assert.Equal(t, []uint32{16}, hk.sent)
	assert.False(t, o.NeedsRepaint())
	assert.False(t, o.Frame(&hk, 32), "nothing requested a repaint")

	fb := o.Image()
	assert.Equal(t, red, fb.RGBAAt(5, 5))
	assert.Equal(t, red, fb.RGBAAt(8, 8))
	assert.Equal(t, color.RGBA{A: 0xFF}, fb.RGBAAt(9, 9))
	assert.Equal(t, color.RGBA{A: 0xFF}, fb.RGBAAt(4, 4))

	assert.Equal(t, image.Pt(5, 5), v.Position())
}

func TestViewHoldsBuffer(t *testing.T) {
	o := newTestOutput()
	s := newTestSurface(o)
	o.Show(s, image.Point{})

	a := newImageHandle(2, 2, red)
	b := newImageHandle(2, 2, red)
	require.NoError(t, s.Attach(a, 0, 0))
	require.NoError(t, s.Commit())
	assert.Equal(t, 2, s.Current().Buffer().Refs())

	require.NoError(t, s.Attach(b, 0, 0))
	require.NoError(t, s.Commit())
	assert.Equal(t, 1, a.released)
	assert.Equal(t, 2, s.Pool().Len())
}

func TestViewFollowsOffset(t *testing.T) {
	o := newTestOutput()
	s := newTestSurface(o)
	v := o.Show(s, image.Pt(2, 2))

	require.NoError(t, s.Attach(newImageHandle(2, 2, red), 3, 1))
	require.NoError(t, s.Commit())
	assert.Equal(t, image.Pt(5, 3), v.Position())
}

func TestSurfaceDestroyedRemovesView(t *testing.T) {
	o := newTestOutput()
	s := newTestSurface(o)
	o.Show(s, image.Point{})

	h := newImageHandle(2, 2, red)
	require.NoError(t, s.Attach(h, 0, 0))
	require.NoError(t, s.Commit())
	o.Repaint()

	s.Destroy()
	assert.Empty(t, o.Views())
	assert.Empty(t, s.Views())
	assert.True(t, o.NeedsRepaint())
	assert.Equal(t, surface.BufferDestroyed, s.Pool().Buffer(0).State())
	assert.Equal(t, 1, h.released)

	o.Repaint()
	assert.Equal(t, color.RGBA{A: 0xFF}, o.Image().RGBAAt(0, 0))
}

func TestUnmappedNotDrawn(t *testing.T) {
	o := newTestOutput()
	s := newTestSurface(o)
	o.Show(s, image.Point{})

	require.NoError(t, s.Attach(newImageHandle(2, 2, red), 0, 0))
	require.NoError(t, s.Commit())
	require.NoError(t, s.Attach(nil, 0, 0))
	require.NoError(t, s.Commit())

	o.Repaint()
	assert.Equal(t, color.RGBA{A: 0xFF}, o.Image().RGBAAt(0, 0))
}

func TestNativeOrientation(t *testing.T) {
	landscape := newTestOutput()
	assert.Equal(t, surface.OrientationLandscape, landscape.NativeOrientation())

	portrait := New(Options{Width: 10, Height: 20, Portrait: true, Logger: log.New(io.Discard)})
	s := surface.New(1, surface.Options{Orientation: portrait, Logger: log.New(io.Discard)})
	require.NoError(t, s.SetBufferTransform(surface.Transform90))
	assert.Equal(t, surface.OrientationInvertedLandscape, s.ContentOrientation())
}
