// Package output is a software output: a framebuffer that surfaces are
// composited into whenever one of them asks for a repaint.
package output

import (
	"image"
	"image/color"

	"deedles.dev/wlsurf/internal/debug"
	"deedles.dev/wlsurf/internal/xslices"
	"deedles.dev/wlsurf/surface"
	"github.com/charmbracelet/log"
	"golang.org/x/image/draw"
)

// FrameHooks are the render loop hooks of whatever owns the surfaces.
type FrameHooks interface {
	FrameStarted()
	SendFrameCallbacks(time uint32) int
}

// Options configure an Output.
type Options struct {
	Width, Height int
	Portrait      bool
	Background    color.Color

	// Logger is the parent logger. If nil, debug.Logger is used.
	Logger *log.Logger
}

// Output implements surface.Output and surface.OrientationSource.
type Output struct {
	opts    Options
	logger  *log.Logger
	fb      *image.RGBA
	repaint bool
	views   []*View
}

func New(opts Options) *Output {
	logger := opts.Logger
	if logger == nil {
		logger = debug.Logger
	}
	if opts.Background == nil {
		opts.Background = color.Black
	}

	return &Output{
		opts:   opts,
		logger: logger.With("output", image.Pt(opts.Width, opts.Height)),
		fb:     image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}
}

// RequestRepaint implements surface.Output.
func (o *Output) RequestRepaint() {
	o.repaint = true
}

// NeedsRepaint reports whether a repaint has been requested since the
// last one.
func (o *Output) NeedsRepaint() bool {
	return o.repaint
}

// NativeOrientation implements surface.OrientationSource.
func (o *Output) NativeOrientation() surface.Orientation {
	if o.opts.Portrait {
		return surface.OrientationPortrait
	}
	return surface.OrientationLandscape
}

// Image returns the framebuffer.
func (o *Output) Image() *image.RGBA {
	return o.fb
}

// Show makes s visible on the output at pos and makes the output the
// surface's primary output.
func (o *Output) Show(s *surface.Surface, pos image.Point) *View {
	v := View{output: o, surface: s, pos: pos}
	v.cancel = s.Listen(v.handleEvent)
	o.views = append(o.views, &v)

	s.AddView(&v)
	s.SetPrimaryOutput(o)
	o.RequestRepaint()

	return &v
}

// Views returns the output's views, bottom to top.
func (o *Output) Views() []*View {
	return append([]*View(nil), o.views...)
}

func (o *Output) removeView(v *View) {
	o.views, _ = xslices.Remove(o.views, v)
	o.RequestRepaint()
}

// Frame runs one iteration of the render loop if a repaint has been
// requested: it tells hooks that a frame has started, composites every
// view, and then sends frame callbacks with the given time. It reports
// whether a frame was drawn.
func (o *Output) Frame(hooks FrameHooks, time uint32) bool {
	if !o.repaint {
		return false
	}

	hooks.FrameStarted()
	o.Repaint()
	n := hooks.SendFrameCallbacks(time)
	o.logger.Debug("frame", "time", time, "views", len(o.views), "callbacks", n)

	return true
}

// Repaint redraws the framebuffer from scratch.
func (o *Output) Repaint() {
	o.repaint = false

	draw.Draw(o.fb, o.fb.Bounds(), image.NewUniform(o.opts.Background), image.Point{}, draw.Src)
	for _, v := range o.views {
		v.draw(o.fb)
	}
}
