package surface

import (
	"image"

	"deedles.dev/wlsurf/internal/xslices"
	"deedles.dev/wlsurf/region"
)

// Event is a change in a surface's state. Events are delivered
// synchronously to every listener before the operation that caused
// them returns.
type Event interface {
	surfaceEvent()
}

// SizeChangedEvent is sent when a committed buffer changes the
// surface's size.
type SizeChangedEvent struct {
	Size image.Point
}

// DamagedEvent carries the damage of a newly committed buffer,
// clipped to the surface.
type DamagedEvent struct {
	Damage region.Region
}

// ConfigureEvent is sent whenever a commit changes the surface's
// content.
type ConfigureEvent struct {
	HasBuffer bool
}

// OffsetEvent is sent when the committed buffer was attached with a
// nonzero offset.
type OffsetEvent struct {
	Offset image.Point
}

// RedrawEvent is sent at the end of every commit.
type RedrawEvent struct{}

type MappedEvent struct{}

type UnmappedEvent struct{}

type OrientationChangedEvent struct {
	Orientation Orientation
}

type PrimaryOutputChangedEvent struct {
	New, Old Output
}

type TitleChangedEvent struct {
	Title string
}

type ClassNameChangedEvent struct {
	ClassName string
}

// PoolGrownEvent is sent when the buffer pool gains a slot.
type PoolGrownEvent struct {
	Size int
}

// DestroyedEvent is the last event a surface sends.
type DestroyedEvent struct{}

func (SizeChangedEvent) surfaceEvent()          {}
func (DamagedEvent) surfaceEvent()              {}
func (ConfigureEvent) surfaceEvent()            {}
func (OffsetEvent) surfaceEvent()               {}
func (RedrawEvent) surfaceEvent()               {}
func (MappedEvent) surfaceEvent()               {}
func (UnmappedEvent) surfaceEvent()             {}
func (OrientationChangedEvent) surfaceEvent()   {}
func (PrimaryOutputChangedEvent) surfaceEvent() {}
func (TitleChangedEvent) surfaceEvent()         {}
func (ClassNameChangedEvent) surfaceEvent()     {}
func (PoolGrownEvent) surfaceEvent()            {}
func (DestroyedEvent) surfaceEvent()            {}

// Listener receives a surface's events.
type Listener func(Event)

type listener struct {
	f Listener
}

// Listen registers f to receive the surface's events. The returned
// function unregisters it.
func (s *Surface) Listen(f Listener) (cancel func()) {
	lis := &listener{f: f}
	s.listeners = append(s.listeners, lis)
	return func() {
		s.listeners, _ = xslices.Remove(s.listeners, lis)
	}
}

func (s *Surface) emit(ev Event) {
	for _, lis := range s.listeners {
		lis.f(ev)
	}
}
