package server

import (
	"fmt"
	"image"

	"deedles.dev/wlsurf/internal/debug"
	"deedles.dev/wlsurf/internal/xslices"
	"deedles.dev/wlsurf/region"
	"deedles.dev/wlsurf/surface"
	"deedles.dev/wlsurf/wire"
	"github.com/charmbracelet/log"
)

const (
	compositorVersion = 5
	shmVersion        = 2
)

// Options configure a Compositor.
type Options struct {
	// Surface is passed to every surface the compositor creates. Its
	// Logger is replaced by the compositor's.
	Surface surface.Options

	// Logger is the parent logger. If nil, debug.Logger is used.
	Logger *log.Logger
}

// Compositor is the state shared by every client of a Server: the
// globals it advertises and the surfaces that clients have created.
type Compositor struct {
	opts    Options
	logger  *log.Logger
	globals []global
	serial  uint32

	surfaces  []*surfaceResource
	onSurface []func(*surface.Surface)
}

func NewCompositor(opts Options) *Compositor {
	logger := opts.Logger
	if logger == nil {
		logger = debug.Logger
	}

	c := Compositor{
		opts:   opts,
		logger: logger,
	}
	c.opts.Surface.Logger = logger
	c.globals = []global{
		{name: 1, iface: "wl_compositor", version: compositorVersion, bind: c.bindCompositor},
		{name: 2, iface: "wl_shm", version: shmVersion, bind: bindShm},
	}

	return &c
}

// NextSerial returns a new event serial.
func (c *Compositor) NextSerial() uint32 {
	c.serial++
	return c.serial
}

// OnSurface registers f to be called for every new surface, before the
// surface handles any request.
func (c *Compositor) OnSurface(f func(*surface.Surface)) {
	c.onSurface = append(c.onSurface, f)
}

// Surfaces returns every live surface in creation order.
func (c *Compositor) Surfaces() []*surface.Surface {
	surfaces := make([]*surface.Surface, 0, len(c.surfaces))
	for _, r := range c.surfaces {
		surfaces = append(surfaces, r.surface)
	}
	return surfaces
}

// FrameStarted tells every surface that a frame has begun.
func (c *Compositor) FrameStarted() {
	for _, r := range c.surfaces {
		r.surface.FrameStarted()
	}
}

// SendFrameCallbacks sends every eligible frame callback and returns
// how many were sent.
func (c *Compositor) SendFrameCallbacks(time uint32) (n int) {
	for _, r := range c.surfaces {
		n += r.surface.SendFrameCallbacks(time)
	}
	return n
}

// SetRole gives s a role on behalf of whatever protocol extension is
// assigning it. A conflicting role is reported to the client that owns
// s as a protocol error with the given code.
func (c *Compositor) SetRole(s *surface.Surface, role *surface.Role, code uint32) error {
	for _, r := range c.surfaces {
		if r.surface == s {
			return s.SetRole(role, r, code)
		}
	}
	return s.SetRole(role, nil, code)
}

func (c *Compositor) addSurface(r *surfaceResource) {
	c.surfaces = append(c.surfaces, r)
	for _, f := range c.onSurface {
		f(r.surface)
	}
}

func (c *Compositor) removeSurface(r *surfaceResource) {
	c.surfaces, _ = xslices.Remove(c.surfaces, r)
}

func (c *Compositor) bindCompositor(client *Client, id, version uint32) error {
	return client.AddNew(&compositorResource{
		resource:   resource{client: client, id: id, version: version},
		compositor: c,
	})
}

type compositorResource struct {
	resource
	compositor *Compositor
}

func (r *compositorResource) String() string {
	return fmt.Sprintf("wl_compositor@%v", r.id)
}

func (r *compositorResource) Delete() {}

func (r *compositorResource) MethodName(op uint16) string {
	switch op {
	case 0:
		return "create_surface"
	case 1:
		return "create_region"
	default:
		return "unknown"
	}
}

func (r *compositorResource) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		return r.createSurface(id)
	case 1:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		return r.client.AddNew(&regionResource{resource: resource{client: r.client, id: id, version: 1}})
	default:
		return wire.UnknownOpError{Interface: "wl_compositor", Op: msg.Op()}
	}
}

func (r *compositorResource) createSurface(id uint32) error {
	err := r.client.checkNewID(id)
	if err != nil {
		return err
	}

	s := surfaceResource{
		resource:   resource{client: r.client, id: id, version: r.version},
		compositor: r.compositor,
		surface:    surface.New(id, r.compositor.opts.Surface),
	}
	r.client.Add(&s)
	r.compositor.addSurface(&s)
	return nil
}

type regionResource struct {
	resource
	region region.Region
}

func (r *regionResource) String() string {
	return fmt.Sprintf("wl_region@%v", r.id)
}

func (r *regionResource) Delete() {}

func (r *regionResource) MethodName(op uint16) string {
	switch op {
	case 0:
		return "destroy"
	case 1:
		return "add"
	case 2:
		return "subtract"
	default:
		return "unknown"
	}
}

func (r *regionResource) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		r.client.Delete(r.id)
		return nil
	case 1, 2:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}

		rect := image.Rect(int(x), int(y), int(x)+int(w), int(y)+int(h))
		if msg.Op() == 1 {
			r.region = r.region.Union(rect)
			return nil
		}
		r.region = r.region.Subtract(rect)
		return nil
	default:
		return wire.UnknownOpError{Interface: "wl_region", Op: msg.Op()}
	}
}
