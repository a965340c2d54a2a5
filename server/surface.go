package server

import (
	"errors"
	"fmt"

	"deedles.dev/wlsurf/region"
	"deedles.dev/wlsurf/surface"
	"deedles.dev/wlsurf/wire"
)

// surfaceResource is a wl_surface, backed by a surface.Surface.
type surfaceResource struct {
	resource
	compositor *Compositor
	surface    *surface.Surface
}

func (r *surfaceResource) String() string {
	return fmt.Sprintf("wl_surface@%v", r.id)
}

// Surface returns the state behind the resource.
func (r *surfaceResource) Surface() *surface.Surface {
	return r.surface
}

// PostError implements surface.ErrorReporter.
func (r *surfaceResource) PostError(code uint32, msg string) {
	r.client.PostError(&ProtocolError{Object: r, Code: code, Message: msg})
}

func (r *surfaceResource) Delete() {
	r.compositor.removeSurface(r)
	r.surface.Destroy()
}

func (r *surfaceResource) MethodName(op uint16) string {
	switch op {
	case 0:
		return "destroy"
	case 1:
		return "attach"
	case 2:
		return "damage"
	case 3:
		return "frame"
	case 4:
		return "set_opaque_region"
	case 5:
		return "set_input_region"
	case 6:
		return "commit"
	case 7:
		return "set_buffer_transform"
	case 8:
		return "set_buffer_scale"
	case 9:
		return "damage_buffer"
	case 10:
		return "offset"
	default:
		return "unknown"
	}
}

func (r *surfaceResource) Dispatch(msg *wire.MessageBuffer) error {
	err := r.dispatch(msg)
	if errors.Is(err, surface.ErrDestroyed) {
		return protocolErrorf(r, DisplayErrorInvalidObject, "%v", err)
	}
	return err
}

func (r *surfaceResource) dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		r.client.Delete(r.id)
		return nil

	case 1:
		bufID := msg.ReadObject()
		x, y := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		return r.attach(bufID, x, y)

	case 2, 9:
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		return r.surface.Damage(x, y, w, h)

	case 3:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		return r.frame(id)

	case 4:
		reg, err := r.region(msg)
		if err != nil {
			return err
		}
		if reg == nil {
			return r.surface.SetOpaqueRegion(region.Region{})
		}
		return r.surface.SetOpaqueRegion(reg.region)

	case 5:
		reg, err := r.region(msg)
		if err != nil {
			return err
		}
		if reg == nil {
			return r.surface.SetInputRegion(region.Unbounded())
		}
		return r.surface.SetInputRegion(region.Bounded(reg.region))

	case 6:
		return r.surface.Commit()

	case 7:
		transform := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		return r.surface.SetBufferTransform(surface.Transform(transform))

	case 8:
		scale := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if scale < 1 {
			return protocolErrorf(r, SurfaceErrorInvalidScale, "invalid scale %v", scale)
		}
		if scale != 1 {
			r.client.logger.Debug("ignoring buffer scale", "surface", r.id, "scale", scale)
		}
		return nil

	case 10:
		x, y := msg.ReadInt(), msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		return r.surface.Offset(x, y)

	default:
		return wire.UnknownOpError{Interface: "wl_surface", Op: msg.Op()}
	}
}

func (r *surfaceResource) attach(bufID uint32, x, y int32) error {
	if bufID == 0 {
		return r.surface.Attach(nil, x, y)
	}

	buf, ok := r.client.Get(bufID).(*bufferResource)
	if !ok {
		return protocolErrorf(r.client.display, DisplayErrorInvalidObject, "%v is not a wl_buffer", bufID)
	}

	err := r.surface.Attach(buf, x, y)
	if err != nil {
		return err
	}
	buf.track(r.surface.PendingBuffer())
	return nil
}

func (r *surfaceResource) frame(id uint32) error {
	cb, err := newCallback(r.client, id)
	if err != nil {
		return err
	}
	token, err := r.surface.Frame(cb)
	if err != nil {
		return err
	}
	cb.onDestroy = func() { r.surface.RemoveFrameCallback(token) }
	return nil
}

// region reads a nullable wl_region argument.
func (r *surfaceResource) region(msg *wire.MessageBuffer) (*regionResource, error) {
	id := msg.ReadObject()
	if err := msg.Err(); err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}

	reg, ok := r.client.Get(id).(*regionResource)
	if !ok {
		return nil, protocolErrorf(r.client.display, DisplayErrorInvalidObject, "%v is not a wl_region", id)
	}
	return reg, nil
}
