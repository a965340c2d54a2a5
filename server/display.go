package server

import (
	"fmt"

	"deedles.dev/wlsurf/wire"
)

// resource holds what every protocol object has in common.
type resource struct {
	client  *Client
	id      uint32
	version uint32
}

func (r *resource) ID() uint32 {
	return r.id
}

func (r *resource) SetID(id uint32) {
	r.id = id
}

// send queues an event from obj.
func send(obj wire.Object, client *Client, op uint16, method string, build func(*wire.MessageBuilder), args ...any) {
	msg := wire.NewMessage(obj, op)
	msg.Method = method
	msg.Args = args
	if build != nil {
		build(msg)
	}
	client.Enqueue(msg)
}

type display struct {
	resource
}

func (d *display) String() string {
	return fmt.Sprintf("wl_display@%v", d.id)
}

func (d *display) Delete() {}

func (d *display) MethodName(op uint16) string {
	switch op {
	case 0:
		return "sync"
	case 1:
		return "get_registry"
	default:
		return "unknown"
	}
}

func (d *display) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		return d.sync(id)
	case 1:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		return d.getRegistry(id)
	default:
		return wire.UnknownOpError{Interface: "wl_display", Op: msg.Op()}
	}
}

func (d *display) sync(id uint32) error {
	cb, err := newCallback(d.client, id)
	if err != nil {
		return err
	}
	cb.Done(d.client.server.compositor.NextSerial())
	return nil
}

func (d *display) getRegistry(id uint32) error {
	r := registry{resource: resource{client: d.client, id: id, version: 1}}
	err := d.client.AddNew(&r)
	if err != nil {
		return err
	}
	r.announce()
	return nil
}

func (d *display) sendError(err *ProtocolError) {
	send(d, d.client, 0, "error", func(msg *wire.MessageBuilder) {
		msg.WriteObject(err.Object)
		msg.WriteUint(err.Code)
		msg.WriteString(err.Message)
	}, err.Object, err.Code, err.Message)
}

func (d *display) deleteID(id uint32) {
	send(d, d.client, 1, "delete_id", func(msg *wire.MessageBuilder) {
		msg.WriteUint(id)
	}, id)
}

// global is something clients can bind through the registry.
type global struct {
	name    uint32
	iface   string
	version uint32
	bind    func(client *Client, id, version uint32) error
}

type registry struct {
	resource
}

func (r *registry) String() string {
	return fmt.Sprintf("wl_registry@%v", r.id)
}

func (r *registry) Delete() {}

func (r *registry) MethodName(op uint16) string {
	if op == 0 {
		return "bind"
	}
	return "unknown"
}

func (r *registry) Dispatch(msg *wire.MessageBuffer) error {
	if msg.Op() != 0 {
		return wire.UnknownOpError{Interface: "wl_registry", Op: msg.Op()}
	}

	name := msg.ReadUint()
	id := msg.ReadNewID()
	if err := msg.Err(); err != nil {
		return err
	}
	return r.bind(name, id)
}

func (r *registry) announce() {
	for _, g := range r.client.server.compositor.globals {
		send(r, r.client, 0, "global", func(msg *wire.MessageBuilder) {
			msg.WriteUint(g.name)
			msg.WriteString(g.iface)
			msg.WriteUint(g.version)
		}, g.name, g.iface, g.version)
	}
}

func (r *registry) bind(name uint32, id wire.NewID) error {
	for _, g := range r.client.server.compositor.globals {
		if g.name != name {
			continue
		}

		if id.Interface != g.iface {
			return protocolErrorf(r, DisplayErrorInvalidObject, "global %v is %v, not %v", name, g.iface, id.Interface)
		}
		if (id.Version == 0) || (id.Version > g.version) {
			return protocolErrorf(r, DisplayErrorInvalidObject, "invalid version %v for %v", id.Version, g.iface)
		}

		return g.bind(r.client, id.ID, id.Version)
	}

	return protocolErrorf(r, DisplayErrorInvalidObject, "invalid global %v", name)
}

// callback is a wl_callback. It is destroyed as soon as it has been
// sent.
type callback struct {
	resource
	done bool

	// onDestroy is called if the callback goes away without having
	// been sent or destroyed by its owner.
	onDestroy func()
}

func newCallback(client *Client, id uint32) (*callback, error) {
	cb := callback{resource: resource{client: client, id: id, version: 1}}
	err := client.AddNew(&cb)
	if err != nil {
		return nil, err
	}
	return &cb, nil
}

func (cb *callback) String() string {
	return fmt.Sprintf("wl_callback@%v", cb.id)
}

func (cb *callback) MethodName(uint16) string {
	return "unknown"
}

func (cb *callback) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: "wl_callback", Op: msg.Op()}
}

func (cb *callback) Delete() {
	if cb.done {
		return
	}
	cb.done = true

	if cb.onDestroy != nil {
		cb.onDestroy()
	}
}

// Done sends the done event and destroys the callback.
func (cb *callback) Done(data uint32) {
	if cb.done {
		return
	}
	cb.done = true

	send(cb, cb.client, 0, "done", func(msg *wire.MessageBuilder) {
		msg.WriteUint(data)
	}, data)
	cb.client.Delete(cb.id)
}

// Destroy destroys the callback without sending anything.
func (cb *callback) Destroy() {
	if cb.done {
		return
	}
	cb.done = true
	cb.client.Delete(cb.id)
}
