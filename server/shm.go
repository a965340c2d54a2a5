package server

import (
	"errors"
	"fmt"
	"image"

	"deedles.dev/wlsurf/internal/set"
	"deedles.dev/wlsurf/shm"
	"deedles.dev/wlsurf/surface"
	"deedles.dev/wlsurf/wire"
)

type shmResource struct {
	resource
}

func bindShm(client *Client, id, version uint32) error {
	r := shmResource{resource: resource{client: client, id: id, version: version}}
	err := client.AddNew(&r)
	if err != nil {
		return err
	}

	for _, format := range shm.Formats {
		send(&r, client, 0, "format", func(msg *wire.MessageBuilder) {
			msg.WriteUint(uint32(format))
		}, format)
	}
	return nil
}

func (r *shmResource) String() string {
	return fmt.Sprintf("wl_shm@%v", r.id)
}

func (r *shmResource) Delete() {}

func (r *shmResource) MethodName(op uint16) string {
	switch op {
	case 0:
		return "create_pool"
	case 1:
		return "release"
	default:
		return "unknown"
	}
}

func (r *shmResource) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		id := msg.ReadUint()
		file := msg.ReadFile()
		size := msg.ReadInt()
		if err := msg.Err(); err != nil {
			if file != nil {
				file.Close()
			}
			return err
		}
		if err := r.client.checkNewID(id); err != nil {
			file.Close()
			return err
		}

		pool, err := shm.NewPool(file, size)
		if err != nil {
			code := ShmErrorInvalidFD
			if errors.Is(err, shm.ErrInvalidSize) {
				code = ShmErrorInvalidStride
			}
			return protocolErrorf(r, code, "create pool: %v", err)
		}

		r.client.Add(&shmPoolResource{
			resource: resource{client: r.client, id: id, version: r.version},
			pool:     pool,
		})
		return nil

	case 1:
		r.client.Delete(r.id)
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_shm", Op: msg.Op()}
	}
}

type shmPoolResource struct {
	resource
	pool *shm.Pool
}

func (r *shmPoolResource) String() string {
	return fmt.Sprintf("wl_shm_pool@%v", r.id)
}

func (r *shmPoolResource) Delete() {
	err := r.pool.Close()
	if err != nil {
		r.client.logger.Error("close shm pool", "pool", r.id, "err", err)
	}
}

func (r *shmPoolResource) MethodName(op uint16) string {
	switch op {
	case 0:
		return "create_buffer"
	case 1:
		return "destroy"
	case 2:
		return "resize"
	default:
		return "unknown"
	}
}

func (r *shmPoolResource) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0:
		id := msg.ReadUint()
		offset := msg.ReadInt()
		width, height := msg.ReadInt(), msg.ReadInt()
		stride := msg.ReadInt()
		format := shm.Format(msg.ReadUint())
		if err := msg.Err(); err != nil {
			return err
		}
		if err := r.client.checkNewID(id); err != nil {
			return err
		}

		buf, err := r.pool.CreateBuffer(offset, width, height, stride, format)
		if err != nil {
			code := ShmErrorInvalidStride
			if errors.Is(err, shm.ErrInvalidFormat) {
				code = ShmErrorInvalidFormat
			}
			return protocolErrorf(r, code, "create buffer: %v", err)
		}

		r.client.Add(&bufferResource{
			resource: resource{client: r.client, id: id, version: 1},
			buf:      buf,
			wrappers: set.New[*surface.Buffer](),
		})
		return nil

	case 1:
		r.client.Delete(r.id)
		return nil

	case 2:
		size := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}

		err := r.pool.Resize(size)
		if err != nil {
			return protocolErrorf(r, ShmErrorInvalidStride, "resize pool: %v", err)
		}
		return nil

	default:
		return wire.UnknownOpError{Interface: "wl_shm_pool", Op: msg.Op()}
	}
}

// bufferResource is a wl_buffer. It is the handle that surfaces wrap
// in their buffer pools.
type bufferResource struct {
	resource
	buf       *shm.Buffer
	destroyed bool

	// wrappers are the pooled buffers that have wrapped this one at
	// some point. They may since have moved on to other handles.
	wrappers set.Set[*surface.Buffer]
}

func (r *bufferResource) String() string {
	return fmt.Sprintf("wl_buffer@%v", r.id)
}

// Size implements surface.BufferHandle.
func (r *bufferResource) Size() image.Point {
	return r.buf.Size()
}

// Release implements surface.BufferHandle by sending wl_buffer.release.
func (r *bufferResource) Release() {
	if r.destroyed {
		return
	}
	send(r, r.client, 0, "release", nil)
}

// Image returns the buffer's pixels. See shm.Buffer.Image.
func (r *bufferResource) Image() (image.Image, bool) {
	if r.destroyed {
		return nil, false
	}

	img, ok := r.buf.Image()
	if !ok {
		return nil, false
	}
	return img, true
}

// Opaque reports whether the buffer's format has no alpha channel.
func (r *bufferResource) Opaque() bool {
	return r.buf.Opaque()
}

func (r *bufferResource) track(b *surface.Buffer) {
	if b != nil {
		r.wrappers.Add(b)
	}
}

func (r *bufferResource) Delete() {
	r.destroyed = true
	for b := range r.wrappers {
		if b.Handle() == surface.BufferHandle(r) {
			b.HandleDestroyed()
		}
	}
	r.wrappers = nil

	err := r.buf.Destroy()
	if err != nil {
		r.client.logger.Error("destroy shm buffer", "buffer", r.id, "err", err)
	}
}

func (r *bufferResource) MethodName(op uint16) string {
	if op == 0 {
		return "destroy"
	}
	return "unknown"
}

func (r *bufferResource) Dispatch(msg *wire.MessageBuffer) error {
	if msg.Op() != 0 {
		return wire.UnknownOpError{Interface: "wl_buffer", Op: msg.Op()}
	}

	r.client.Delete(r.id)
	return nil
}
