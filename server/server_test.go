package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deedles.dev/wlsurf/region"
	"deedles.dev/wlsurf/shm"
	"deedles.dev/wlsurf/surface"
	"deedles.dev/wlsurf/wire"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type proxy uint32

func (p proxy) ID() uint32                         { return uint32(p) }
func (p proxy) SetID(uint32)                       {}
func (p proxy) Dispatch(*wire.MessageBuffer) error { return nil }
func (p proxy) Delete()                            {}
func (p proxy) MethodName(uint16) string           { return "request" }
func (p proxy) String() string                     { return fmt.Sprintf("proxy@%v", uint32(p)) }

type event struct {
	sender uint32
	op     uint16
	msg    *wire.MessageBuffer
}

func (ev event) is(sender uint32, op uint16) bool {
	return (ev.sender == sender) && (ev.op == op)
}

type testClient struct {
	t      *testing.T
	server *Server
	raw    *net.UnixConn
	conn   *wire.Conn
	nextID uint32
	errs   []error
	closed bool
}

func newTestServer(t *testing.T) (*Server, *Compositor) {
	t.Helper()

	comp := NewCompositor(Options{Logger: log.New(io.Discard)})
	server, err := Listen(filepath.Join(t.TempDir(), "wayland-test"), comp)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	return server, comp
}

func dial(t *testing.T, server *Server) *testClient {
	t.Helper()

	raw, err := net.DialUnix("unix", nil, server.Addr().(*net.UnixAddr))
	require.NoError(t, err)

	c := testClient{
		t:      t,
		server: server,
		raw:    raw,
		conn:   wire.NewConn(raw),
		nextID: 2,
	}
	t.Cleanup(func() { c.conn.Close() })
	return &c
}

func (c *testClient) newID() uint32 {
	id := c.nextID
	c.nextID++
	return id
}

func (c *testClient) request(sender uint32, op uint16, build func(*wire.MessageBuilder)) {
	c.t.Helper()

	msg := wire.NewMessage(proxy(sender), op)
	if build != nil {
		build(msg)
	}
	require.NoError(c.t, msg.Build(c.conn))
}

// roundtrip sends wl_display.sync and pumps the server until the
// callback arrives or the connection is closed, returning every event
// received before it.
func (c *testClient) roundtrip() []event {
	c.t.Helper()

	id := c.newID()
	c.request(1, 0, func(msg *wire.MessageBuilder) { msg.WriteUint(id) })

	var events []event
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		err := c.server.Flush()
		if err != nil {
			c.errs = append(c.errs, err)
		}

		for {
			c.raw.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
			msg, err := wire.ReadMessage(c.conn)
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			if err != nil {
				c.closed = true
				return events
			}

			ev := event{sender: msg.Sender(), op: msg.Op(), msg: msg}
			if ev.is(id, 0) {
				return events
			}
			events = append(events, ev)
		}
	}

	c.t.Fatal("roundtrip timed out")
	return nil
}

func find(events []event, sender uint32, op uint16) []event {
	var found []event
	for _, ev := range events {
		if ev.is(sender, op) {
			found = append(found, ev)
		}
	}
	return found
}

// setup binds the globals and returns the IDs of the compositor and
// shm objects.
func (c *testClient) setup() (compositor, shmID uint32) {
	c.t.Helper()

	registry := c.newID()
	c.request(1, 1, func(msg *wire.MessageBuilder) { msg.WriteUint(registry) })
	events := c.roundtrip()

	globals := find(events, registry, 0)
	require.Len(c.t, globals, 2)
	names := make(map[string]uint32)
	for _, g := range globals {
		name := g.msg.ReadUint()
		names[g.msg.ReadString()] = name
		g.msg.ReadUint()
		require.NoError(c.t, g.msg.Err())
	}

	bind := func(iface string, version uint32) uint32 {
		id := c.newID()
		c.request(registry, 0, func(msg *wire.MessageBuilder) {
			msg.WriteUint(names[iface])
			msg.WriteString(iface)
			msg.WriteUint(version)
			msg.WriteUint(id)
		})
		return id
	}
	compositor = bind("wl_compositor", 4)
	shmID = bind("wl_shm", 1)

	events = c.roundtrip()
	formats := find(events, shmID, 0)
	require.Len(c.t, formats, 2)

	return compositor, shmID
}

// createBuffers creates a pool holding n 10x10 ARGB8888 buffers.
func (c *testClient) createBuffers(shmID uint32, n int) []uint32 {
	c.t.Helper()

	const size = 10 * 10 * 4
	file, err := shm.Create("wlsurf-test", n*size)
	require.NoError(c.t, err)
	defer file.Close()

	pool := c.newID()
	c.request(shmID, 0, func(msg *wire.MessageBuilder) {
		msg.WriteUint(pool)
		msg.WriteFile(file)
		msg.WriteInt(int32(n * size))
	})

	bufs := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		id := c.newID()
		c.request(pool, 0, func(msg *wire.MessageBuilder) {
			msg.WriteUint(id)
			msg.WriteInt(int32(i * size))
			msg.WriteInt(10)
			msg.WriteInt(10)
			msg.WriteInt(40)
			msg.WriteUint(uint32(shm.FormatARGB8888))
		})
		bufs = append(bufs, id)
	}

	c.request(pool, 1, nil)
	return bufs
}

func (c *testClient) createSurface(compositor uint32) uint32 {
	id := c.newID()
	c.request(compositor, 0, func(msg *wire.MessageBuilder) { msg.WriteUint(id) })
	return id
}

func (c *testClient) attach(surface, buffer uint32) {
	c.request(surface, 1, func(msg *wire.MessageBuilder) {
		msg.WriteUint(buffer)
		msg.WriteInt(0)
		msg.WriteInt(0)
	})
}

func (c *testClient) commit(surface uint32) {
	c.request(surface, 6, nil)
}

func TestFrameScenario(t *testing.T) {
	server, comp := newTestServer(t)

	var surfaces []*surface.Surface
	comp.OnSurface(func(s *surface.Surface) { surfaces = append(surfaces, s) })

	c := dial(t, server)
	compositor, shmID := c.setup()
	bufs := c.createBuffers(shmID, 2)

	surf := c.createSurface(compositor)
	c.attach(surf, bufs[0])
	c.request(surf, 2, func(msg *wire.MessageBuilder) {
		msg.WriteInt(0)
		msg.WriteInt(0)
		msg.WriteInt(100)
		msg.WriteInt(100)
	})
	c.commit(surf)

	cb := c.newID()
	c.request(surf, 3, func(msg *wire.MessageBuilder) { msg.WriteUint(cb) })
	c.commit(surf)
	c.roundtrip()

	require.Len(t, surfaces, 1)
	s := surfaces[0]
	assert.Equal(t, surf, s.ID())
	assert.True(t, s.Mapped())
	assert.Equal(t, 10, s.Size().X)

	comp.FrameStarted()
	assert.Equal(t, 1, comp.SendFrameCallbacks(1234))

	events := c.roundtrip()
	done := find(events, cb, 0)
	require.Len(t, done, 1)
	assert.Equal(t, uint32(1234), done[0].msg.ReadUint())

	deleted := false
	for _, ev := range find(events, 1, 1) {
		if ev.msg.ReadUint() == cb {
			deleted = true
		}
	}
	assert.True(t, deleted, "callback ID should be freed")

	c.attach(surf, bufs[1])
	c.commit(surf)
	events = c.roundtrip()
	assert.Len(t, find(events, bufs[0], 0), 1, "first buffer should be released")
	assert.Empty(t, find(events, bufs[1], 0))
	assert.Empty(t, c.errs)
}

func TestRoleConflict(t *testing.T) {
	server, comp := newTestServer(t)

	var s *surface.Surface
	comp.OnSurface(func(ns *surface.Surface) { s = ns })

	c := dial(t, server)
	compositor, _ := c.setup()
	surf := c.createSurface(compositor)
	c.roundtrip()
	require.NotNil(t, s)

	cursor := &surface.Role{Name: "wl_pointer-cursor"}
	toplevel := &surface.Role{Name: "xdg_toplevel"}
	require.NoError(t, comp.SetRole(s, cursor, 0))
	require.NoError(t, comp.SetRole(s, cursor, 0))

	err := comp.SetRole(s, toplevel, 2)
	var rerr *surface.RoleError
	require.ErrorAs(t, err, &rerr)

	events := c.roundtrip()
	errs := find(events, 1, 0)
	require.Len(t, errs, 1)
	assert.Equal(t, surf, errs[0].msg.ReadObject())
	assert.Equal(t, uint32(2), errs[0].msg.ReadUint())
	msg := errs[0].msg.ReadString()
	assert.Contains(t, msg, "wl_pointer-cursor")
	assert.Contains(t, msg, "xdg_toplevel")
	assert.Contains(t, msg, fmt.Sprintf("wl_surface@%v", surf))

	assert.True(t, c.closed)
	assert.Empty(t, server.Clients())
	assert.True(t, s.Destroyed())
}

func TestInvalidObject(t *testing.T) {
	server, _ := newTestServer(t)

	c := dial(t, server)
	c.request(99, 0, nil)
	events := c.roundtrip()

	errs := find(events, 1, 0)
	require.Len(t, errs, 1)
	assert.Equal(t, uint32(1), errs[0].msg.ReadObject())
	assert.Equal(t, DisplayErrorInvalidObject, errs[0].msg.ReadUint())
	assert.True(t, c.closed)
}

func TestRegions(t *testing.T) {
	server, comp := newTestServer(t)

	var s *surface.Surface
	comp.OnSurface(func(ns *surface.Surface) { s = ns })

	c := dial(t, server)
	compositor, shmID := c.setup()
	bufs := c.createBuffers(shmID, 1)
	surf := c.createSurface(compositor)

	reg := c.newID()
	c.request(compositor, 1, func(msg *wire.MessageBuilder) { msg.WriteUint(reg) })
	rect := func(op uint16, x, y, w, h int32) {
		c.request(reg, op, func(msg *wire.MessageBuilder) {
			msg.WriteInt(x)
			msg.WriteInt(y)
			msg.WriteInt(w)
			msg.WriteInt(h)
		})
	}
	rect(1, 0, 0, 8, 8)
	rect(2, 0, 0, 4, 8)

	c.request(surf, 5, func(msg *wire.MessageBuilder) { msg.WriteUint(reg) })
	c.request(surf, 4, func(msg *wire.MessageBuilder) { msg.WriteUint(reg) })
	c.request(reg, 0, nil)
	c.attach(surf, bufs[0])
	c.commit(surf)
	c.roundtrip()

	require.NotNil(t, s)
	assert.True(t, s.InputRegion().Equal(region.XYWH(4, 0, 4, 8)))
	assert.True(t, s.OpaqueRegion().Equal(region.XYWH(4, 0, 4, 8)))

	c.request(surf, 5, func(msg *wire.MessageBuilder) { msg.WriteUint(0) })
	c.commit(surf)
	c.roundtrip()
	assert.True(t, s.InputRegion().Equal(region.XYWH(0, 0, 10, 10)))
	assert.Empty(t, c.errs)
}

func TestDisconnectDestroysSurfaces(t *testing.T) {
	server, comp := newTestServer(t)

	c := dial(t, server)
	compositor, _ := c.setup()
	c.createSurface(compositor)
	c.roundtrip()
	require.Len(t, comp.Surfaces(), 1)
	s := comp.Surfaces()[0]

	c.conn.Close()
	require.Eventually(t, func() bool {
		server.Flush()
		return len(comp.Surfaces()) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.True(t, s.Destroyed())
	assert.Empty(t, server.Clients())
}

func TestBufferDestroyedWhileCommitted(t *testing.T) {
	server, comp := newTestServer(t)

	var s *surface.Surface
	comp.OnSurface(func(ns *surface.Surface) { s = ns })

	c := dial(t, server)
	compositor, shmID := c.setup()
	bufs := c.createBuffers(shmID, 1)
	surf := c.createSurface(compositor)
	c.attach(surf, bufs[0])
	c.commit(surf)
	c.request(bufs[0], 0, nil)
	events := c.roundtrip()

	require.NotNil(t, s)
	assert.Nil(t, s.Current().Handle())
	assert.False(t, s.Mapped())
	assert.Empty(t, find(events, bufs[0], 0), "destroyed buffers are not released")
	assert.Empty(t, c.errs)
}

func TestNewIDInUse(t *testing.T) {
	tests := []struct {
		name string
		id   func(first uint32) uint32
	}{
		{"surface", func(first uint32) uint32 { return first }},
		{"display", func(uint32) uint32 { return 1 }},
		{"zero", func(uint32) uint32 { return 0 }},
		{"server range", func(uint32) uint32 { return 0xFF000000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, comp := newTestServer(t)

			var surfaces []*surface.Surface
			comp.OnSurface(func(s *surface.Surface) { surfaces = append(surfaces, s) })

			c := dial(t, server)
			compositor, _ := c.setup()
			first := c.createSurface(compositor)
			c.roundtrip()
			require.Len(t, surfaces, 1)

			id := tt.id(first)
			c.request(compositor, 0, func(msg *wire.MessageBuilder) { msg.WriteUint(id) })
			events := c.roundtrip()

			errs := find(events, 1, 0)
			require.Len(t, errs, 1)
			assert.Equal(t, uint32(1), errs[0].msg.ReadObject())
			assert.Equal(t, DisplayErrorInvalidObject, errs[0].msg.ReadUint())
			assert.Contains(t, errs[0].msg.ReadString(), "invalid new id")

			assert.True(t, c.closed)
			assert.Len(t, surfaces, 1)
			assert.True(t, surfaces[0].Destroyed())
			assert.Empty(t, comp.Surfaces())
		})
	}
}

func socketpair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	conn := func(fd int) *net.UnixConn {
		file := os.NewFile(uintptr(fd), "socketpair")
		defer file.Close()

		c, err := net.FileConn(file)
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		return c.(*net.UnixConn)
	}
	return conn(fds[0]), conn(fds[1])
}

func TestServeAfterClose(t *testing.T) {
	server, _ := newTestServer(t)
	require.NoError(t, server.Close())

	local, remote := socketpair(t)
	served := make(chan struct{})
	go func() {
		server.Serve(local)
		close(served)
	}()

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve blocked on a closed server")
	}

	remote.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := remote.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
