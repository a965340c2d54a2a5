package wire

import (
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type testObject uint32

func (obj testObject) ID() uint32                    { return uint32(obj) }
func (obj testObject) SetID(uint32)                  {}
func (obj testObject) Dispatch(*MessageBuffer) error { return nil }
func (obj testObject) Delete()                       {}
func (obj testObject) MethodName(uint16) string      { return "test" }
func (obj testObject) String() string                { return fmt.Sprintf("test@%v", uint32(obj)) }

func socketPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	conn := func(fd int) *Conn {
		file := os.NewFile(uintptr(fd), "socketpair")
		defer file.Close()

		c, err := net.FileConn(file)
		require.NoError(t, err)
		return NewConn(c.(*net.UnixConn))
	}

	a, b := conn(fds[0]), conn(fds[1])
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestMessageRoundTrip(t *testing.T) {
	a, b := socketPair(t)

	mb := NewMessage(testObject(7), 3)
	mb.WriteInt(-5)
	mb.WriteUint(9)
	mb.WriteString("wl_compositor")
	mb.WriteString("")
	mb.WriteArray([]byte{1, 2, 3})
	mb.WriteObject(testObject(12))
	require.NoError(t, mb.Build(a))

	msg, err := ReadMessage(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), msg.Sender())
	assert.Equal(t, uint16(3), msg.Op())

	assert.Equal(t, int32(-5), msg.ReadInt())
	assert.Equal(t, uint32(9), msg.ReadUint())
	assert.Equal(t, "wl_compositor", msg.ReadString())
	assert.Equal(t, "", msg.ReadString())
	assert.Equal(t, []byte{1, 2, 3}, msg.ReadArray())
	assert.Equal(t, uint32(12), msg.ReadObject())
	require.NoError(t, msg.Err())

	msg.ReadUint()
	assert.ErrorIs(t, msg.Err(), io.ErrUnexpectedEOF)
}

func TestNewIDRoundTrip(t *testing.T) {
	a, b := socketPair(t)

	mb := NewMessage(testObject(2), 0)
	mb.WriteUint(1)
	mb.WriteString("wl_shm")
	mb.WriteUint(1)
	mb.WriteUint(5)
	require.NoError(t, mb.Build(a))

	msg, err := ReadMessage(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), msg.ReadUint())
	assert.Equal(t, NewID{Interface: "wl_shm", Version: 1, ID: 5}, msg.ReadNewID())
	require.NoError(t, msg.Err())
}

func TestFilePassing(t *testing.T) {
	a, b := socketPair(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	mb := NewMessage(testObject(4), 0)
	mb.WriteFile(w)
	mb.WriteInt(64)
	require.NoError(t, mb.Build(a))

	msg, err := ReadMessage(b)
	require.NoError(t, err)
	file := msg.ReadFile()
	require.NoError(t, msg.Err())
	require.NotNil(t, file)
	defer file.Close()
	assert.Equal(t, int32(64), msg.ReadInt())

	_, err = file.Write([]byte("ok"))
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf))

	assert.Nil(t, msg.ReadFile())
	assert.Error(t, msg.Err())
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/wayland-1", SocketPath("wayland-1"))
	assert.Equal(t, "/tmp/wl", SocketPath("/tmp/wl"))
}

func TestNewSocketPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	for _, name := range []string{"wayland-0", "wayland-1", "wayland-x"} {
		require.NoError(t, os.WriteFile(dir+"/"+name, nil, 0600))
	}

	path, err := NewSocketPath()
	require.NoError(t, err)
	assert.Equal(t, dir+"/wayland-2", path)
}
