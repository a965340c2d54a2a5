// Package wire implements the Wayland wire protocol transport: the
// Unix domain socket, file descriptor passing, and the encoding of
// individual messages. Protocol objects are built on top of it.
package wire

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"deedles.dev/wlsurf/internal/set"
)

// Object is a protocol object that incoming requests can be
// dispatched to.
type Object interface {
	ID() uint32
	SetID(id uint32)

	// Dispatch performs the operation requested by the message.
	Dispatch(msg *MessageBuffer) error

	// Delete is called when the object is removed from its client's
	// object table.
	Delete()

	// MethodName returns the name of the request with the given
	// opcode. It is only used for debugging output.
	MethodName(op uint16) string
}

// NewID is an untyped new_id argument, which carries the interface
// name and version along with the ID itself.
type NewID struct {
	Interface string
	Version   uint32
	ID        uint32
}

func xdgRuntimeDir() string {
	dir, ok := os.LookupEnv("XDG_RUNTIME_DIR")
	if ok {
		return dir
	}
	return fmt.Sprintf("/var/run/user/%v", os.Getuid())
}

// SocketPath resolves name to the path of a Wayland socket. Relative
// names are placed in $XDG_RUNTIME_DIR.
func SocketPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(xdgRuntimeDir(), name)
}

// NewSocketPath finds the first unused wayland-N socket name in
// $XDG_RUNTIME_DIR.
func NewSocketPath() (string, error) {
	dir := xdgRuntimeDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	names := make(set.Set[int], len(entries))
	for _, ent := range entries {
		after, ok := strings.CutPrefix(ent.Name(), "wayland-")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(after, 10, 0)
		if err != nil {
			continue
		}
		names.Add(int(n))
	}

	var num int
	for names.Has(num) {
		num++
	}

	return filepath.Join(dir, fmt.Sprintf("wayland-%v", num)), nil
}

// Listen opens a listening socket named name. If name is empty, a free
// name is picked with NewSocketPath.
func Listen(name string) (*net.UnixListener, error) {
	path := SocketPath(name)
	if name == "" {
		p, err := NewSocketPath()
		if err != nil {
			return nil, fmt.Errorf("find socket path: %w", err)
		}
		path = p
	}

	err := os.Remove(path)
	if (err != nil) && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	lis, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	lis.SetUnlinkOnClose(true)
	return lis, nil
}
