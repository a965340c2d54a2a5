package wire

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// maxFDs is the most file descriptors libwayland will put on a single
// sendmsg call.
const maxFDs = 28

// Conn is one end of a Wayland connection. File descriptors received
// alongside message data are queued on the Conn and handed out to
// messages in order as they are decoded, since the kernel does not
// keep them attached to any particular message.
//
// A Conn may be read from on one goroutine while messages are decoded
// and written on another.
type Conn struct {
	conn *net.UnixConn

	m   sync.Mutex
	fds []int
}

// NewConn wraps c. Use the Conn's Close method instead of c's after
// this is called.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{conn: c}
}

// Close closes the connection and any received file descriptors that
// were never claimed.
func (c *Conn) Close() error {
	c.m.Lock()
	defer c.m.Unlock()

	for _, fd := range c.fds {
		unix.Close(fd)
	}
	c.fds = nil
	return c.conn.Close()
}

// readFull fills buf, collecting any file descriptors that arrive in
// the process.
func (c *Conn) readFull(buf []byte) error {
	oob := make([]byte, unix.CmsgSpace(maxFDs*4))
	for len(buf) > 0 {
		n, oobn, _, _, err := c.conn.ReadMsgUnix(buf, oob)
		if oobn > 0 {
			perr := c.parseFDs(oob[:oobn])
			if perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.EOF
		}
		buf = buf[n:]
	}
	return nil
}

func (c *Conn) parseFDs(data []byte) error {
	cmsgs, err := unix.ParseSocketControlMessage(data)
	if err != nil {
		return fmt.Errorf("parse socket control messages: %w", err)
	}

	c.m.Lock()
	defer c.m.Unlock()

	for _, cmsg := range cmsgs {
		fds, err := unix.ParseUnixRights(&cmsg)
		if err != nil {
			if errors.Is(err, unix.EINVAL) {
				continue
			}
			return fmt.Errorf("parse unix control message: %w", err)
		}
		c.fds = append(c.fds, fds...)
	}
	return nil
}

func (c *Conn) popFD() (int, bool) {
	c.m.Lock()
	defer c.m.Unlock()

	if len(c.fds) == 0 {
		return -1, false
	}
	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, true
}

func (c *Conn) write(data []byte, fds []int) error {
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	_, _, err := c.conn.WriteMsgUnix(data, oob, nil)
	return err
}
