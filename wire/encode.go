package wire

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"deedles.dev/wlsurf/internal/bin"
	"golang.org/x/sys/unix"
)

// MessageBuilder is an outgoing message under construction.
type MessageBuilder struct {
	// Method is the name of the event being sent. It is included
	// purely for debugging purposes.
	Method string

	// Args is the original set of arguments of the event. It is
	// included purely for debugging purposes.
	Args []any

	sender Object
	op     uint16
	data   bytes.Buffer
	fds    []int
	err    error
}

func NewMessage(sender Object, op uint16) *MessageBuilder {
	return &MessageBuilder{
		sender: sender,
		op:     op,
	}
}

func (mb *MessageBuilder) Sender() Object {
	return mb.sender
}

func (mb *MessageBuilder) Op() uint16 {
	return mb.op
}

func (mb *MessageBuilder) WriteInt(v int32) {
	if mb.err != nil {
		return
	}

	bin.Write(&mb.data, v)
}

func (mb *MessageBuilder) WriteUint(v uint32) {
	if mb.err != nil {
		return
	}

	bin.Write(&mb.data, v)
}

// WriteObject writes the ID of v, or zero if v is nil.
func (mb *MessageBuilder) WriteObject(v Object) {
	var id uint32
	if v != nil {
		id = v.ID()
	}
	mb.WriteUint(id)
}

func (mb *MessageBuilder) WriteString(v string) {
	if mb.err != nil {
		return
	}

	length := uint32(len(v) + 1)
	bin.Write(&mb.data, length)
	mb.data.WriteString(v)
	mb.data.WriteByte(0)
	mb.pad(length)
}

func (mb *MessageBuilder) WriteArray(v []byte) {
	if mb.err != nil {
		return
	}

	bin.Write(&mb.data, uint32(len(v)))
	mb.data.Write(v)
	mb.pad(uint32(len(v)))
}

// WriteFile attaches a duplicate of v's file descriptor to the
// message. The duplicate is closed once the message is built.
func (mb *MessageBuilder) WriteFile(v *os.File) {
	if mb.err != nil {
		return
	}

	fd, err := unix.Dup(int(v.Fd()))
	if err != nil {
		mb.err = fmt.Errorf("dup: %w", err)
		return
	}
	mb.fds = append(mb.fds, fd)
}

func (mb *MessageBuilder) pad(n uint32) {
	for i := uint32(0); i < bin.Padding(n); i++ {
		mb.data.WriteByte(0)
	}
}

// Build sends the message on c. The MessageBuilder should not be used
// again after this method is called.
func (mb *MessageBuilder) Build(c *Conn) error {
	defer mb.closeFDs()

	if mb.err != nil {
		return mb.err
	}

	length := uint32(8 + mb.data.Len())
	if length > 0xFFFF {
		return fmt.Errorf("message too large: %v bytes", length)
	}

	msg := bytes.NewBuffer(make([]byte, 0, length))
	bin.Write(msg, mb.sender.ID())
	bin.Write(msg, (length<<16)|uint32(mb.op))
	msg.Write(mb.data.Bytes())

	mb.err = c.write(msg.Bytes(), mb.fds)
	return mb.err
}

func (mb *MessageBuilder) closeFDs() {
	errs := make([]error, 0, len(mb.fds))
	for _, fd := range mb.fds {
		errs = append(errs, unix.Close(fd))
	}
	if mb.err == nil {
		mb.err = errors.Join(errs...)
	}
	mb.fds = nil
}

func (mb *MessageBuilder) String() string {
	return fmt.Sprintf("%v.%v(%v)", mb.sender, mb.Method, formatArgs(mb.Args))
}
