package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"deedles.dev/wlsurf/internal/bin"
)

// MessageBuffer holds the data of a single message that has been read
// from the socket but not yet decoded.
type MessageBuffer struct {
	sender uint32
	op     uint16
	size   uint16
	data   bytes.Reader
	conn   *Conn
	err    error
	args   []any
}

// ReadMessage reads the next message from c.
func ReadMessage(c *Conn) (*MessageBuffer, error) {
	var header [8]byte
	err := c.readFull(header[:])
	if err != nil {
		return nil, fmt.Errorf("read message header: %w", err)
	}

	mb := MessageBuffer{conn: c}
	mb.sender = bin.Order.Uint32(header[:4])
	so := bin.Order.Uint32(header[4:])
	mb.size = uint16(so >> 16)
	mb.op = uint16(so & 0xFFFF)
	if mb.size < 8 {
		return nil, fmt.Errorf("invalid message size %v", mb.size)
	}

	data := make([]byte, mb.size-8)
	err = c.readFull(data)
	if err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}
	mb.data.Reset(data)

	return &mb, nil
}

// Sender is the object ID of the sender of the message.
func (r *MessageBuffer) Sender() uint32 {
	return r.sender
}

// Op is the opcode of the message.
func (r *MessageBuffer) Op() uint16 {
	return r.op
}

// Size is the total size of the message, including the 8 byte header.
func (r *MessageBuffer) Size() uint16 {
	return r.size
}

// Err returns the first error encountered while decoding arguments.
func (r *MessageBuffer) Err() error {
	if errors.Is(r.err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return r.err
}

func (r *MessageBuffer) ReadInt() (v int32) {
	if r.err != nil {
		return
	}

	v, r.err = bin.Read[int32](&r.data)
	r.args = append(r.args, v)
	return v
}

func (r *MessageBuffer) ReadUint() (v uint32) {
	if r.err != nil {
		return
	}

	v, r.err = bin.Read[uint32](&r.data)
	r.args = append(r.args, v)
	return v
}

// ReadObject reads an object ID. Zero means null.
func (r *MessageBuffer) ReadObject() uint32 {
	return r.ReadUint()
}

func (r *MessageBuffer) ReadNewID() NewID {
	return NewID{
		Interface: r.ReadString(),
		Version:   r.ReadUint(),
		ID:        r.ReadUint(),
	}
}

func (r *MessageBuffer) ReadString() string {
	if r.err != nil {
		return ""
	}

	length, err := bin.Read[uint32](&r.data)
	if err != nil {
		r.err = err
		return ""
	}
	if length == 0 {
		r.args = append(r.args, nil)
		return ""
	}

	var str strings.Builder
	str.Grow(int(length + bin.Padding(length)))
	_, r.err = io.CopyN(&str, &r.data, int64(length+bin.Padding(length)))
	if r.err != nil {
		return ""
	}
	v := str.String()
	if v[length-1] != 0 {
		r.err = errors.New("string is not null-terminated")
		return ""
	}

	r.args = append(r.args, v[:length-1])
	return v[:length-1]
}

func (r *MessageBuffer) ReadArray() []byte {
	if r.err != nil {
		return nil
	}

	length, err := bin.Read[uint32](&r.data)
	if err != nil {
		r.err = err
		return nil
	}

	buf := make([]byte, length+bin.Padding(length))
	_, r.err = io.ReadFull(&r.data, buf)
	if r.err != nil {
		return nil
	}

	r.args = append(r.args, buf[:length])
	return buf[:length]
}

// ReadFile claims the next file descriptor received on the
// connection. The caller owns the returned file.
func (r *MessageBuffer) ReadFile() *os.File {
	if r.err != nil {
		return nil
	}

	fd, ok := r.conn.popFD()
	if !ok {
		r.err = errors.New("no more file descriptors")
		return nil
	}

	f := os.NewFile(uintptr(fd), "")
	r.args = append(r.args, f)
	return f
}

// Debug formats the message as a call on sender, with whatever
// arguments have been decoded so far.
func (r *MessageBuffer) Debug(sender Object) string {
	return fmt.Sprintf("%v.%v(%v)", sender, sender.MethodName(r.op), formatArgs(r.args))
}

func formatArgs(args []any) string {
	strs := make([]string, 0, len(args))
	for _, arg := range args {
		switch arg := arg.(type) {
		case nil:
			strs = append(strs, "nil")
		case string:
			strs = append(strs, strconv.Quote(arg))
		case *os.File:
			strs = append(strs, fmt.Sprintf("fd %v", arg.Fd()))
		default:
			strs = append(strs, fmt.Sprint(arg))
		}
	}
	return strings.Join(strs, ", ")
}
