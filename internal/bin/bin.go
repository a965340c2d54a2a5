// Package bin reads and writes the 32-bit words of the Wayland wire
// format, which uses the host's byte order.
package bin

import (
	"encoding/binary"
	"io"
)

// Order is the byte order used on the wire.
var Order binary.ByteOrder = binary.NativeEndian

func Read[T ~int32 | ~uint32](r io.Reader) (T, error) {
	var data [4]byte
	_, err := io.ReadFull(r, data[:])
	if err != nil {
		return 0, err
	}

	return T(Order.Uint32(data[:])), nil
}

func Write[T ~int32 | ~uint32](w io.Writer, v T) error {
	var data [4]byte
	Order.PutUint32(data[:], uint32(v))
	n, err := w.Write(data[:])
	if (err == nil) && (n < len(data)) {
		return io.ErrShortWrite
	}
	return err
}

// Padding returns the number of zero bytes needed after n bytes to
// reach the next 32-bit boundary.
func Padding(n uint32) uint32 {
	return (4 - (n % 4)) % 4
}
