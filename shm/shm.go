// Package shm implements the server side of wl_shm: memory pools that
// clients share over a file descriptor, and the buffers carved out of
// them.
package shm

import (
	"errors"
	"fmt"
	"image"
	"os"

	"deedles.dev/ximage/format"
	"golang.org/x/sys/unix"
)

// Format is a wl_shm.format pixel format.
type Format uint32

const (
	FormatARGB8888 Format = 0
	FormatXRGB8888 Format = 1
)

// Formats lists the formats advertised to clients.
var Formats = []Format{FormatARGB8888, FormatXRGB8888}

func (f Format) String() string {
	switch f {
	case FormatARGB8888:
		return "argb8888"
	case FormatXRGB8888:
		return "xrgb8888"
	default:
		return fmt.Sprintf("Format(%#x)", uint32(f))
	}
}

// Supported reports whether f is one of Formats.
func (f Format) Supported() bool {
	return (f == FormatARGB8888) || (f == FormatXRGB8888)
}

var (
	ErrInvalidSize   = errors.New("invalid pool size")
	ErrInvalidStride = errors.New("invalid stride")
	ErrInvalidFormat = errors.New("invalid format")
)

// Create returns an anonymous memory-backed file of the given size,
// suitable for sharing as a pool.
func Create(name string, size int) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	file := os.NewFile(uintptr(fd), name)

	err = file.Truncate(int64(size))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("truncate: %w", err)
	}

	return file, nil
}

type Mmap []byte

func Map(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	cerr := sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})
	if cerr != nil {
		return nil, cerr
	}

	return mmap, err
}

func (mmap Mmap) Unmap() error {
	if mmap == nil {
		return nil
	}
	return unix.Munmap(mmap)
}

// Pool is a client's memory pool mapped read-only into the server.
//
// The mapping outlives the pool object itself for as long as buffers
// created from it exist, so a client may destroy the pool as soon as it
// has created its buffers.
type Pool struct {
	file   *os.File
	mmap   Mmap
	closed bool
	bufs   int
}

// NewPool maps size bytes of file. The pool takes ownership of file.
func NewPool(file *os.File, size int32) (*Pool, error) {
	if size <= 0 {
		file.Close()
		return nil, ErrInvalidSize
	}

	mmap, err := Map(file, int(size), unix.PROT_READ)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap pool: %w", err)
	}

	return &Pool{file: file, mmap: mmap}, nil
}

// Size returns the size of the mapping.
func (p *Pool) Size() int {
	return len(p.mmap)
}

// Resize remaps the pool at a new size. Pools can only grow.
func (p *Pool) Resize(size int32) error {
	if int(size) < len(p.mmap) {
		return ErrInvalidSize
	}
	if int(size) == len(p.mmap) {
		return nil
	}

	mmap, err := Map(p.file, int(size), unix.PROT_READ)
	if err != nil {
		return fmt.Errorf("mmap pool: %w", err)
	}

	err = p.mmap.Unmap()
	p.mmap = mmap
	if err != nil {
		return fmt.Errorf("unmap pool: %w", err)
	}
	return nil
}

// CreateBuffer describes a buffer within the pool.
func (p *Pool) CreateBuffer(offset, width, height, stride int32, format Format) (*Buffer, error) {
	if !format.Supported() {
		return nil, ErrInvalidFormat
	}
	if (width <= 0) || (height <= 0) || (int64(stride) < int64(width)*4) {
		return nil, ErrInvalidStride
	}
	if (offset < 0) || (int64(offset)+int64(stride)*int64(height) > int64(len(p.mmap))) {
		return nil, ErrInvalidSize
	}

	p.bufs++
	return &Buffer{
		pool:   p,
		offset: int(offset),
		width:  int(width),
		height: int(height),
		stride: int(stride),
		format: format,
	}, nil
}

// Close releases the client's handle on the pool. The memory stays
// mapped until every buffer created from it is destroyed as well.
func (p *Pool) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.release()
}

func (p *Pool) release() error {
	if !p.closed || (p.bufs > 0) {
		return nil
	}

	err := p.mmap.Unmap()
	p.mmap = nil
	return errors.Join(err, p.file.Close())
}

// Buffer is a rectangle of pixels within a Pool.
type Buffer struct {
	pool      *Pool
	offset    int
	width     int
	height    int
	stride    int
	format    Format
	destroyed bool
}

func (b *Buffer) Size() image.Point {
	return image.Pt(b.width, b.height)
}

func (b *Buffer) Stride() int {
	return b.stride
}

func (b *Buffer) Format() Format {
	return b.format
}

// Pix returns the buffer's pixel data. It aliases client memory, so
// the contents may change at any time until the buffer is released.
func (b *Buffer) Pix() []byte {
	if b.destroyed {
		return nil
	}

	end := b.offset + b.stride*b.height
	if end > len(b.pool.mmap) {
		return nil
	}
	return b.pool.mmap[b.offset:end:end]
}

// Image wraps the buffer's pixels as an image. It returns false if
// the buffer's rows are padded, which ximage cannot represent.
func (b *Buffer) Image() (*format.Image, bool) {
	pix := b.Pix()
	if (pix == nil) || (b.stride != b.width*4) {
		return nil, false
	}

	// XRGB8888 shares ARGB8888's layout. The alpha byte is garbage,
	// which callers deal with by compositing it as opaque.
	return &format.Image{
		Format: format.ARGB8888,
		Rect:   image.Rect(0, 0, b.width, b.height),
		Pix:    pix,
	}, true
}

// Opaque reports whether the buffer's alpha channel should be ignored.
func (b *Buffer) Opaque() bool {
	return b.format == FormatXRGB8888
}

// Destroy detaches the buffer from its pool.
func (b *Buffer) Destroy() error {
	if b.destroyed {
		return nil
	}
	b.destroyed = true
	b.pool.bufs--
	return b.pool.release()
}
