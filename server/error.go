package server

import (
	"fmt"

	"deedles.dev/wlsurf/wire"
)

// wl_display error codes.
const (
	DisplayErrorInvalidObject  uint32 = 0
	DisplayErrorInvalidMethod  uint32 = 1
	DisplayErrorNoMemory       uint32 = 2
	DisplayErrorImplementation uint32 = 3
)

// wl_shm error codes.
const (
	ShmErrorInvalidFormat uint32 = 0
	ShmErrorInvalidStride uint32 = 1
	ShmErrorInvalidFD     uint32 = 2
)

// wl_surface error codes.
const (
	SurfaceErrorInvalidScale     uint32 = 0
	SurfaceErrorInvalidTransform uint32 = 1
	SurfaceErrorInvalidSize      uint32 = 2
	SurfaceErrorInvalidOffset    uint32 = 3
	SurfaceErrorDefunctRole      uint32 = 4
)

// ProtocolError is a fatal error caused by a client. It is sent to the
// client as a wl_display.error event, after which the client is
// disconnected.
type ProtocolError struct {
	Object  wire.Object
	Code    uint32
	Message string
}

func (err *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on %v: %v (code %v)", err.Object, err.Message, err.Code)
}

func protocolErrorf(obj wire.Object, code uint32, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Object:  obj,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
