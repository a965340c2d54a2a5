package surface

import "image"

// BufferHandle is a client buffer as seen by a surface. It is owned
// by the transport layer; a surface only holds it while a Buffer
// wraps it.
type BufferHandle interface {
	// Size returns the buffer's size in pixels.
	Size() image.Point

	// Release tells the client that the compositor is done reading
	// from the buffer.
	Release()
}

// CallbackResource is the client-side object behind a frame callback.
type CallbackResource interface {
	// Done sends the completion event with the given timestamp and
	// then destroys the resource.
	Done(time uint32)

	// Destroy destroys the resource without sending anything.
	Destroy()
}

// ErrorReporter posts fatal protocol errors to a client. It is
// usually the resource that made the offending request.
type ErrorReporter interface {
	PostError(code uint32, msg string)
}

// Output is the display a surface is primarily shown on.
type Output interface {
	// RequestRepaint asks the output to schedule a new frame.
	RequestRepaint()
}

// View is a presentation of a surface's content, such as a node in an
// output's scene.
type View interface {
	// Attach gives the view a new reference to the surface's current
	// buffer. The view owns ref and must release it when it no longer
	// needs it, typically on the next Attach.
	Attach(ref *BufferRef)

	// SurfaceDestroyed tells the view that the surface is gone. The
	// view must not call back into the surface after this.
	SurfaceDestroyed()
}

// OrientationSource reports the native orientation of the display,
// either OrientationPortrait or OrientationLandscape.
type OrientationSource interface {
	NativeOrientation() Orientation
}
