package surface

import "fmt"

// Transform is a wl_output.transform value as sent with
// wl_surface.set_buffer_transform.
type Transform int32

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

// Orientation is the logical orientation of a surface's content.
type Orientation int

const (
	// OrientationPrimary means the content follows the display.
	OrientationPrimary Orientation = iota
	OrientationPortrait
	OrientationLandscape
	OrientationInvertedPortrait
	OrientationInvertedLandscape
)

func (o Orientation) String() string {
	switch o {
	case OrientationPrimary:
		return "primary"
	case OrientationPortrait:
		return "portrait"
	case OrientationLandscape:
		return "landscape"
	case OrientationInvertedPortrait:
		return "inverted-portrait"
	case OrientationInvertedLandscape:
		return "inverted-landscape"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// ContentOrientation maps a buffer transform onto a content
// orientation for a display whose native orientation is native. Only
// the three rotations are interpreted; everything else, flips
// included, yields OrientationPrimary.
func ContentOrientation(t Transform, native Orientation) Orientation {
	portrait := native == OrientationPortrait

	switch t {
	case Transform90:
		if portrait {
			return OrientationInvertedLandscape
		}
		return OrientationPortrait
	case Transform180:
		if portrait {
			return OrientationInvertedPortrait
		}
		return OrientationInvertedLandscape
	case Transform270:
		if portrait {
			return OrientationLandscape
		}
		return OrientationInvertedPortrait
	default:
		return OrientationPrimary
	}
}

// FixedOrientation is an OrientationSource that always reports the
// same orientation.
type FixedOrientation Orientation

func (o FixedOrientation) NativeOrientation() Orientation {
	return Orientation(o)
}
