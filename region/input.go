package region

import "image"

// Input is an input region: either unbounded, covering the whole
// plane, or bounded by an explicit Region. The zero value is
// unbounded, which is the protocol default for a surface.
//
// Keeping the unbounded case as its own variant means it never has to
// be represented by extreme coordinates, so clipping it against a
// finite rectangle cannot overflow.
type Input struct {
	bounded bool
	region  Region
}

// Unbounded returns an input region covering the whole plane.
func Unbounded() Input {
	return Input{}
}

// Bounded returns an input region limited to r.
func Bounded(r Region) Input {
	return Input{bounded: true, region: r}
}

// IsUnbounded reports whether in covers the whole plane.
func (in Input) IsUnbounded() bool {
	return !in.bounded
}

// Region returns the bounding region of in and whether in is bounded
// at all. For an unbounded input region it returns the empty region
// and false.
func (in Input) Region() (Region, bool) {
	return in.region, in.bounded
}

// Clip intersects in with rect, producing a concrete Region.
func (in Input) Clip(rect image.Rectangle) Region {
	if !in.bounded {
		return Rect(rect)
	}
	return in.region.Intersect(rect)
}

func (in Input) String() string {
	if !in.bounded {
		return "unbounded"
	}
	return in.region.String()
}
