// Package region implements sets of integer points described as
// unions of rectangles, as used by surface damage, opaque and input
// regions.
package region

import (
	"fmt"
	"image"
	"strings"
)

// Region is a union of rectangles. The zero value is the empty
// region. Regions are values: every operation returns a new Region
// and leaves its receiver untouched.
//
// Internally the rectangles are kept pairwise disjoint, so the area
// of a Region is the sum of the areas of its rectangles.
type Region struct {
	rects []image.Rectangle
}

// Rect returns a region covering exactly r.
func Rect(r image.Rectangle) Region {
	r = r.Canon()
	if r.Empty() {
		return Region{}
	}
	return Region{rects: []image.Rectangle{r}}
}

// XYWH returns a region covering the rectangle with its top-left
// corner at (x, y) and the given size, matching the argument layout
// used on the wire.
func XYWH(x, y, w, h int) Region {
	if (w <= 0) || (h <= 0) {
		return Region{}
	}
	return Rect(image.Rect(x, y, x+w, y+h))
}

// Empty reports whether r contains no points.
func (r Region) Empty() bool {
	return len(r.rects) == 0
}

// Rects returns the disjoint rectangles that make up r.
func (r Region) Rects() []image.Rectangle {
	return append([]image.Rectangle(nil), r.rects...)
}

// Bounds returns the smallest rectangle containing r.
func (r Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, rect := range r.rects {
		b = b.Union(rect)
	}
	return b
}

// Area returns the number of points in r.
func (r Region) Area() int {
	var a int
	for _, rect := range r.rects {
		a += rect.Dx() * rect.Dy()
	}
	return a
}

// Contains reports whether p is in r.
func (r Region) Contains(p image.Point) bool {
	for _, rect := range r.rects {
		if p.In(rect) {
			return true
		}
	}
	return false
}

// Union returns the union of r and rect.
func (r Region) Union(rect image.Rectangle) Region {
	rect = rect.Canon()
	if rect.Empty() {
		return r
	}

	add := []image.Rectangle{rect}
	for _, existing := range r.rects {
		add = subtractAll(add, existing)
		if len(add) == 0 {
			return r
		}
	}

	rects := make([]image.Rectangle, 0, len(r.rects)+len(add))
	rects = append(rects, r.rects...)
	rects = append(rects, add...)
	return Region{rects: rects}
}

// UnionRegion returns the union of r and o.
func (r Region) UnionRegion(o Region) Region {
	for _, rect := range o.rects {
		r = r.Union(rect)
	}
	return r
}

// Subtract returns the points of r that are not in rect.
func (r Region) Subtract(rect image.Rectangle) Region {
	rect = rect.Canon()
	if rect.Empty() || r.Empty() {
		return r
	}
	return Region{rects: subtractAll(r.rects, rect)}
}

// SubtractRegion returns the points of r that are not in o.
func (r Region) SubtractRegion(o Region) Region {
	for _, rect := range o.rects {
		r = r.Subtract(rect)
	}
	return r
}

// Intersect returns the points of r that are also in rect.
func (r Region) Intersect(rect image.Rectangle) Region {
	var rects []image.Rectangle
	for _, existing := range r.rects {
		i := existing.Intersect(rect)
		if !i.Empty() {
			rects = append(rects, i)
		}
	}
	return Region{rects: rects}
}

// Translate returns r moved by p.
func (r Region) Translate(p image.Point) Region {
	rects := make([]image.Rectangle, 0, len(r.rects))
	for _, rect := range r.rects {
		rects = append(rects, rect.Add(p))
	}
	return Region{rects: rects}
}

// Equal reports whether r and o contain exactly the same points,
// regardless of how they were built.
func (r Region) Equal(o Region) bool {
	if r.Area() != o.Area() {
		return false
	}
	return r.SubtractRegion(o).Empty()
}

func (r Region) String() string {
	if r.Empty() {
		return "{}"
	}

	parts := make([]string, 0, len(r.rects))
	for _, rect := range r.rects {
		parts = append(parts, rect.String())
	}
	return fmt.Sprintf("{%v}", strings.Join(parts, " "))
}

func subtractAll(rects []image.Rectangle, cut image.Rectangle) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(rects))
	for _, rect := range rects {
		out = append(out, subtract(rect, cut)...)
	}
	return out
}

// subtract splits a into at most four disjoint bands covering a minus
// b: full-width strips above and below b, then the left and right
// remainders beside it.
func subtract(a, b image.Rectangle) []image.Rectangle {
	i := a.Intersect(b)
	if i.Empty() {
		return []image.Rectangle{a}
	}

	pieces := make([]image.Rectangle, 0, 4)
	if a.Min.Y < i.Min.Y {
		pieces = append(pieces, image.Rect(a.Min.X, a.Min.Y, a.Max.X, i.Min.Y))
	}
	if i.Max.Y < a.Max.Y {
		pieces = append(pieces, image.Rect(a.Min.X, i.Max.Y, a.Max.X, a.Max.Y))
	}
	if a.Min.X < i.Min.X {
		pieces = append(pieces, image.Rect(a.Min.X, i.Min.Y, i.Min.X, i.Max.Y))
	}
	if i.Max.X < a.Max.X {
		pieces = append(pieces, image.Rect(i.Max.X, i.Min.Y, a.Max.X, i.Max.Y))
	}
	return pieces
}
