package mathutil

import "math"

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// EmptyBox returns an inverted box that any Extend call will replace.
func EmptyBox() Box {
	return Box{
		Min: Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
}

// Extend returns the box grown to contain p.
func (b Box) Extend(p Vec3) Box {
	return Box{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing both.
func (b Box) Union(o Box) Box {
	return Box{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Size returns the extent along each axis.
func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// LongestAxis returns 0, 1 or 2.
func (b Box) LongestAxis() int {
	s := b.Size()
	if s[1] > s[0] && s[1] >= s[2] {
		return 1
	}
	if s[2] > s[0] && s[2] > s[1] {
		return 2
	}
	return 0
}

// DistSq returns the squared distance from p to the box (0 inside).
func (b Box) DistSq(p Vec3) float64 {
	var d float64
	for k := 0; k < 3; k++ {
		if p[k] < b.Min[k] {
			e := b.Min[k] - p[k]
			d += e * e
		} else if p[k] > b.Max[k] {
			e := p[k] - b.Max[k]
			d += e * e
		}
	}
	return d
}
