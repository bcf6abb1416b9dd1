package mathutil

import "math"

// Vec3 is a 3-component vector (value type, stack-allocated).
type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// AddScaled returns a + b*s without an intermediate vector.
func (a Vec3) AddScaled(b Vec3, s float64) Vec3 {
	return Vec3{a[0] + b[0]*s, a[1] + b[1]*s, a[2] + b[2]*s}
}

func (a Vec3) Dot(b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Len2 returns the squared length.
func (v Vec3) Len2() float64 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return Vec3{}
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}
}

// Min returns the component-wise minimum.
func (a Vec3) Min(b Vec3) Vec3 {
	return Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

// Max returns the component-wise maximum.
func (a Vec3) Max(b Vec3) Vec3 {
	return Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

// IsFinite reports whether no component is NaN or ±Inf.
func (v Vec3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Float32 converts to the float32 layout used by mesh file formats.
func (v Vec3) Float32() [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// FromFloat32 widens a float32 triple.
func FromFloat32(f [3]float32) Vec3 {
	return Vec3{float64(f[0]), float64(f[1]), float64(f[2])}
}

// TriangleNormal returns the unit normal of (a, b, c) with counter-clockwise
// winding, or the zero vector for a degenerate triangle.
func TriangleNormal(a, b, c Vec3) Vec3 {
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

// TriangleArea returns the area of (a, b, c).
func TriangleArea(a, b, c Vec3) float64 {
	return 0.5 * b.Sub(a).Cross(c.Sub(a)).Len()
}
