package spatial

import "skwrap/internal/mathutil"

// ClosestPointOnTriangle returns the point of triangle (a, b, c) nearest to p
// by classifying p against the triangle's vertex, edge and face regions.
func ClosestPointOnTriangle(p, a, b, c mathutil.Vec3) mathutil.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.AddScaled(ab, v)
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.AddScaled(ac, w)
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.AddScaled(c.Sub(b), w)
	}

	// Inside the face region.
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.AddScaled(ab, v).AddScaled(ac, w)
}
