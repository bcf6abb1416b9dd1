package mathutil

// Mat3 is a 3×3 matrix stored row-major: [r0c0, r0c1, r0c2, r1c0, ...].
// Value type for zero heap allocation.
type Mat3 [9]float64

func Mat3Identity() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Mat3Rows builds a matrix whose rows are r0, r1, r2. With an orthonormal
// basis as rows, MulVec3 maps world vectors into that frame.
func Mat3Rows(r0, r1, r2 Vec3) Mat3 {
	return Mat3{
		r0[0], r0[1], r0[2],
		r1[0], r1[1], r1[2],
		r2[0], r2[1], r2[2],
	}
}

// MulVec3 returns M × v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

func (m Mat3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// TangentFrame builds an orthonormal frame (rows: tangent, bitangent, normal)
// from a normal and a reference direction. When ref is parallel to n a fixed
// axis is substituted. A zero normal yields the identity.
func TangentFrame(n, ref Vec3) Mat3 {
	n = n.Normalize()
	if n == (Vec3{}) {
		return Mat3Identity()
	}
	t := ref.Sub(n.Scale(ref.Dot(n)))
	if t.Len2() < 1e-20 {
		axis := Vec3{1, 0, 0}
		if n[0] > 0.9 || n[0] < -0.9 {
			axis = Vec3{0, 1, 0}
		}
		t = axis.Sub(n.Scale(axis.Dot(n)))
	}
	t = t.Normalize()
	b := n.Cross(t)
	return Mat3Rows(t, b, n)
}

// Mul returns M × o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = m[i*3]*o[j] + m[i*3+1]*o[3+j] + m[i*3+2]*o[6+j]
		}
	}
	return r
}
