package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3Basics(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}

	assert.Equal(t, Vec3{5, 7, 9}, a.Add(b))
	assert.Equal(t, Vec3{-3, -3, -3}, a.Sub(b))
	assert.Equal(t, 32.0, a.Dot(b))
	assert.Equal(t, Vec3{-3, 6, -3}, a.Cross(b))
	assert.Equal(t, Vec3{9, 12, 15}, a.AddScaled(b, 2))
	assert.Equal(t, 14.0, a.Len2())
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
	assert.False(t, Vec3{0, math.NaN(), 0}.IsFinite())
	assert.True(t, a.IsFinite())
}

func TestTriangleHelpers(t *testing.T) {
	a, b, c := Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0}
	assert.Equal(t, Vec3{0, 0, 1}, TriangleNormal(a, b, c))
	assert.Equal(t, Vec3{0, 0, -1}, TriangleNormal(a, c, b))
	assert.InDelta(t, 0.5, TriangleArea(a, b, c), 1e-12)
	assert.Equal(t, Vec3{}, TriangleNormal(a, b, Vec3{2, 0, 0}))
}

func TestBox(t *testing.T) {
	b := EmptyBox().Extend(Vec3{0, 0, 0}).Extend(Vec3{2, 1, 4})
	assert.Equal(t, 2, b.LongestAxis())
	assert.Equal(t, Vec3{1, 0.5, 2}, b.Center())
	assert.Equal(t, 0.0, b.DistSq(Vec3{1, 1, 1}))
	assert.InDelta(t, 9.0, b.DistSq(Vec3{5, 1, 1}), 1e-12)
}

func TestTangentFrameIsOrthonormal(t *testing.T) {
	for _, n := range []Vec3{{0, 0, 1}, {1, 0, 0}, {1, 1, 1}, {0.2, -0.7, 0.1}} {
		m := TangentFrame(n, Vec3{1, 0, 0})
		assert.InDelta(t, 1.0, m.Det(), 1e-9)

		v := Vec3{0.3, -2, 5}
		back := m.Transpose().MulVec3(m.MulVec3(v))
		for k := 0; k < 3; k++ {
			assert.InDelta(t, v[k], back[k], 1e-9)
		}
	}
	assert.Equal(t, Mat3Identity(), TangentFrame(Vec3{}, Vec3{1, 0, 0}))
}
