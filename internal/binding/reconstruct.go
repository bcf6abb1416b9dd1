package binding

import (
	"fmt"

	"skwrap/internal/mathutil"
)

// Stats describes how a reconstruction deviated from the bind-time surface.
type Stats struct {
	// Flipped counts vertices whose deformed triangle normal points against
	// the bind-time normal (triangle inversion). Offsets are still applied.
	Flipped int
	// Collapsed counts vertices whose deformed triangle has no area; the
	// bind-time normal is used for them.
	Collapsed int
}

// Reconstruct returns target positions for the deformed source pose
// sourcePos. The offset is applied along the normal of the deformed
// triangle; barycentric weights are reused unmodified.
func (t *Table) Reconstruct(sourcePos []mathutil.Vec3) ([]mathutil.Vec3, error) {
	out, _, err := t.ReconstructStats(sourcePos)
	return out, err
}

// ReconstructStats is Reconstruct that also reports deformation statistics.
func (t *Table) ReconstructStats(sourcePos []mathutil.Vec3) ([]mathutil.Vec3, Stats, error) {
	var st Stats
	if len(sourcePos) != t.SourceVertexCount {
		return nil, st, fmt.Errorf("%w: pose has %d vertices, binding expects %d",
			ErrVertexCountMismatch, len(sourcePos), t.SourceVertexCount)
	}

	out := make([]mathutil.Vec3, len(t.Records))
	for i, r := range t.Records {
		a := sourcePos[r.Triangle[0]]
		b := sourcePos[r.Triangle[1]]
		c := sourcePos[r.Triangle[2]]

		p := a.Scale(r.Barycentric[0]).AddScaled(b, r.Barycentric[1]).AddScaled(c, r.Barycentric[2])

		n := mathutil.TriangleNormal(a, b, c)
		switch {
		case n == (mathutil.Vec3{}):
			n = r.BindNormal
			st.Collapsed++
		case n.Dot(r.BindNormal) < 0:
			st.Flipped++
		}
		out[i] = p.AddScaled(n, r.NormalOffset)
	}
	return out, st, nil
}
