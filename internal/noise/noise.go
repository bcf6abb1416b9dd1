// Package noise builds a throwaway jittered copy of a rest pose. Binding
// against it nudges target vertices off exactly coincident or collinear
// source geometry; the jittered pose is never written to a shape key.
package noise

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
)

// Range bounds the displacement applied along each vertex normal.
type Range struct {
	Min float64
	Max float64
}

// Validate rejects inverted or non-finite bounds.
func (r Range) Validate() error {
	if !(r.Min <= r.Max) {
		return fmt.Errorf("noise: invalid range [%g, %g]", r.Min, r.Max)
	}
	if !(mathutil.Vec3{r.Min, r.Max, 0}).IsFinite() {
		return fmt.Errorf("noise: non-finite range [%g, %g]", r.Min, r.Max)
	}
	return nil
}

// NewSource returns a deterministic random source for seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// Perturb returns a new slice where every vertex of pos is moved along its
// area-weighted vertex normal by a distance drawn from U[r.Min, r.Max].
// Vertices without adjacent faces keep their position. pos is not modified.
func Perturb(pos []mathutil.Vec3, tris [][3]int, r Range, src rand.Source) ([]mathutil.Vec3, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	normals := mesh.VertexNormals(pos, tris)
	out := make([]mathutil.Vec3, len(pos))
	if r.Min == r.Max {
		for i, p := range pos {
			out[i] = p.AddScaled(normals[i], r.Min)
		}
		return out, nil
	}

	dist := distuv.Uniform{Min: r.Min, Max: r.Max, Src: src}
	for i, p := range pos {
		out[i] = p.AddScaled(normals[i], dist.Rand())
	}
	return out, nil
}
