// Package smooth applies a corrective smooth to shape keys: Laplacian
// relaxation of each pose followed by re-application of the rest pose's
// surface detail in per-vertex tangent frames.
package smooth

import (
	"errors"
	"fmt"

	"skwrap/internal/logging"
	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
)

// Type selects the neighbour averaging scheme.
type Type int

const (
	// Simple averages edge neighbours uniformly.
	Simple Type = iota
	// LengthWeighted weights each neighbour by the inverse of its edge length.
	LengthWeighted
)

func (t Type) String() string {
	switch t {
	case Simple:
		return "simple"
	case LengthWeighted:
		return "length_weighted"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType accepts the names produced by Type.String.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "simple", "SIMPLE":
		return Simple, nil
	case "length_weighted", "LENGTH_WEIGHTED":
		return LengthWeighted, nil
	}
	return Simple, fmt.Errorf("smooth: unknown smooth type %q", s)
}

// Options configures a smoothing pass.
type Options struct {
	Factor     float64
	Iterations int
	// Scale multiplies the restored rest-pose detail. 0 yields a plain
	// smooth; 1 leaves an unchanged basis pose untouched.
	Scale     float64
	Type      Type
	Overwrite bool
	// Prefix names the derived key when Overwrite is false.
	Prefix string
	// Weights optionally scales Factor per vertex (len must equal the
	// vertex count). Zero-weight vertices are left as they are.
	Weights []float64
}

// DefaultOptions returns the corrective smooth defaults.
func DefaultOptions() Options {
	return Options{Factor: 0.5, Iterations: 5, Prefix: "CS_"}
}

// RestoreDetails returns options that pull surface detail lost by a
// transfer back into keys, restricted by a per-vertex mask.
func RestoreDetails(mask []float64) Options {
	return Options{Factor: 1, Iterations: 20, Scale: 1, Prefix: "RD_", Weights: mask}
}

var ErrNoBasis = errors.New("smooth: mesh has no basis key")

// Result lists the keys written, in key-set order.
type Result struct {
	Written []string
}

func (o Options) validate(n int) error {
	if o.Iterations < 0 {
		return fmt.Errorf("smooth: negative iteration count %d", o.Iterations)
	}
	if !(mathutil.Vec3{o.Factor, o.Scale, 0}).IsFinite() {
		return fmt.Errorf("smooth: non-finite factor %g or scale %g", o.Factor, o.Scale)
	}
	if o.Weights != nil && len(o.Weights) != n {
		return fmt.Errorf("smooth: %d weights for %d vertices", len(o.Weights), n)
	}
	if !o.Overwrite && o.Prefix == "" {
		return errors.New("smooth: prefix required when not overwriting")
	}
	return nil
}

// Smooth processes the keys of m named in names. With Overwrite the key's
// positions are replaced in place; otherwise a new key Prefix+name is
// inserted directly after the original. The basis is never smoothed.
func Smooth(m *mesh.Mesh, names []string, opts Options) (Result, error) {
	var res Result
	if !m.HasKeys() {
		return res, fmt.Errorf("%w: %s", ErrNoBasis, m.Name)
	}
	n := m.VertexCount()
	if err := opts.validate(n); err != nil {
		return res, err
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[mesh.NameKey(name)] = true
	}

	s := newSmoother(m.Triangles, n, opts)
	rest := m.Keys.Basis().Positions
	detail := s.restDetail(rest)

	// Snapshot so derived keys inserted below are not visited.
	targets := append([]*mesh.ShapeKey(nil), m.Keys.Blocks[1:]...)
	for _, k := range targets {
		if !want[mesh.NameKey(k.Name)] {
			continue
		}
		if len(k.Positions) != n {
			return res, fmt.Errorf("smooth: %s: key %q has %d vertices, mesh has %d", m.Name, k.Name, len(k.Positions), n)
		}

		out := s.apply(k.Positions, detail)
		if opts.Overwrite {
			k.Positions = out
			res.Written = append(res.Written, k.Name)
			continue
		}

		derived := &mesh.ShapeKey{
			Name:      m.Keys.UniqueName(opts.Prefix + k.Name),
			Positions: out,
			SliderMin: k.SliderMin,
			SliderMax: k.SliderMax,
		}
		m.Keys.Insert(m.Keys.Index(k.Name)+1, derived)
		res.Written = append(res.Written, derived.Name)
	}

	logging.Logger().Debug("smooth: done", "mesh", m.Name, "keys", len(res.Written),
		"iterations", opts.Iterations, "type", opts.Type.String())
	return res, nil
}

type smoother struct {
	opts      Options
	tris      [][3]int
	neighbors [][]int
}

func newSmoother(tris [][3]int, n int, opts Options) *smoother {
	return &smoother{opts: opts, tris: tris, neighbors: mesh.Neighbors(n, tris)}
}

// relax runs the configured Laplacian iterations on a copy of pos.
func (s *smoother) relax(pos []mathutil.Vec3) []mathutil.Vec3 {
	cur := append([]mathutil.Vec3(nil), pos...)
	next := make([]mathutil.Vec3, len(pos))
	for it := 0; it < s.opts.Iterations; it++ {
		for i, p := range cur {
			nb := s.neighbors[i]
			f := s.opts.Factor
			if s.opts.Weights != nil {
				f *= s.opts.Weights[i]
			}
			if len(nb) == 0 || f == 0 {
				next[i] = p
				continue
			}
			next[i] = p.AddScaled(s.average(cur, i, nb).Sub(p), f)
		}
		cur, next = next, cur
	}
	return cur
}

func (s *smoother) average(pos []mathutil.Vec3, i int, nb []int) mathutil.Vec3 {
	var sum mathutil.Vec3
	if s.opts.Type == LengthWeighted {
		var wsum float64
		for _, j := range nb {
			l := pos[j].Sub(pos[i]).Len()
			if l < 1e-12 {
				continue
			}
			sum = sum.AddScaled(pos[j], 1/l)
			wsum += 1 / l
		}
		if wsum > 0 {
			return sum.Scale(1 / wsum)
		}
		return pos[i]
	}
	for _, j := range nb {
		sum = sum.Add(pos[j])
	}
	return sum.Scale(1 / float64(len(nb)))
}

// frames returns a tangent frame per vertex of pos, oriented by the vertex
// normal and the direction to the first neighbour.
func (s *smoother) frames(pos []mathutil.Vec3) []mathutil.Mat3 {
	normals := mesh.VertexNormals(pos, s.tris)
	out := make([]mathutil.Mat3, len(pos))
	for i := range pos {
		var ref mathutil.Vec3
		if nb := s.neighbors[i]; len(nb) > 0 {
			ref = pos[nb[0]].Sub(pos[i])
		}
		out[i] = mathutil.TangentFrame(normals[i], ref)
	}
	return out
}

// restDetail expresses rest − relax(rest) in the local frames of the
// relaxed rest pose.
func (s *smoother) restDetail(rest []mathutil.Vec3) []mathutil.Vec3 {
	if s.opts.Scale == 0 {
		return nil
	}
	sm := s.relax(rest)
	fr := s.frames(sm)
	out := make([]mathutil.Vec3, len(rest))
	for i := range rest {
		out[i] = fr[i].MulVec3(rest[i].Sub(sm[i]))
	}
	return out
}

func (s *smoother) apply(pos, detail []mathutil.Vec3) []mathutil.Vec3 {
	sm := s.relax(pos)
	if detail == nil {
		return sm
	}
	fr := s.frames(sm)
	for i := range sm {
		sm[i] = sm[i].Add(fr[i].Transpose().MulVec3(detail[i].Scale(s.opts.Scale)))
	}
	return sm
}
