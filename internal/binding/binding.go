// Package binding computes a topology-independent binding of target
// vertices to a source surface and reconstructs target poses from it.
package binding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"skwrap/internal/mathutil"
	"skwrap/internal/spatial"
)

// DeterminantEpsilon bounds the barycentric solve's Gram determinant.
// It equals 4·area², so any triangle accepted by spatial.Build clears it.
const DeterminantEpsilon = 4 * spatial.AreaEpsilon * spatial.AreaEpsilon

// SumTolerance is the accepted deviation of a barycentric sum from 1.
const SumTolerance = 1e-5

const defaultChunkSize = 2048

var (
	ErrDegenerateBinding   = errors.New("binding: singular barycentric solve")
	ErrIsNotBound          = errors.New("binding: vertex is not bound to any source triangle")
	ErrVertexCountMismatch = errors.New("binding: source vertex count mismatch")
)

// VertexError reports which target vertex failed to bind.
type VertexError struct {
	Vertex int
	Err    error
}

func (e *VertexError) Error() string {
	return fmt.Sprintf("binding: target vertex %d: %v", e.Vertex, e.Err)
}

func (e *VertexError) Unwrap() error { return e.Err }

// Record binds one target vertex. Barycentric weights are not clamped:
// vertices outside the nearest triangle's prism extrapolate.
type Record struct {
	Triangle     [3]int
	Barycentric  [3]float64
	NormalOffset float64
	BindNormal   mathutil.Vec3
}

// Table is index-aligned with the target's vertices and valid only for the
// source topology it was computed against.
type Table struct {
	SourceVertexCount int
	Records           []Record
}

// Options tunes Compute.
type Options struct {
	Workers   int // <= 0 uses GOMAXPROCS
	ChunkSize int // <= 0 uses 2048 vertices per task
}

// Compute binds every vertex of targetPose to the surface described by
// tris over sourcePose. Binding is all-or-nothing: on error no table is
// returned.
func Compute(ctx context.Context, tris [][3]int, sourcePose, targetPose []mathutil.Vec3, opts Options) (*Table, error) {
	idx, err := spatial.Build(tris, sourcePose)
	if err != nil {
		return nil, err
	}
	return ComputeWithIndex(ctx, idx, sourcePose, targetPose, opts)
}

// ComputeWithIndex is Compute with a prebuilt index over sourcePose.
func ComputeWithIndex(ctx context.Context, idx *spatial.Index, sourcePose, targetPose []mathutil.Vec3, opts Options) (*Table, error) {
	if idx.Len() == 0 {
		return nil, spatial.ErrEmptyIndex
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	records := make([]Record, len(targetPose))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(targetPose); start += chunk {
		end := min(start+chunk, len(targetPose))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				rec, err := bindVertex(idx, sourcePose, targetPose[i])
				if err != nil {
					return &VertexError{Vertex: i, Err: err}
				}
				records[i] = rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Table{SourceVertexCount: len(sourcePose), Records: records}, nil
}

func bindVertex(idx *spatial.Index, pose []mathutil.Vec3, v mathutil.Vec3) (Record, error) {
	hit, err := idx.Query(v)
	if err != nil {
		return Record{}, err
	}
	if hit.Triangle < 0 {
		return Record{}, ErrIsNotBound
	}

	tri := idx.Triangle(hit.Triangle)
	bary, err := Barycentric(v, pose[tri[0]], pose[tri[1]], pose[tri[2]])
	if err != nil {
		return Record{}, err
	}

	return Record{
		Triangle:     tri,
		Barycentric:  bary,
		NormalOffset: v.Sub(hit.Point).Dot(hit.Normal),
		BindNormal:   hit.Normal,
	}, nil
}

// Barycentric returns the weights (u, v, w) of p's projection onto the plane
// of (a, b, c), using the dot-product form of the 2×2 normal equations.
// Points outside the triangle produce weights outside [0, 1]; the sum is
// always 1.
func Barycentric(p, a, b, c mathutil.Vec3) ([3]float64, error) {
	e0 := b.Sub(a)
	e1 := c.Sub(a)
	ep := p.Sub(a)
	d00 := e0.Dot(e0)
	d01 := e0.Dot(e1)
	d11 := e1.Dot(e1)
	d20 := ep.Dot(e0)
	d21 := ep.Dot(e1)

	denom := d00*d11 - d01*d01
	if math.Abs(denom) <= DeterminantEpsilon || math.IsNaN(denom) {
		return [3]float64{}, ErrDegenerateBinding
	}
	v := (d11*d20 - d01*d21) / denom
	w := (d00*d21 - d01*d20) / denom
	return [3]float64{1 - v - w, v, w}, nil
}

// Len returns the number of bound target vertices.
func (t *Table) Len() int {
	return len(t.Records)
}

// Validate checks the barycentric sum invariant and triangle indices.
func (t *Table) Validate() error {
	for i, r := range t.Records {
		s := r.Barycentric[0] + r.Barycentric[1] + r.Barycentric[2]
		if math.Abs(s-1) > SumTolerance {
			return &VertexError{Vertex: i, Err: fmt.Errorf("barycentric sum %g", s)}
		}
		for _, vi := range r.Triangle {
			if vi < 0 || vi >= t.SourceVertexCount {
				return &VertexError{Vertex: i, Err: ErrIsNotBound}
			}
		}
	}
	return nil
}
