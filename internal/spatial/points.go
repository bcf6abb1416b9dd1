package spatial

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/kdtree"

	"skwrap/internal/mathutil"
)

// vertex is a kd-tree entry that remembers which vertex it came from.
type vertex struct {
	p mathutil.Vec3
	i int
}

func (v vertex) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return v.p[d] - c.(vertex).p[d]
}

func (vertex) Dims() int { return 3 }

// Distance returns the squared Euclidean distance.
func (v vertex) Distance(c kdtree.Comparable) float64 {
	return v.p.Sub(c.(vertex).p).Len2()
}

type vertices []vertex

func (s vertices) Index(i int) kdtree.Comparable         { return s[i] }
func (s vertices) Len() int                              { return len(s) }
func (s vertices) Pivot(d kdtree.Dim) int                { return vertexPlane{vertices: s, Dim: d}.Pivot() }
func (s vertices) Slice(start, end int) kdtree.Interface { return s[start:end] }

type vertexPlane struct {
	kdtree.Dim
	vertices
}

func (p vertexPlane) Less(i, j int) bool {
	return p.vertices[i].p[p.Dim] < p.vertices[j].p[p.Dim]
}
func (p vertexPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	p.vertices = p.vertices[start:end]
	return p
}
func (p vertexPlane) Swap(i, j int) {
	p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
}

// PointIndex is a kd-tree over vertex positions for radius and nearest
// queries. It is immutable after construction.
type PointIndex struct {
	tree *kdtree.Tree
	n    int
}

// NewPointIndex builds a balanced tree over pos.
func NewPointIndex(pos []mathutil.Vec3) *PointIndex {
	vs := make(vertices, len(pos))
	for i, p := range pos {
		vs[i] = vertex{p: p, i: i}
	}
	if len(vs) == 0 {
		return &PointIndex{}
	}
	return &PointIndex{tree: kdtree.New(vs, false), n: len(vs)}
}

// Len returns the number of indexed points.
func (x *PointIndex) Len() int { return x.n }

// Nearest returns the index of the closest point to p and its distance,
// or -1 for an empty index.
func (x *PointIndex) Nearest(p mathutil.Vec3) (int, float64) {
	if x.tree == nil {
		return -1, 0
	}
	c, d := x.tree.Nearest(vertex{p: p, i: -1})
	if c == nil {
		return -1, 0
	}
	return c.(vertex).i, math.Sqrt(d)
}

// Within returns the sorted indices of all points at distance <= eps from p.
func (x *PointIndex) Within(p mathutil.Vec3, eps float64) []int {
	if x.tree == nil {
		return nil
	}
	keep := kdtree.NewDistKeeper(eps * eps)
	x.tree.NearestSet(keep, vertex{p: p, i: -1})
	var out []int
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		out = append(out, cd.Comparable.(vertex).i)
	}
	slices.Sort(out)
	return out
}

// Weld clusters points lying within eps of each other. Each point maps to
// the cluster of the lowest-indexed unassigned point within eps of it, and
// clusters are numbered in order of first appearance. remap[i] is the
// cluster of point i; reps holds each cluster's representative position.
func Weld(pos []mathutil.Vec3, eps float64) (remap []int, reps []mathutil.Vec3) {
	idx := NewPointIndex(pos)
	remap = make([]int, len(pos))
	for i := range remap {
		remap[i] = -1
	}
	for i, p := range pos {
		if remap[i] >= 0 {
			continue
		}
		id := len(reps)
		reps = append(reps, p)
		remap[i] = id
		for _, j := range idx.Within(p, eps) {
			if remap[j] < 0 {
				remap[j] = id
			}
		}
	}
	return remap, reps
}
