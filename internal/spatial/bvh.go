// Package spatial answers nearest-point-on-surface queries over a triangle
// mesh using a bounding volume hierarchy.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"skwrap/internal/mathutil"
)

// AreaEpsilon is the smallest triangle area Build accepts.
const AreaEpsilon = 1e-12

// maxTrianglesPerLeaf is the threshold for splitting BVH nodes.
const maxTrianglesPerLeaf = 4

var (
	// ErrDegenerateMesh is returned by Build for zero-area or malformed triangles.
	ErrDegenerateMesh = errors.New("spatial: degenerate mesh")
	// ErrEmptyIndex is returned by Query when the index holds no triangles.
	ErrEmptyIndex = errors.New("spatial: empty index")
)

// DegenerateTriangleError identifies the offending triangle.
type DegenerateTriangleError struct {
	Triangle int
	Area     float64
	Reason   string
}

func (e *DegenerateTriangleError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("spatial: triangle %d: %s", e.Triangle, e.Reason)
	}
	return fmt.Sprintf("spatial: triangle %d has area %g (min %g); dissolve or merge it before binding", e.Triangle, e.Area, AreaEpsilon)
}

func (e *DegenerateTriangleError) Unwrap() error { return ErrDegenerateMesh }

// Hit is the result of a nearest-surface query.
type Hit struct {
	Triangle int           // index into the triangle list given to Build
	Point    mathutil.Vec3 // closest point on that triangle
	Normal   mathutil.Vec3 // unit face normal
	DistSq   float64
}

// bvhNode has either two children or a list of triangle indices.
type bvhNode struct {
	box         mathutil.Box
	left, right *bvhNode
	tris        []int
}

// Index is immutable after Build and safe for concurrent queries.
type Index struct {
	pos     []mathutil.Vec3
	tris    [][3]int
	normals []mathutil.Vec3
	root    *bvhNode
}

// Build constructs an index over tris, whose corners index into pos.
// Every triangle must have area above AreaEpsilon. An empty triangle list
// builds an empty index.
func Build(tris [][3]int, pos []mathutil.Vec3) (*Index, error) {
	idx := &Index{
		pos:     append([]mathutil.Vec3(nil), pos...),
		tris:    tris,
		normals: make([]mathutil.Vec3, len(tris)),
	}

	boxes := make([]mathutil.Box, len(tris))
	centroids := make([]mathutil.Vec3, len(tris))
	order := make([]int, len(tris))
	for i, t := range tris {
		for _, vi := range t {
			if vi < 0 || vi >= len(pos) {
				return nil, &DegenerateTriangleError{Triangle: i, Reason: fmt.Sprintf("vertex %d out of range [0,%d)", vi, len(pos))}
			}
		}
		a, b, c := pos[t[0]], pos[t[1]], pos[t[2]]
		if !a.IsFinite() || !b.IsFinite() || !c.IsFinite() {
			return nil, &DegenerateTriangleError{Triangle: i, Reason: "non-finite vertex position"}
		}
		cross := b.Sub(a).Cross(c.Sub(a))
		area := 0.5 * cross.Len()
		if area <= AreaEpsilon {
			return nil, &DegenerateTriangleError{Triangle: i, Area: area}
		}
		idx.normals[i] = cross.Normalize()
		boxes[i] = mathutil.EmptyBox().Extend(a).Extend(b).Extend(c)
		centroids[i] = a.Add(b).Add(c).Scale(1.0 / 3)
		order[i] = i
	}

	if len(tris) > 0 {
		idx.root = buildNode(order, boxes, centroids)
	}
	return idx, nil
}

func buildNode(order []int, boxes []mathutil.Box, centroids []mathutil.Vec3) *bvhNode {
	node := &bvhNode{box: mathutil.EmptyBox()}
	for _, ti := range order {
		node.box = node.box.Union(boxes[ti])
	}

	if len(order) <= maxTrianglesPerLeaf {
		node.tris = order
		return node
	}

	// Split at the median centroid along the longest axis.
	axis := node.box.LongestAxis()
	sort.Slice(order, func(i, j int) bool {
		ci, cj := centroids[order[i]][axis], centroids[order[j]][axis]
		if ci != cj {
			return ci < cj
		}
		return order[i] < order[j]
	})
	mid := len(order) / 2
	node.left = buildNode(order[:mid], boxes, centroids)
	node.right = buildNode(order[mid:], boxes, centroids)
	return node
}

// Len returns the number of indexed triangles.
func (x *Index) Len() int {
	return len(x.tris)
}

// Triangle returns the vertex indices of triangle i.
func (x *Index) Triangle(i int) [3]int {
	return x.tris[i]
}

// Normal returns the rest-pose unit normal of triangle i.
func (x *Index) Normal(i int) mathutil.Vec3 {
	return x.normals[i]
}

// Query returns the closest surface point to p. Equidistant candidates
// resolve to the lowest triangle index so results are deterministic.
func (x *Index) Query(p mathutil.Vec3) (Hit, error) {
	if x.root == nil {
		return Hit{}, ErrEmptyIndex
	}
	if !p.IsFinite() {
		return Hit{}, fmt.Errorf("spatial: query point %v is not finite", p)
	}
	best := Hit{Triangle: -1, DistSq: math.Inf(1)}
	x.visit(x.root, p, &best)
	best.Normal = x.normals[best.Triangle]
	return best, nil
}

func (x *Index) visit(n *bvhNode, p mathutil.Vec3, best *Hit) {
	if n.tris != nil {
		for _, ti := range n.tris {
			t := x.tris[ti]
			c := ClosestPointOnTriangle(p, x.pos[t[0]], x.pos[t[1]], x.pos[t[2]])
			d := c.Sub(p).Len2()
			if d < best.DistSq || (d == best.DistSq && ti < best.Triangle) {
				best.Triangle, best.Point, best.DistSq = ti, c, d
			}
		}
		return
	}

	// Descend into the nearer child first; prune strictly so that ties
	// still reach the lower-indexed candidate.
	first, second := n.left, n.right
	d1, d2 := first.box.DistSq(p), second.box.DistSq(p)
	if d2 < d1 {
		first, second = second, first
		d1, d2 = d2, d1
	}
	if d1 <= best.DistSq {
		x.visit(first, p, best)
	}
	if d2 <= best.DistSq {
		x.visit(second, p, best)
	}
}
