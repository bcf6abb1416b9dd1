// Package diagnose finds geometry that makes a mesh unsuitable as a binding
// source. Nothing here modifies the mesh.
package diagnose

import (
	"fmt"
	"slices"
	"strings"

	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
	"skwrap/internal/spatial"
)

// DefaultWeldDistance is the distance under which two vertices count as
// coincident.
const DefaultWeldDistance = 1e-6

// Report lists problems found by Check. Indices refer to the checked mesh.
type Report struct {
	Mesh               string
	NonManifoldEdges   []mesh.Edge
	DegenerateTris     []int
	CoincidentVertices [][]int
	ConcavePolygons    []int // indices into Mesh.Polygons
}

// OK reports whether no problem was found.
func (r Report) OK() bool {
	return len(r.NonManifoldEdges) == 0 && len(r.DegenerateTris) == 0 && len(r.CoincidentVertices) == 0 &&
		len(r.ConcavePolygons) == 0
}

func (r Report) String() string {
	if r.OK() {
		return fmt.Sprintf("%s: ok", r.Mesh)
	}
	var parts []string
	if n := len(r.NonManifoldEdges); n > 0 {
		parts = append(parts, fmt.Sprintf("%d edges with more than two faces", n))
	}
	if n := len(r.DegenerateTris); n > 0 {
		parts = append(parts, fmt.Sprintf("%d degenerate triangles", n))
	}
	if n := len(r.CoincidentVertices); n > 0 {
		parts = append(parts, fmt.Sprintf("%d groups of coincident vertices", n))
	}
	if n := len(r.ConcavePolygons); n > 0 {
		parts = append(parts, fmt.Sprintf("%d concave polygons", n))
	}
	return fmt.Sprintf("%s: %s", r.Mesh, strings.Join(parts, ", "))
}

// Check runs every test on m's rest pose.
func Check(m *mesh.Mesh) Report {
	pos := m.RestPose()
	return Report{
		Mesh:               m.Name,
		NonManifoldEdges:   NonManifoldEdges(m.Triangles),
		DegenerateTris:     DegenerateTriangles(pos, m.Triangles, spatial.AreaEpsilon),
		CoincidentVertices: CoincidentVertices(pos, DefaultWeldDistance),
		ConcavePolygons:    ConcavePolygons(pos, m.Polygons),
	}
}

// NonManifoldEdges returns edges shared by more than two triangles, sorted.
func NonManifoldEdges(tris [][3]int) []mesh.Edge {
	var out []mesh.Edge
	for e, n := range mesh.EdgeFaces(tris) {
		if n > 2 {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b mesh.Edge) int {
		if a.A != b.A {
			return a.A - b.A
		}
		return a.B - b.B
	})
	return out
}

// DegenerateTriangles returns triangles with area <= eps. These are the
// triangles spatial.Build rejects.
func DegenerateTriangles(pos []mathutil.Vec3, tris [][3]int, eps float64) []int {
	var out []int
	for i, t := range tris {
		if mathutil.TriangleArea(pos[t[0]], pos[t[1]], pos[t[2]]) <= eps {
			out = append(out, i)
		}
	}
	return out
}

// CoincidentVertices groups vertices within eps of each other. Only groups
// with two or more members are returned, each sorted, ordered by first member.
func CoincidentVertices(pos []mathutil.Vec3, eps float64) [][]int {
	remap, reps := spatial.Weld(pos, eps)
	groups := make([][]int, len(reps))
	for i, g := range remap {
		groups[g] = append(groups[g], i)
	}
	var out [][]int
	for _, g := range groups {
		if len(g) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// ConcavePolygons returns the polygons with at least one reflex corner,
// measured against the polygon's Newell normal. Triangles are never concave.
func ConcavePolygons(pos []mathutil.Vec3, polys [][]int) []int {
	var out []int
	for pi, poly := range polys {
		if len(poly) < 4 {
			continue
		}
		var n mathutil.Vec3
		for i, vi := range poly {
			a, b := pos[vi], pos[poly[(i+1)%len(poly)]]
			n = n.Add(mathutil.Vec3{
				(a[1] - b[1]) * (a[2] + b[2]),
				(a[2] - b[2]) * (a[0] + b[0]),
				(a[0] - b[0]) * (a[1] + b[1]),
			})
		}
		for i := range poly {
			prev := pos[poly[(i+len(poly)-1)%len(poly)]]
			cur := pos[poly[i]]
			next := pos[poly[(i+1)%len(poly)]]
			if cur.Sub(prev).Cross(next.Sub(cur)).Dot(n) < 0 {
				out = append(out, pi)
				break
			}
		}
	}
	return out
}
