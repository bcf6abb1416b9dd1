package mesh

import (
	"fmt"
	"slices"

	"skwrap/internal/mathutil"
)

// Triangulate splits polygons into triangles with a fan around the first
// corner, so a quad (0,1,2,3) becomes (0,1,2) and (0,2,3).
func Triangulate(polygons [][]int) ([][3]int, error) {
	tris := make([][3]int, 0, len(polygons))
	for i, p := range polygons {
		if len(p) < 3 {
			return nil, fmt.Errorf("mesh: polygon %d has %d corners", i, len(p))
		}
		for k := 1; k+1 < len(p); k++ {
			tris = append(tris, [3]int{p[0], p[k], p[k+1]})
		}
	}
	return tris, nil
}

// FaceNormals computes unit normals for each triangle from pos.
// Degenerate triangles get the zero vector.
func FaceNormals(pos []mathutil.Vec3, tris [][3]int) []mathutil.Vec3 {
	out := make([]mathutil.Vec3, len(tris))
	for i, t := range tris {
		out[i] = mathutil.TriangleNormal(pos[t[0]], pos[t[1]], pos[t[2]])
	}
	return out
}

// VertexNormals computes area-weighted vertex normals from pos.
// Vertices not referenced by any triangle get the zero vector.
func VertexNormals(pos []mathutil.Vec3, tris [][3]int) []mathutil.Vec3 {
	acc := make([]mathutil.Vec3, len(pos))
	for _, t := range tris {
		a, b, c := pos[t[0]], pos[t[1]], pos[t[2]]
		// Unnormalized cross product is already weighted by twice the area.
		n := b.Sub(a).Cross(c.Sub(a))
		for _, vi := range t {
			acc[vi] = acc[vi].Add(n)
		}
	}
	for i := range acc {
		acc[i] = acc[i].Normalize()
	}
	return acc
}

// Edge is an undirected edge with A < B.
type Edge struct {
	A, B int
}

func makeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// EdgeFaces maps each edge to the number of triangles using it.
func EdgeFaces(tris [][3]int) map[Edge]int {
	faces := make(map[Edge]int, len(tris)*3/2)
	for _, t := range tris {
		faces[makeEdge(t[0], t[1])]++
		faces[makeEdge(t[1], t[2])]++
		faces[makeEdge(t[2], t[0])]++
	}
	return faces
}

// Neighbors returns, for each of n vertices, the sorted unique vertices it
// shares an edge with.
func Neighbors(n int, tris [][3]int) [][]int {
	adj := make([][]int, n)
	for _, t := range tris {
		for k := 0; k < 3; k++ {
			a, b := t[k], t[(k+1)%3]
			adj[a] = append(adj[a], b)
			adj[b] = append(adj[b], a)
		}
	}
	for i := range adj {
		slices.Sort(adj[i])
		adj[i] = slices.Compact(adj[i])
	}
	return adj
}

// Bounds returns the bounding box of pos.
func Bounds(pos []mathutil.Vec3) mathutil.Box {
	b := mathutil.EmptyBox()
	for _, p := range pos {
		b = b.Extend(p)
	}
	return b
}
