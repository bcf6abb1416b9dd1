// Package mesh is the in-memory model the transfer engine reads and writes:
// vertex positions, triangle connectivity and an ordered shape-key set.
package mesh

import (
	"fmt"

	"skwrap/internal/mathutil"
)

// BasisName is the name given to an automatically created basis key.
const BasisName = "Basis"

// Mesh holds geometry for one object.
// Triangles must be pre-triangulated (see FromPolygons).
type Mesh struct {
	Name      string
	Positions []mathutil.Vec3
	Triangles [][3]int
	// Polygons optionally keeps the faces Triangles was built from. Only
	// diagnostics read it.
	Polygons [][]int
	UVs      [][2]float64 // optional, index-aligned with Positions
	Keys     *KeySet      // nil until the first shape key is added
	State    ObjectState
}

// ShapeKey is a named alternate pose. Positions are absolute, not deltas,
// and always have the mesh's vertex count.
type ShapeKey struct {
	Name      string
	Positions []mathutil.Vec3
	Value     float64
	SliderMin float64
	SliderMax float64
	Driver    *Driver
}

// Driver links a key's value and slider range to a key on another object.
type Driver struct {
	SourceObject string
	SourceKey    string
}

// ObjectState is host-visible per-object state that operations may borrow
// temporarily and must restore.
type ObjectState struct {
	ShowOnlyKey bool
	ActiveKey   int
}

// FromPolygons builds a mesh from polygon faces, fan-triangulating them and
// keeping the polygons for diagnostics.
func FromPolygons(name string, pos []mathutil.Vec3, polys [][]int) (*Mesh, error) {
	tris, err := Triangulate(polys)
	if err != nil {
		return nil, err
	}
	m := &Mesh{Name: name, Positions: pos, Triangles: tris, Polygons: polys}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// VertexCount returns the number of base vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// HasKeys reports whether the mesh carries at least a basis key.
func (m *Mesh) HasKeys() bool {
	return m.Keys != nil && m.Keys.Len() > 0
}

// RestPose returns the basis key's positions if present, else the live
// vertex positions. Bindings use this so rebinds are independent of edits
// to the live mesh.
func (m *Mesh) RestPose() []mathutil.Vec3 {
	if m.HasKeys() {
		return m.Keys.Basis().Positions
	}
	return m.Positions
}

// EnsureBasis creates a basis key from the live positions when the mesh has
// no shape keys and reports whether one was created.
func (m *Mesh) EnsureBasis() bool {
	if m.HasKeys() {
		return false
	}
	if m.Keys == nil {
		m.Keys = &KeySet{}
	}
	m.Keys.Blocks = append(m.Keys.Blocks, &ShapeKey{
		Name:      BasisName,
		Positions: clonePositions(m.Positions),
		SliderMax: 1,
	})
	return true
}

// Validate checks triangle indices and per-vertex array lengths.
func (m *Mesh) Validate() error {
	n := len(m.Positions)
	for i, tri := range m.Triangles {
		for _, vi := range tri {
			if vi < 0 || vi >= n {
				return fmt.Errorf("mesh %s: triangle %d references vertex %d of %d", m.Name, i, vi, n)
			}
		}
	}
	for i, p := range m.Polygons {
		for _, vi := range p {
			if vi < 0 || vi >= n {
				return fmt.Errorf("mesh %s: polygon %d references vertex %d of %d", m.Name, i, vi, n)
			}
		}
	}
	if m.UVs != nil && len(m.UVs) != n {
		return fmt.Errorf("mesh %s: %d UVs for %d vertices", m.Name, len(m.UVs), n)
	}
	if m.Keys != nil {
		for _, k := range m.Keys.Blocks {
			if len(k.Positions) != n {
				return fmt.Errorf("mesh %s: key %q has %d vertices, mesh has %d", m.Name, k.Name, len(k.Positions), n)
			}
		}
	}
	return nil
}

func clonePositions(p []mathutil.Vec3) []mathutil.Vec3 {
	out := make([]mathutil.Vec3, len(p))
	copy(out, p)
	return out
}
