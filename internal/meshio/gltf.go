// Package meshio reads and writes meshes with shape keys: glTF 2.0 scenes
// (morph targets) and STL solids.
package meshio

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"skwrap/internal/logging"
	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
)

// Scene is a set of meshes loaded from, or destined for, a glTF file.
// All triangle primitives of one glTF mesh are merged into one mesh.Mesh
// because morph targets are declared per glTF mesh.
type Scene struct {
	Meshes []*mesh.Mesh

	doc  *gltf.Document
	refs map[*mesh.Mesh]meshRef
}

type meshRef struct {
	mesh  int
	prims []primRange
}

// primRange is the vertex range a primitive occupies in the merged mesh.
type primRange struct {
	prim   int
	lo, hi int
}

// targetDriver persists a mesh.Driver in the glTF mesh extras.
type targetDriver struct {
	Key          string `json:"key"`
	SourceObject string `json:"sourceObject"`
	SourceKey    string `json:"sourceKey"`
}

type meshExtras struct {
	TargetNames   []string       `json:"targetNames,omitempty"`
	TargetDrivers []targetDriver `json:"targetDrivers,omitempty"`
	// Polygons are the source faces in merged vertex numbering.
	Polygons [][]int `json:"polygons,omitempty"`
}

// NewScene returns an empty scene to which meshes can be added.
func NewScene() *Scene {
	return &Scene{doc: gltf.NewDocument(), refs: map[*mesh.Mesh]meshRef{}}
}

// Find returns the mesh with the given name or nil.
func (s *Scene) Find(name string) *mesh.Mesh {
	want := mesh.NameKey(name)
	for _, m := range s.Meshes {
		if mesh.NameKey(m.Name) == want {
			return m
		}
	}
	return nil
}

// Add appends m to the scene. It is written as a new glTF mesh and node.
func (s *Scene) Add(m *mesh.Mesh) {
	s.Meshes = append(s.Meshes, m)
}

// ReadGLTF loads every glTF mesh with at least one triangle primitive.
// Morph targets become shape keys on top of a "Basis" key built from
// POSITION; names come from extras.targetNames and values from weights.
func ReadGLTF(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: open %s: %w", path, err)
	}

	s := &Scene{doc: doc, refs: map[*mesh.Mesh]meshRef{}}
	for mi, gm := range doc.Meshes {
		m, ref, err := readMesh(doc, mi, gm)
		if err != nil {
			return nil, fmt.Errorf("meshio: %s: mesh %d: %w", path, mi, err)
		}
		if m == nil {
			continue
		}
		s.Meshes = append(s.Meshes, m)
		s.refs[m] = ref
	}
	logging.Logger().Debug("meshio: read glTF", "path", path, "meshes", len(s.Meshes))
	return s, nil
}

func meshName(doc *gltf.Document, mi int, gm *gltf.Mesh) string {
	if gm.Name != "" {
		return gm.Name
	}
	for _, n := range doc.Nodes {
		if n.Mesh != nil && int(*n.Mesh) == mi && n.Name != "" {
			return n.Name
		}
	}
	return fmt.Sprintf("mesh%d", mi)
}

func readMesh(doc *gltf.Document, mi int, gm *gltf.Mesh) (*mesh.Mesh, meshRef, error) {
	ref := meshRef{mesh: mi}
	m := &mesh.Mesh{Name: meshName(doc, mi, gm)}
	var extras meshExtras
	decodeExtras(gm.Extras, &extras)

	nTargets := len(extras.TargetNames)
	for _, p := range gm.Primitives {
		nTargets = max(nTargets, len(p.Targets))
	}
	var deltas [][]mathutil.Vec3
	if nTargets > 0 {
		deltas = make([][]mathutil.Vec3, nTargets)
	}
	uvsComplete := true

	for pi, p := range gm.Primitives {
		if !isTriangleMode(p.Mode) {
			continue
		}
		posIdx, ok := p.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		pos, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return nil, ref, fmt.Errorf("primitive %d positions: %w", pi, err)
		}

		var idx []uint32
		if p.Indices != nil {
			idx, err = modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
			if err != nil {
				return nil, ref, fmt.Errorf("primitive %d indices: %w", pi, err)
			}
		} else {
			idx = make([]uint32, len(pos))
			for i := range idx {
				idx[i] = uint32(i)
			}
		}

		lo := len(m.Positions)
		for _, v := range pos {
			m.Positions = append(m.Positions, mathutil.FromFloat32(v))
		}
		for _, t := range trianglesFor(p.Mode, idx) {
			m.Triangles = append(m.Triangles, [3]int{lo + t[0], lo + t[1], lo + t[2]})
		}

		if uvIdx, ok := p.Attributes[gltf.TEXCOORD_0]; ok && uvsComplete {
			uv, err := modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil)
			if err != nil {
				return nil, ref, fmt.Errorf("primitive %d uvs: %w", pi, err)
			}
			for _, c := range uv {
				m.UVs = append(m.UVs, [2]float64{float64(c[0]), float64(c[1])})
			}
		} else {
			uvsComplete = false
		}

		for ti := range deltas {
			d := make([]mathutil.Vec3, len(pos))
			if ti < len(p.Targets) {
				if tIdx, ok := p.Targets[ti][gltf.POSITION]; ok {
					raw, err := modeler.ReadPosition(doc, doc.Accessors[tIdx], nil)
					if err != nil {
						return nil, ref, fmt.Errorf("primitive %d target %d: %w", pi, ti, err)
					}
					if len(raw) != len(pos) {
						return nil, ref, fmt.Errorf("primitive %d target %d: %d deltas for %d vertices", pi, ti, len(raw), len(pos))
					}
					for i, v := range raw {
						d[i] = mathutil.FromFloat32(v)
					}
				}
			}
			deltas[ti] = append(deltas[ti], d...)
		}
		ref.prims = append(ref.prims, primRange{prim: pi, lo: lo, hi: len(m.Positions)})
	}

	if len(ref.prims) == 0 {
		return nil, ref, nil
	}
	if !uvsComplete {
		m.UVs = nil
	}
	if len(extras.Polygons) > 0 {
		m.Polygons = extras.Polygons
		if err := m.Validate(); err != nil {
			logging.Logger().Debug("meshio: ignoring polygons", "mesh", m.Name, "err", err)
			m.Polygons = nil
		}
	}

	if nTargets > 0 {
		m.EnsureBasis()
		drivers := make(map[string]targetDriver, len(extras.TargetDrivers))
		for _, d := range extras.TargetDrivers {
			drivers[d.Key] = d
		}
		for ti, d := range deltas {
			name := fmt.Sprintf("target%d", ti)
			if ti < len(extras.TargetNames) && extras.TargetNames[ti] != "" {
				name = extras.TargetNames[ti]
			}
			pos := make([]mathutil.Vec3, len(m.Positions))
			for i, p := range m.Positions {
				pos[i] = p.Add(d[i])
			}
			k := m.Keys.Add(name, pos)
			if ti < len(gm.Weights) {
				k.Value = float64(gm.Weights[ti])
			}
			if drv, ok := drivers[k.Name]; ok {
				k.Driver = &mesh.Driver{SourceObject: drv.SourceObject, SourceKey: drv.SourceKey}
			}
		}
	}
	return m, ref, nil
}

func isTriangleMode(mode gltf.PrimitiveMode) bool {
	return mode == gltf.PrimitiveTriangles || mode == gltf.PrimitiveTriangleStrip || mode == gltf.PrimitiveTriangleFan
}

// trianglesFor converts an index list of the given mode into triangles,
// dropping the degenerate ones strips use as restart separators.
func trianglesFor(mode gltf.PrimitiveMode, idx []uint32) [][3]int {
	var out [][3]int
	add := func(a, b, c uint32) {
		if a == b || b == c || a == c {
			return
		}
		out = append(out, [3]int{int(a), int(b), int(c)})
	}
	switch mode {
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(idx); i++ {
			if i%2 == 0 {
				add(idx[i], idx[i+1], idx[i+2])
			} else {
				add(idx[i+1], idx[i], idx[i+2])
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(idx); i++ {
			add(idx[0], idx[i], idx[i+1])
		}
	default:
		for i := 0; i+2 < len(idx); i += 3 {
			add(idx[i], idx[i+1], idx[i+2])
		}
	}
	return out
}

// decodeExtras reads the fields skwrap cares about from an extras value of
// any decoded shape.
func decodeExtras(extras any, dst *meshExtras) {
	if extras == nil {
		return
	}
	raw, err := json.Marshal(extras)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

// mergeExtras returns extras with targetNames, targetDrivers and polygons
// replaced, keeping any other members. It returns nil when nothing is left.
func mergeExtras(extras any, names []string, drivers []targetDriver, polys [][]int) any {
	out := map[string]any{}
	if extras != nil {
		if raw, err := json.Marshal(extras); err == nil {
			_ = json.Unmarshal(raw, &out)
		}
	}
	delete(out, "targetNames")
	delete(out, "targetDrivers")
	delete(out, "polygons")
	if len(names) > 0 {
		out["targetNames"] = names
	}
	if len(drivers) > 0 {
		out["targetDrivers"] = drivers
	}
	if len(polys) > 0 {
		out["polygons"] = polys
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// WriteGLTF saves the scene. Meshes read from a file are written back into
// their original glTF meshes: positions, indices and morph targets are
// replaced while materials and other attributes are kept. A ".glb"
// extension selects the binary container.
func WriteGLTF(s *Scene, path string) error {
	doc := s.doc
	if doc == nil {
		doc = gltf.NewDocument()
		s.doc = doc
		s.refs = map[*mesh.Mesh]meshRef{}
	}
	for _, m := range s.Meshes {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("meshio: %w", err)
		}
		ref, ok := s.refs[m]
		if !ok {
			ref = addMesh(doc, m)
			s.refs[m] = ref
		}
		writeMesh(doc, m, ref)
	}

	binary := strings.EqualFold(filepath.Ext(path), ".glb")
	for _, b := range doc.Buffers {
		switch {
		case binary && b.IsEmbeddedResource():
			b.URI = ""
		case !binary && (b.URI == "" || b.IsEmbeddedResource()):
			b.EmbeddedResource()
		}
	}

	var err error
	if binary {
		err = gltf.SaveBinary(doc, path)
	} else {
		err = gltf.Save(doc, path)
	}
	if err != nil {
		return fmt.Errorf("meshio: save %s: %w", path, err)
	}
	logging.Logger().Debug("meshio: wrote glTF", "path", path, "meshes", len(s.Meshes))
	return nil
}

// addMesh creates an empty glTF mesh with one primitive and a node for m.
func addMesh(doc *gltf.Document, m *mesh.Mesh) meshRef {
	mi := len(doc.Meshes)
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name:       m.Name,
		Primitives: []*gltf.Primitive{{Attributes: gltf.Attribute{}}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: m.Name, Mesh: gltf.Index(uint32(mi))})
	node := uint32(len(doc.Nodes) - 1)
	if len(doc.Scenes) == 0 {
		doc.Scenes = append(doc.Scenes, &gltf.Scene{})
		doc.Scene = gltf.Index(0)
	}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, node)
	return meshRef{mesh: mi, prims: []primRange{{prim: 0, lo: 0, hi: len(m.Positions)}}}
}

func writeMesh(doc *gltf.Document, m *mesh.Mesh, ref meshRef) {
	gm := doc.Meshes[ref.mesh]

	var keys []*mesh.ShapeKey
	basis := m.RestPose()
	if m.HasKeys() {
		keys = m.Keys.Blocks[1:]
	}

	for _, pr := range ref.prims {
		p := gm.Primitives[pr.prim]
		if p.Attributes == nil {
			p.Attributes = gltf.Attribute{}
		}
		p.Attributes[gltf.POSITION] = modeler.WritePosition(doc, toFloat32(basis[pr.lo:pr.hi]))
		if m.UVs != nil {
			uv := make([][2]float32, pr.hi-pr.lo)
			for i := range uv {
				c := m.UVs[pr.lo+i]
				uv[i] = [2]float32{float32(c[0]), float32(c[1])}
			}
			p.Attributes[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(doc, uv)
		}

		var idx []uint32
		for _, t := range m.Triangles {
			if t[0] < pr.lo || t[0] >= pr.hi {
				continue
			}
			idx = append(idx, uint32(t[0]-pr.lo), uint32(t[1]-pr.lo), uint32(t[2]-pr.lo))
		}
		p.Indices = gltf.Index(modeler.WriteIndices(doc, idx))
		p.Mode = gltf.PrimitiveTriangles

		p.Targets = nil
		for _, k := range keys {
			d := make([][3]float32, pr.hi-pr.lo)
			for i := range d {
				d[i] = k.Positions[pr.lo+i].Sub(basis[pr.lo+i]).Float32()
			}
			p.Targets = append(p.Targets, gltf.Attribute{gltf.POSITION: modeler.WritePosition(doc, d)})
		}
	}

	gm.Weights = nil
	var names []string
	var drivers []targetDriver
	for _, k := range keys {
		names = append(names, k.Name)
		gm.Weights = append(gm.Weights, float32(k.Value))
		if k.Driver != nil {
			drivers = append(drivers, targetDriver{Key: k.Name, SourceObject: k.Driver.SourceObject, SourceKey: k.Driver.SourceKey})
		}
	}
	gm.Extras = mergeExtras(gm.Extras, names, drivers, m.Polygons)
}

func toFloat32(pos []mathutil.Vec3) [][3]float32 {
	out := make([][3]float32, len(pos))
	for i, p := range pos {
		out[i] = p.Float32()
	}
	return out
}
