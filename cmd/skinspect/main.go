package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"skwrap/internal/diagnose"
	"skwrap/internal/mesh"
	"skwrap/internal/meshio"
	"skwrap/internal/prune"
)

func main() {
	weld := flag.Float64("weld", meshio.DefaultWeldDistance, "STL vertex weld distance")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: skinspect [-weld d] scene.glb|scene.gltf|solid.stl ...")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		meshes, err := load(path, *weld)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s: %d mesh(es)\n", path, len(meshes))
		for _, m := range meshes {
			if !describe(os.Stdout, m) {
				failed = true
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}

func load(path string, weld float64) ([]*mesh.Mesh, error) {
	if strings.EqualFold(filepath.Ext(path), ".stl") {
		m, err := meshio.ReadSTL(path, weld)
		if err != nil {
			return nil, err
		}
		return []*mesh.Mesh{m}, nil
	}
	s, err := meshio.ReadGLTF(path)
	if err != nil {
		return nil, err
	}
	return s.Meshes, nil
}

// describe prints geometry, keys and diagnostics for m and reports whether
// the mesh passed every check.
func describe(w io.Writer, m *mesh.Mesh) bool {
	b := mesh.Bounds(m.Positions)
	size := b.Size()
	fmt.Fprintf(w, "  Mesh %q: verts=%d, tris=%d, polys=%d, uvs=%t\n",
		m.Name, m.VertexCount(), len(m.Triangles), len(m.Polygons), len(m.UVs) > 0)
	if m.VertexCount() > 0 {
		fmt.Fprintf(w, "    BBox: X[%.4g, %.4g] Y[%.4g, %.4g] Z[%.4g, %.4g]\n",
			b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
		fmt.Fprintf(w, "    Size: %.4g x %.4g x %.4g\n", size[0], size[1], size[2])
	}

	if m.HasKeys() {
		basis := m.Keys.Basis()
		fmt.Fprintf(w, "    Keys: %d (basis %q)\n", m.Keys.Len()-1, basis.Name)
		for _, k := range m.Keys.Blocks[1:] {
			line := fmt.Sprintf("      %-24s value=%.3g", k.Name, k.Value)
			if len(k.Positions) == len(basis.Positions) {
				st := prune.Displacement(basis.Positions, k.Positions)
				line += fmt.Sprintf(" max=%.4g mean=%.4g", st.Max, st.Mean)
				if st.Max <= prune.DefaultThreshold {
					line += " (empty)"
				}
			} else {
				line += fmt.Sprintf(" (bad length %d)", len(k.Positions))
			}
			if k.Driver != nil {
				line += fmt.Sprintf(" driver=%s:%s", k.Driver.SourceObject, k.Driver.SourceKey)
			}
			fmt.Fprintln(w, line)
		}
	}

	r := diagnose.Check(m)
	fmt.Fprintf(w, "    Check: %s\n", r.String())
	if len(r.ConcavePolygons) > 0 {
		fmt.Fprintf(w, "    Concave polygons: %v\n", r.ConcavePolygons)
	}
	return r.OK()
}
