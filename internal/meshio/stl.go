package meshio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hschendel/stl"

	"skwrap/internal/logging"
	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
	"skwrap/internal/spatial"
)

// DefaultWeldDistance merges STL corners closer than this.
const DefaultWeldDistance = 1e-6

// ReadSTL loads an ASCII or binary STL file. STL stores every triangle with
// its own corners, so corners within weldDist are merged into shared
// vertices; triangles that collapse in the process are dropped.
func ReadSTL(path string, weldDist float64) (*mesh.Mesh, error) {
	solid, err := stl.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: read %s: %w", path, err)
	}

	corners := make([]mathutil.Vec3, 0, len(solid.Triangles)*3)
	for _, t := range solid.Triangles {
		for _, v := range t.Vertices {
			corners = append(corners, mathutil.FromFloat32(v))
		}
	}
	remap, reps := spatial.Weld(corners, weldDist)

	name := solid.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	m := &mesh.Mesh{Name: name, Positions: reps}
	dropped := 0
	for i := 0; i+2 < len(remap); i += 3 {
		a, b, c := remap[i], remap[i+1], remap[i+2]
		if a == b || b == c || a == c {
			dropped++
			continue
		}
		m.Triangles = append(m.Triangles, [3]int{a, b, c})
	}

	logging.Logger().Debug("meshio: read STL", "path", path, "triangles", len(m.Triangles),
		"vertices", len(reps), "dropped", dropped)
	return m, nil
}

// WriteSTL writes pos over m's triangles as a binary STL. Pass a key's
// positions to export that pose.
func WriteSTL(m *mesh.Mesh, pos []mathutil.Vec3, path string) error {
	if len(pos) != m.VertexCount() {
		return fmt.Errorf("meshio: %s: %d positions for %d vertices", m.Name, len(pos), m.VertexCount())
	}
	solid := &stl.Solid{Name: m.Name, Triangles: make([]stl.Triangle, len(m.Triangles))}
	for i, t := range m.Triangles {
		a, b, c := pos[t[0]], pos[t[1]], pos[t[2]]
		solid.Triangles[i] = stl.Triangle{
			Normal:   stl.Vec3(mathutil.TriangleNormal(a, b, c).Float32()),
			Vertices: [3]stl.Vec3{stl.Vec3(a.Float32()), stl.Vec3(b.Float32()), stl.Vec3(c.Float32())},
		}
	}
	if err := solid.WriteFile(path); err != nil {
		return fmt.Errorf("meshio: write %s: %w", path, err)
	}
	return nil
}
