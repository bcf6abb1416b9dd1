package meshio

import (
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
)

func keyedQuad() *mesh.Mesh {
	m := &mesh.Mesh{
		Name:      "Face",
		Positions: []mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
		UVs:       [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
	}
	m.EnsureBasis()
	smile := m.Keys.Add("Smile", []mathutil.Vec3{{0, 0, 0.5}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0.25}})
	smile.Value = 0.5
	blink := m.Keys.Add("目パチ", []mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, -1}, {0, 1, 0}})
	blink.Driver = &mesh.Driver{SourceObject: "Body", SourceKey: "目パチ"}
	return m
}

func assertPosNear(t *testing.T, want, got []mathutil.Vec3) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, want[i][c], got[i][c], 1e-6)
		}
	}
}

func TestGLTFRoundTrip(t *testing.T) {
	for _, ext := range []string{".gltf", ".glb"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scene"+ext)
			src := keyedQuad()
			s := NewScene()
			s.Add(src)
			require.NoError(t, WriteGLTF(s, path))

			got, err := ReadGLTF(path)
			require.NoError(t, err)
			require.Len(t, got.Meshes, 1)
			m := got.Find("Face")
			require.NotNil(t, m)

			assert.Equal(t, src.Triangles, m.Triangles)
			assert.Equal(t, src.UVs, m.UVs)
			assert.Equal(t, []string{mesh.BasisName, "Smile", "目パチ"}, m.Keys.Names())
			assertPosNear(t, src.Positions, m.Positions)
			assertPosNear(t, src.Keys.Find("Smile").Positions, m.Keys.Find("Smile").Positions)
			assertPosNear(t, src.Keys.Find("目パチ").Positions, m.Keys.Find("目パチ").Positions)
			assert.InDelta(t, 0.5, m.Keys.Find("Smile").Value, 1e-7)
			require.NotNil(t, m.Keys.Find("目パチ").Driver)
			assert.Equal(t, "Body", m.Keys.Find("目パチ").Driver.SourceObject)
		})
	}
}

func TestGLTFRewritesExistingMesh(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.gltf")
	s := NewScene()
	s.Add(keyedQuad())
	require.NoError(t, WriteGLTF(s, first))

	loaded, err := ReadGLTF(first)
	require.NoError(t, err)
	m := loaded.Meshes[0]
	m.Keys.Remove("Smile")
	m.Keys.Add("Frown", []mathutil.Vec3{{0, 0, -1}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}})

	second := filepath.Join(dir, "b.gltf")
	require.NoError(t, WriteGLTF(loaded, second))
	again, err := ReadGLTF(second)
	require.NoError(t, err)
	require.Len(t, again.Meshes, 1)
	assert.Equal(t, []string{mesh.BasisName, "目パチ", "Frown"}, again.Meshes[0].Keys.Names())
	assert.InDelta(t, -1, again.Meshes[0].Keys.Find("Frown").Positions[0][2], 1e-6)
}

func TestGLTFKeepsPolygons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poly.gltf")
	pos := []mathutil.Vec3{{0, 0, 0}, {2, 0, 0}, {1, 0.5, 0}, {2, 2, 0}, {0, 2, 0}}
	m, err := mesh.FromPolygons("Dart", pos, [][]int{{0, 1, 2, 3, 4}})
	require.NoError(t, err)
	s := NewScene()
	s.Add(m)
	require.NoError(t, WriteGLTF(s, path))

	got, err := ReadGLTF(path)
	require.NoError(t, err)
	d := got.Find("Dart")
	require.NotNil(t, d)
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4}}, d.Polygons)
	assert.Equal(t, m.Triangles, d.Triangles)
}

func TestTrianglesForModes(t *testing.T) {
	strip := trianglesFor(gltf.PrimitiveTriangleStrip, []uint32{0, 1, 2, 3, 3, 4})
	assert.Equal(t, [][3]int{{0, 1, 2}, {2, 1, 3}}, strip)

	fan := trianglesFor(gltf.PrimitiveTriangleFan, []uint32{0, 1, 2, 3})
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}}, fan)

	list := trianglesFor(gltf.PrimitiveTriangles, []uint32{0, 1, 2, 2, 2, 3, 4})
	assert.Equal(t, [][3]int{{0, 1, 2}}, list)
}

func TestSTLRoundTripWelds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.stl")
	src := keyedQuad()
	require.NoError(t, WriteSTL(src, src.Keys.Find("Smile").Positions, path))

	m, err := ReadSTL(path, DefaultWeldDistance)
	require.NoError(t, err)
	assert.Len(t, m.Positions, 4)
	assert.Len(t, m.Triangles, 2)
	assertPosNear(t, src.Keys.Find("Smile").Positions, m.Positions)

	assert.Error(t, WriteSTL(src, src.Positions[:3], path))
}
