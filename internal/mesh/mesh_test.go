package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwrap/internal/mathutil"
)

func quad() *Mesh {
	return &Mesh{
		Name:      "Quad",
		Positions: []mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

func TestTriangulate(t *testing.T) {
	tris, err := Triangulate([][]int{{0, 1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}, {4, 5, 6}}, tris)

	_, err = Triangulate([][]int{{0, 1}})
	assert.Error(t, err)
}

func TestFromPolygons(t *testing.T) {
	pos := []mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {2, 0, 0}}
	m, err := FromPolygons("Face", pos, [][]int{{0, 1, 2, 3}, {1, 4, 2}})
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}, {1, 4, 2}}, m.Triangles)
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {1, 4, 2}}, m.Polygons)

	_, err = FromPolygons("Bad", pos, [][]int{{0, 1, 9}})
	assert.Error(t, err)
}

func TestNormalsAndNeighbors(t *testing.T) {
	m := quad()
	for _, n := range FaceNormals(m.Positions, m.Triangles) {
		assert.Equal(t, mathutil.Vec3{0, 0, 1}, n)
	}
	for _, n := range VertexNormals(m.Positions, m.Triangles) {
		assert.InDelta(t, 1.0, n[2], 1e-12)
	}

	adj := Neighbors(4, m.Triangles)
	assert.Equal(t, []int{1, 2, 3}, adj[0])
	assert.Equal(t, []int{0, 2}, adj[1])

	faces := EdgeFaces(m.Triangles)
	assert.Equal(t, 2, faces[Edge{0, 2}])
	assert.Equal(t, 1, faces[Edge{0, 1}])
}

func TestEnsureBasisAndRestPose(t *testing.T) {
	m := quad()
	assert.Equal(t, m.Positions, m.RestPose())
	assert.True(t, m.EnsureBasis())
	assert.False(t, m.EnsureBasis())
	assert.Equal(t, BasisName, m.Keys.Basis().Name)

	// Editing the live mesh must not move the rest pose.
	m.Positions[0] = mathutil.Vec3{9, 9, 9}
	assert.Equal(t, mathutil.Vec3{0, 0, 0}, m.RestPose()[0])
}

func TestKeySetNaming(t *testing.T) {
	m := quad()
	m.EnsureBasis()
	a := m.Keys.Add("Smile", m.Keys.Basis().Positions)
	b := m.Keys.Add("Smile", m.Keys.Basis().Positions)
	c := m.Keys.Add("Smile.001", m.Keys.Basis().Positions)
	assert.Equal(t, "Smile", a.Name)
	assert.Equal(t, "Smile.001", b.Name)
	assert.Equal(t, "Smile.002", c.Name)

	assert.False(t, m.Keys.Remove(BasisName))
	assert.True(t, m.Keys.Remove("Smile.001"))
	assert.Equal(t, []string{BasisName, "Smile", "Smile.002"}, m.Keys.Names())

	m.Keys.Insert(2, &ShapeKey{Name: "CS_Smile"})
	assert.Equal(t, []string{BasisName, "Smile", "CS_Smile", "Smile.002"}, m.Keys.Names())
	m.Keys.Insert(0, &ShapeKey{Name: "First"})
	assert.Equal(t, "First", m.Keys.Blocks[1].Name)
}

func TestNameKeyMatchesDecomposedForms(t *testing.T) {
	m := quad()
	m.EnsureBasis()
	// Decomposed "ka" + combining dakuten vs precomposed "ga".
	m.Keys.Add("\u304b\u3099", m.Keys.Basis().Positions)
	assert.Equal(t, 1, m.Keys.Index("\u304c"))
	assert.Equal(t, -1, m.Keys.Index("\u304b"))
}

func TestIndexRefusesAmbiguousNormalization(t *testing.T) {
	m := quad()
	m.EnsureBasis()
	nfc := "\u30ac\u30d1"             // ガパ precomposed
	nfd := "\u30ab\u3099\u30cf\u309a" // both decomposed
	mixed := "\u30ac\u30cf\u309a"     // first precomposed, second decomposed
	m.Keys.Blocks = append(m.Keys.Blocks,
		&ShapeKey{Name: nfc, Positions: m.Positions},
		&ShapeKey{Name: nfd, Positions: m.Positions},
	)

	assert.Equal(t, 1, m.Keys.Index(nfc))
	assert.Equal(t, 2, m.Keys.Index(nfd))
	assert.Equal(t, -1, m.Keys.Index(mixed))
	assert.Nil(t, m.Keys.Find(mixed))
	assert.False(t, m.Keys.Remove(mixed))
	assert.Len(t, m.Keys.Blocks, 3)

	// A new key colliding with either form is still disambiguated.
	k := m.Keys.Add(mixed, m.Positions)
	assert.Equal(t, mixed+".001", k.Name)

	assert.True(t, m.Keys.Remove(nfd))
	assert.Equal(t, []string{BasisName, nfc, mixed + ".001"}, m.Keys.Names())
	assert.Equal(t, 1, m.Keys.Index(mixed), "unique once the other form is gone")
}

func TestValidate(t *testing.T) {
	m := quad()
	require.NoError(t, m.Validate())

	m.Triangles = append(m.Triangles, [3]int{0, 1, 7})
	assert.Error(t, m.Validate())

	m = quad()
	m.EnsureBasis()
	m.Keys.Add("Short", m.Positions[:2])
	assert.Error(t, m.Validate())
}

func TestKeySetCloneIsDeep(t *testing.T) {
	m := quad()
	m.EnsureBasis()
	k := m.Keys.Add("Smile", clonePositions(m.Positions))
	k.Driver = &Driver{SourceObject: "Body", SourceKey: "Smile"}

	c, err := m.Keys.Clone()
	require.NoError(t, err)
	require.Equal(t, m.Keys.Names(), c.Names())

	k.Positions[0] = mathutil.Vec3{7, 7, 7}
	k.Driver.SourceKey = "Frown"
	m.Keys.Remove("Smile")

	got := c.Find("Smile")
	require.NotNil(t, got)
	assert.Equal(t, mathutil.Vec3{0, 0, 0}, got.Positions[0])
	assert.Equal(t, "Smile", got.Driver.SourceKey)
}
