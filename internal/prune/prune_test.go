package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
)

func meshWithKey(name string, move float64) *mesh.Mesh {
	m := &mesh.Mesh{
		Name:      "m",
		Positions: []mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Triangles: [][3]int{{0, 1, 2}},
	}
	m.EnsureBasis()
	pos := []mathutil.Vec3{{0, 0, 0}, {1 + move, 0, 0}, {0, 1, 0}}
	m.Keys.Add(name, pos)
	return m
}

func TestPruneThresholdBoundary(t *testing.T) {
	// Exactly at the threshold is not "more than" it, so the key is empty.
	m := meshWithKey("Smile", 0.5)
	res, err := Prune(m, []string{"Smile"}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Smile"}, res.Deleted)
	assert.Equal(t, []string{mesh.BasisName}, m.Keys.Names())

	m = meshWithKey("Smile", 0.5)
	res, err = Prune(m, []string{"Smile"}, 0.25)
	require.NoError(t, err)
	assert.Empty(t, res.Deleted)
	assert.Equal(t, 0.5, res.Stats["Smile"].Max)
	assert.InDelta(t, 0.5/3, res.Stats["Smile"].Mean, 1e-12)
}

func TestPruneOnlyTouchesNamedKeys(t *testing.T) {
	m := meshWithKey("Blink", 0)
	m.Keys.Add("Other", append([]mathutil.Vec3(nil), m.Positions...))

	res, err := Prune(m, []string{"Blink", "Missing", mesh.BasisName}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Blink"}, res.Deleted)
	assert.Equal(t, []string{mesh.BasisName, "Other"}, m.Keys.Names())
}

func TestPruneBlinkScenario(t *testing.T) {
	still := meshWithKey("Blink", 0)
	moved := meshWithKey("Blink", 0.01)

	r1, err := Prune(still, []string{"Blink"}, 0)
	require.NoError(t, err)
	r2, err := Prune(moved, []string{"Blink"}, 0)
	require.NoError(t, err)

	assert.Len(t, r1.Deleted, 1)
	assert.Empty(t, r2.Deleted)
	assert.NotNil(t, moved.Keys.Find("Blink"))
}

func TestPruneRequiresBasis(t *testing.T) {
	_, err := Prune(&mesh.Mesh{Name: "bare"}, []string{"x"}, 0)
	assert.ErrorIs(t, err, ErrNoBasis)
}
