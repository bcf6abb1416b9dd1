package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
	"skwrap/internal/meshio"
	"skwrap/internal/transfer"
)

func grid(name string, n int, z float64) *mesh.Mesh {
	m := &mesh.Mesh{Name: name}
	step := 1 / float64(n-1)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			m.Positions = append(m.Positions, mathutil.Vec3{float64(x) * step, float64(y) * step, z})
			m.UVs = append(m.UVs, [2]float64{float64(x) * step, float64(y) * step})
		}
	}
	for y := 0; y+1 < n; y++ {
		for x := 0; x+1 < n; x++ {
			i := y*n + x
			m.Triangles = append(m.Triangles, [3]int{i, i + 1, i + n + 1}, [3]int{i, i + n + 1, i + n})
		}
	}
	return m
}

// writeScene stores a keyed "Body" grid and a plain "Shirt" grid.
func writeScene(t *testing.T, path string) {
	t.Helper()
	body := grid("Body", 6, 0)
	body.EnsureBasis()
	bump := make([]mathutil.Vec3, len(body.Positions))
	for i, p := range body.Positions {
		bump[i] = p
		if p[0] > 0.5 {
			bump[i][2] += 0.2
		}
	}
	body.Keys.Add("Bump", bump)

	s := meshio.NewScene()
	s.Add(body)
	s.Add(grid("Shirt", 4, 0.01))
	require.NoError(t, meshio.WriteGLTF(s, path))
}

func TestRunWritesSceneAndPreviews(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in", "avatar.glb")
	require.NoError(t, os.MkdirAll(filepath.Dir(in), 0755))
	writeScene(t, in)

	out := filepath.Join(dir, "out")
	cfg := Config{OutputDir: out, Preview: true, RenderSize: 16, Supersample: 2, Workers: 2}
	results := Run(context.Background(), cfg, []Job{{Input: in, Source: "Body"}})
	require.Len(t, results, 1)
	r := results[0]
	require.True(t, r.Success, r.Error)
	assert.Equal(t, filepath.Join(out, "avatar.glb"), r.Output)
	require.Len(t, r.Targets, 1)
	assert.Equal(t, "Shirt", r.Targets[0].Name)
	assert.Equal(t, []string{"Bump"}, r.Targets[0].Keys)
	assert.Equal(t, []string{"avatar/Shirt/Bump.webp"}, r.Targets[0].Previews)
	assert.FileExists(t, filepath.Join(out, "avatar", "Shirt", "Bump.webp"))

	scene, err := meshio.ReadGLTF(r.Output)
	require.NoError(t, err)
	shirt := scene.Find("Shirt")
	require.NotNil(t, shirt)
	require.NotNil(t, shirt.Keys.Find("Bump"))

	manifest := filepath.Join(out, "manifest.json")
	require.NoError(t, WriteManifest(manifest, results))
	m, err := ReadManifest(manifest)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Jobs)
	assert.Equal(t, 1, m.Succeeded)
	assert.Equal(t, results, m.Results)
}

func TestRunSTLTarget(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "avatar.gltf")
	writeScene(t, in)

	hat := grid("Hat", 3, 0.02)
	stlPath := filepath.Join(dir, "hat.stl")
	require.NoError(t, meshio.WriteSTL(hat, hat.Positions, stlPath))

	cfg := Config{OutputDir: filepath.Join(dir, "out"), Transfer: transfer.Options{Keys: []string{"Bump"}}}
	results := Run(context.Background(), cfg, []Job{{
		Input:      in,
		Source:     "Body",
		Targets:    []string{"Shirt"},
		STLTargets: []string{stlPath},
	}})
	r := results[0]
	require.True(t, r.Success, r.Error)
	require.Len(t, r.Targets, 2)
	assert.Equal(t, "Shirt", r.Targets[0].Name)
	assert.Equal(t, []string{"Bump"}, r.Targets[1].Keys)
	assert.Empty(t, r.Targets[1].Previews)
}

func TestRunReportsJobErrors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "avatar.glb")
	writeScene(t, in)

	jobs := []Job{
		{Input: filepath.Join(dir, "missing.glb"), Source: "Body"},
		{Input: in, Source: "Nobody"},
		{Input: in, Source: "Body", Targets: []string{"Cape"}},
	}
	results := Run(context.Background(), Config{OutputDir: dir, Workers: 3}, jobs)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Error)
	}
	assert.Contains(t, results[1].Error, "Nobody")
	assert.Contains(t, results[2].Error, "Cape")
}

func TestFileSafe(t *testing.T) {
	assert.Equal(t, "a_b_c", fileSafe("a/b:c"))
	assert.Equal(t, "_", fileSafe(".."))
	assert.Equal(t, "目パチ", fileSafe("目パチ"))
}
