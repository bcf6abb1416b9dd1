package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skwrap/internal/prune"
	"skwrap/internal/smooth"
)

const jsonConfig = `{
  "output_dir": "out",
  "keys": ["Smile", "Blink"],
  "noise": {"min": 0.0001, "max": 0.001, "seed": 7},
  "smooth": {"type": "length_weighted"},
  "jobs": [{"input": "scenes/avatar.glb", "source": "Body", "targets": ["Shirt"], "stl": ["hat.stl"]}]
}`

const tomlConfig = `
output_dir = "out"
keys = ["Smile", "Blink"]

[noise]
min = 0.0001
max = 0.001
seed = 7

[smooth]
type = "length_weighted"

[[jobs]]
input = "scenes/avatar.glb"
source = "Body"
targets = ["Shirt"]
stl = ["hat.stl"]
`

const yamlConfig = `
output_dir: out
keys: [Smile, Blink]
noise:
  min: 0.0001
  max: 0.001
  seed: 7
smooth:
  type: length_weighted
jobs:
  - input: scenes/avatar.glb
    source: Body
    targets: [Shirt]
    stl: [hat.stl]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadFormats(t *testing.T) {
	for name, content := range map[string]string{
		"skwrap.json": jsonConfig,
		"skwrap.toml": tomlConfig,
		"skwrap.yaml": yamlConfig,
	} {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, name, content)
			dir := filepath.Dir(path)
			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputDir)
			assert.Equal(t, []string{"Smile", "Blink"}, cfg.Keys)
			require.NotNil(t, cfg.Noise)
			assert.Equal(t, Noise{Min: 0.0001, Max: 0.001, Seed: 7}, *cfg.Noise)
			require.NotNil(t, cfg.Smooth)
			assert.Equal(t, "length_weighted", cfg.Smooth.Type)
			assert.Nil(t, cfg.Prune)

			require.Len(t, cfg.Jobs, 1)
			j := cfg.Jobs[0]
			assert.Equal(t, filepath.Join(dir, "scenes", "avatar.glb"), j.Input)
			assert.Equal(t, "Body", j.Source)
			assert.Equal(t, []string{"Shirt"}, j.Targets)
			assert.Equal(t, []string{filepath.Join(dir, "hat.stl")}, j.STL)
			assert.Empty(t, j.Mask)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "skwrap.ini", "x=1"))
	assert.ErrorContains(t, err, "unsupported format")

	_, err = Load(writeFile(t, "skwrap.json", "{"))
	assert.ErrorContains(t, err, "parse")
}

func TestResolveDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Resolve(Flags{}))
	assert.Equal(t, "skwrap-out", cfg.OutputDir)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 256, cfg.RenderSize)
	assert.Equal(t, 2, cfg.Supersample)
	require.NotNil(t, cfg.Preview)
	assert.True(t, *cfg.Preview)
	assert.Nil(t, cfg.Prune)
	assert.Nil(t, cfg.Smooth)
	assert.Nil(t, cfg.Noise)
}

func TestResolveFlagsOverride(t *testing.T) {
	cfg := Config{
		OutputDir: "file-out",
		Workers:   3,
		Keys:      []string{"A"},
		Prune:     &Prune{},
	}
	require.NoError(t, cfg.Resolve(Flags{
		OutputDir: "flag-out",
		Keys:      []string{"B", "C"},
		Smooth:    true,
		Overwrite: true,
		NoPreview: true,
	}))
	assert.Equal(t, "flag-out", cfg.OutputDir)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{"B", "C"}, cfg.Keys)
	assert.True(t, cfg.Overwrite)
	assert.False(t, *cfg.Preview)
	assert.Equal(t, prune.DefaultThreshold, cfg.Prune.Threshold)
	def := smooth.DefaultOptions()
	assert.Equal(t, Smooth{Factor: def.Factor, Iterations: def.Iterations, Prefix: def.Prefix}, *cfg.Smooth)

	require.NoError(t, cfg.Resolve(Flags{PruneThreshold: 0.01}))
	assert.Equal(t, 0.01, cfg.Prune.Threshold)
}

func TestResolveRejectsBadSettings(t *testing.T) {
	cfg := Config{Noise: &Noise{Min: 1, Max: 0}}
	assert.Error(t, cfg.Resolve(Flags{}))

	cfg = Config{Smooth: &Smooth{Type: "gaussian"}}
	assert.Error(t, cfg.Resolve(Flags{}))
}

func TestTransferOptions(t *testing.T) {
	cfg := Config{
		Keys:       []string{"Smile"},
		BindValues: true,
		Noise:      &Noise{Min: 0.1, Max: 0.2, Seed: 3},
		Prune:      &Prune{Threshold: 0.5},
		Smooth:     &Smooth{Type: "length_weighted"},
	}
	require.NoError(t, cfg.Resolve(Flags{}))
	opts := cfg.TransferOptions()

	assert.Equal(t, []string{"Smile"}, opts.Keys)
	assert.True(t, opts.BindValues)
	require.NotNil(t, opts.BindNoise)
	assert.Equal(t, 0.1, opts.BindNoise.Min)
	assert.Equal(t, uint64(3), opts.Seed)
	assert.Equal(t, 0.5, opts.Prune.Threshold)
	assert.Equal(t, smooth.LengthWeighted, opts.Smooth.Type)
	assert.Equal(t, "CS_", opts.Smooth.Prefix)

	bc := cfg.BatchConfig()
	assert.True(t, bc.Preview)
	assert.Equal(t, cfg.Workers, bc.Workers)
	assert.Equal(t, opts.Keys, bc.Transfer.Keys)
}

func TestBatchJobs(t *testing.T) {
	cfg := Config{Jobs: []Job{{Input: "a.glb", Source: "Body", STL: []string{"b.stl"}, Mask: "m.png"}}}
	jobs := cfg.BatchJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "a.glb", jobs[0].Input)
	assert.Equal(t, []string{"b.stl"}, jobs[0].STLTargets)
	assert.Equal(t, "m.png", jobs[0].Mask)
}
