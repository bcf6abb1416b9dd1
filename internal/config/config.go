// Package config loads skwrap run settings from a JSON, TOML or YAML file
// and merges command-line overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"skwrap/internal/batch"
	"skwrap/internal/noise"
	"skwrap/internal/prune"
	"skwrap/internal/smooth"
	"skwrap/internal/transfer"
)

// Config holds all configurable paths and transfer settings.
type Config struct {
	OutputDir string `json:"output_dir" toml:"output_dir" yaml:"output_dir"`
	Jobs      []Job  `json:"jobs" toml:"jobs" yaml:"jobs"`

	// Transfer settings
	Keys       []string `json:"keys" toml:"keys" yaml:"keys"`
	Overwrite  bool     `json:"overwrite" toml:"overwrite" yaml:"overwrite"`
	BindValues bool     `json:"bind_values" toml:"bind_values" yaml:"bind_values"`
	Noise      *Noise   `json:"noise" toml:"noise" yaml:"noise"`
	Prune      *Prune   `json:"prune" toml:"prune" yaml:"prune"`
	Smooth     *Smooth  `json:"smooth" toml:"smooth" yaml:"smooth"`

	// Output settings
	Preview      *bool   `json:"preview" toml:"preview" yaml:"preview"`
	RenderSize   int     `json:"render_size" toml:"render_size" yaml:"render_size"`
	Supersample  int     `json:"supersample" toml:"supersample" yaml:"supersample"`
	WeldDistance float64 `json:"weld_distance" toml:"weld_distance" yaml:"weld_distance"`
	Workers      int     `json:"workers" toml:"workers" yaml:"workers"`
}

// Job is one scene file to process. Relative paths resolve against the
// config file's directory.
type Job struct {
	Input   string   `json:"input" toml:"input" yaml:"input"`
	Output  string   `json:"output" toml:"output" yaml:"output"`
	Source  string   `json:"source" toml:"source" yaml:"source"`
	Targets []string `json:"targets" toml:"targets" yaml:"targets"`
	STL     []string `json:"stl" toml:"stl" yaml:"stl"`
	Mask    string   `json:"mask" toml:"mask" yaml:"mask"`
}

// Noise enables binding noise in [Min, Max].
type Noise struct {
	Min  float64 `json:"min" toml:"min" yaml:"min"`
	Max  float64 `json:"max" toml:"max" yaml:"max"`
	Seed uint64  `json:"seed" toml:"seed" yaml:"seed"`
}

// Prune enables empty-key pruning after transfer.
type Prune struct {
	Threshold float64 `json:"threshold" toml:"threshold" yaml:"threshold"`
}

// Smooth enables corrective smoothing after transfer.
type Smooth struct {
	Factor     float64 `json:"factor" toml:"factor" yaml:"factor"`
	Iterations int     `json:"iterations" toml:"iterations" yaml:"iterations"`
	Scale      float64 `json:"scale" toml:"scale" yaml:"scale"`
	Type       string  `json:"type" toml:"type" yaml:"type"`
	Overwrite  bool    `json:"overwrite" toml:"overwrite" yaml:"overwrite"`
	Prefix     string  `json:"prefix" toml:"prefix" yaml:"prefix"`
}

// Load reads a config file, choosing the format by extension
// (.json, .toml, .yaml or .yml). Fields not set in the file keep their
// zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config: %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range cfg.Jobs {
		cfg.Jobs[i].resolvePaths(base)
	}
	if cfg.OutputDir != "" && !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Join(base, cfg.OutputDir)
	}
	return cfg, nil
}

func (j *Job) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	j.Input = abs(j.Input)
	j.Output = abs(j.Output)
	j.Mask = abs(j.Mask)
	for i := range j.STL {
		j.STL[i] = abs(j.STL[i])
	}
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	OutputDir      string
	Workers        int
	Keys           []string
	Overwrite      bool
	BindValues     bool
	Noise          *Noise
	PruneThreshold float64 // > 0 enables pruning
	Smooth         bool
	NoPreview      bool
}

// Resolve applies flags over the file settings, then fills any remaining
// empty fields with defaults. Boolean flags can only switch features on.
func (c *Config) Resolve(flags Flags) error {
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Keys != nil {
		c.Keys = flags.Keys
	}
	c.Overwrite = c.Overwrite || flags.Overwrite
	c.BindValues = c.BindValues || flags.BindValues
	if flags.Noise != nil {
		c.Noise = flags.Noise
	}
	if flags.PruneThreshold > 0 {
		c.Prune = &Prune{Threshold: flags.PruneThreshold}
	}
	if flags.Smooth && c.Smooth == nil {
		c.Smooth = &Smooth{}
	}
	if flags.NoPreview {
		off := false
		c.Preview = &off
	}

	if c.OutputDir == "" {
		c.OutputDir = "skwrap-out"
	}
	if c.Prune != nil && c.Prune.Threshold <= 0 {
		c.Prune.Threshold = prune.DefaultThreshold
	}
	if c.Smooth != nil {
		def := smooth.DefaultOptions()
		if c.Smooth.Factor <= 0 {
			c.Smooth.Factor = def.Factor
		}
		if c.Smooth.Iterations <= 0 {
			c.Smooth.Iterations = def.Iterations
		}
		if c.Smooth.Prefix == "" {
			c.Smooth.Prefix = def.Prefix
		}
	}
	if c.Preview == nil {
		on := true
		c.Preview = &on
	}
	if c.RenderSize <= 0 {
		c.RenderSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.Noise != nil {
		if err := (noise.Range{Min: c.Noise.Min, Max: c.Noise.Max}).Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Smooth != nil && c.Smooth.Type != "" {
		if _, err := smooth.ParseType(c.Smooth.Type); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// TransferOptions converts the settings into the per-call options of the
// transfer engine. Targets run one at a time because jobs already run in
// parallel.
func (c *Config) TransferOptions() transfer.Options {
	opts := transfer.Options{
		Keys:       c.Keys,
		Overwrite:  c.Overwrite,
		BindValues: c.BindValues,
		Workers:    1,
	}
	if c.Noise != nil {
		opts.BindNoise = &noise.Range{Min: c.Noise.Min, Max: c.Noise.Max}
		opts.Seed = c.Noise.Seed
	}
	if c.Prune != nil {
		opts.Prune = &prune.Options{Threshold: c.Prune.Threshold}
	}
	if c.Smooth != nil {
		typ, _ := smooth.ParseType(c.Smooth.Type)
		opts.Smooth = &smooth.Options{
			Factor:     c.Smooth.Factor,
			Iterations: c.Smooth.Iterations,
			Scale:      c.Smooth.Scale,
			Type:       typ,
			Overwrite:  c.Smooth.Overwrite,
			Prefix:     c.Smooth.Prefix,
		}
	}
	return opts
}

// BatchConfig returns the shared settings for a batch run.
func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		OutputDir:    c.OutputDir,
		Transfer:     c.TransferOptions(),
		WeldDistance: c.WeldDistance,
		Preview:      c.Preview != nil && *c.Preview,
		RenderSize:   c.RenderSize,
		Supersample:  c.Supersample,
		Workers:      c.Workers,
		Progress:     2 * time.Second,
	}
}

// BatchJobs converts the configured jobs.
func (c *Config) BatchJobs() []batch.Job {
	jobs := make([]batch.Job, len(c.Jobs))
	for i, j := range c.Jobs {
		jobs[i] = batch.Job{
			Input:      j.Input,
			Output:     j.Output,
			Source:     j.Source,
			Targets:    j.Targets,
			STLTargets: j.STL,
			Mask:       j.Mask,
		}
	}
	return jobs
}
