// Package batch runs transfer jobs over scene files with a worker pool and
// writes the transferred scenes, optional WebP previews and a manifest.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"skwrap/internal/logging"
	"skwrap/internal/mesh"
	"skwrap/internal/meshio"
	"skwrap/internal/postprocess"
	"skwrap/internal/raster"
	"skwrap/internal/texture"
	"skwrap/internal/transfer"
)

// Job is one scene file to process.
type Job struct {
	Input  string
	Output string // defaults to OutputDir/<input base name>
	Source string
	// Targets names meshes in the scene; nil selects every other mesh.
	Targets []string
	// STLTargets are imported and added to the scene as extra targets.
	STLTargets []string
	// Mask is an optional weight image sampled at each target's UVs to
	// scale smoothing per vertex.
	Mask string
}

// Config holds the settings shared by every job in a run.
type Config struct {
	OutputDir    string
	Transfer     transfer.Options
	WeldDistance float64

	Preview     bool
	RenderSize  int
	Supersample int

	Workers  int
	Progress time.Duration // progress log interval; 0 disables
}

// TargetEntry is the outcome for one target mesh.
type TargetEntry struct {
	Name     string   `json:"name"`
	Keys     []string `json:"keys,omitempty"`
	Pruned   []string `json:"pruned,omitempty"`
	Smoothed []string `json:"smoothed,omitempty"`
	Flipped  int      `json:"flipped,omitempty"`
	Previews []string `json:"previews,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Result holds the outcome of processing one job.
type Result struct {
	Input   string        `json:"input"`
	Output  string        `json:"output,omitempty"`
	Source  string        `json:"source"`
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	Targets []TargetEntry `json:"targets,omitempty"`
}

// Run processes all jobs using a worker pool. Results are in job order.
func Run(ctx context.Context, cfg Config, jobs []Job) []Result {
	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64
	log := logging.Logger()

	start := time.Now()

	done := make(chan struct{})
	if cfg.Progress > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Progress)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if p := processed.Load(); p > 0 {
						rate := float64(p) / time.Since(start).Seconds()
						log.Info("batch: progress", "done", p, "total", total, "jobs_per_sec", rate)
					}
				}
			}
		}()
	}

	workers := max(cfg.Workers, 1)
	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = processJob(ctx, cfg, jobs[idx])
				processed.Add(1)
			}
		}()
	}

	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)

	log.Info("batch: finished", "jobs", total, "elapsed", time.Since(start))
	return results
}

func processJob(ctx context.Context, cfg Config, job Job) Result {
	res := Result{Input: job.Input, Source: job.Source}
	fail := func(err error) Result {
		res.Error = err.Error()
		logging.Logger().Warn("batch: job failed", "input", job.Input, "err", err)
		return res
	}

	scene, err := meshio.ReadGLTF(job.Input)
	if err != nil {
		return fail(err)
	}
	src := scene.Find(job.Source)
	if src == nil {
		return fail(fmt.Errorf("source mesh %q not found", job.Source))
	}

	targets, err := selectTargets(scene, src, job.Targets)
	if err != nil {
		return fail(err)
	}
	weld := cfg.WeldDistance
	if weld <= 0 {
		weld = meshio.DefaultWeldDistance
	}
	for _, p := range job.STLTargets {
		m, err := meshio.ReadSTL(p, weld)
		if err != nil {
			return fail(err)
		}
		scene.Add(m)
		targets = append(targets, m)
	}

	opts := cfg.Transfer
	if job.Mask != "" && opts.Smooth != nil {
		mask, err := texture.LoadMask(job.Mask)
		if err != nil {
			return fail(err)
		}
		opts.SmoothWeights = func(tgt *mesh.Mesh) []float64 {
			if len(tgt.UVs) != tgt.VertexCount() {
				return nil
			}
			return texture.VertexWeights(mask, tgt.UVs)
		}
	}

	report, err := transfer.Run(ctx, transfer.Request{Source: src, Targets: targets, Options: opts})
	if err != nil {
		return fail(err)
	}

	res.Output = job.Output
	if res.Output == "" {
		res.Output = filepath.Join(cfg.OutputDir, filepath.Base(job.Input))
	}
	if err := os.MkdirAll(filepath.Dir(res.Output), 0755); err != nil {
		return fail(err)
	}
	if err := meshio.WriteGLTF(scene, res.Output); err != nil {
		return fail(err)
	}

	stem := strings.TrimSuffix(filepath.Base(res.Output), filepath.Ext(res.Output))
	for i, tr := range report.Results {
		e := TargetEntry{
			Name:     tr.Target,
			Keys:     tr.Keys,
			Pruned:   tr.Pruned,
			Smoothed: tr.Smoothed,
			Flipped:  tr.Flipped,
			Skipped:  tr.Skipped,
		}
		if err := errors.Join(tr.Err, tr.PruneErr, tr.SmoothErr); err != nil {
			e.Error = err.Error()
		}
		if cfg.Preview && tr.Err == nil && !tr.Skipped {
			previews, err := writePreviews(cfg, filepath.Join(cfg.OutputDir, stem), targets[i])
			if err != nil {
				return fail(err)
			}
			e.Previews = previews
		}
		res.Targets = append(res.Targets, e)
	}

	res.Success = report.Err() == nil
	if !res.Success {
		res.Error = report.Err().Error()
	}
	return res
}

// selectTargets resolves target names, or returns every mesh except src.
func selectTargets(scene *meshio.Scene, src *mesh.Mesh, names []string) ([]*mesh.Mesh, error) {
	if names == nil {
		var out []*mesh.Mesh
		for _, m := range scene.Meshes {
			if m != src {
				out = append(out, m)
			}
		}
		return out, nil
	}
	out := make([]*mesh.Mesh, 0, len(names))
	for _, n := range names {
		m := scene.Find(n)
		if m == nil {
			return nil, fmt.Errorf("target mesh %q not found", n)
		}
		out = append(out, m)
	}
	return out, nil
}

// writePreviews renders one displacement heat map per non-basis key of m
// into dir/<mesh>/<key>.webp and returns the paths relative to dir's parent.
func writePreviews(cfg Config, dir string, m *mesh.Mesh) ([]string, error) {
	if !m.HasKeys() {
		return nil, nil
	}
	size := cfg.RenderSize
	if size <= 0 {
		size = raster.DefaultOptions().Size
	}
	ropts := raster.Options{Size: size, Supersample: max(cfg.Supersample, 1)}

	outDir := filepath.Join(dir, fileSafe(m.Name))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	basis := m.Keys.Basis().Positions
	var paths []string
	for _, k := range m.Keys.Blocks[1:] {
		disp := raster.Magnitudes(basis, k.Positions)
		img := raster.RenderDisplacement(k.Positions, m.Triangles, disp, ropts)
		if ropts.Supersample > 1 {
			img = postprocess.Downsample(img, size)
		}

		p := filepath.Join(outDir, fileSafe(k.Name)+".webp")
		if err := encodeWebP(p, img); err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(filepath.Dir(dir), p)
		paths = append(paths, filepath.ToSlash(rel))
	}
	return paths, nil
}

func encodeWebP(path string, img *image.NRGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("webp encode %s: %w", path, err)
	}
	return f.Close()
}

// fileSafe replaces characters that cannot appear in a file name.
func fileSafe(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	if s := r.Replace(name); s != "" && s != "." && s != ".." {
		return s
	}
	return "_"
}
