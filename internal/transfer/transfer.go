// Package transfer copies shape keys from a source mesh onto target meshes
// of unrelated topology through a surface binding.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"skwrap/internal/binding"
	"skwrap/internal/logging"
	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
	"skwrap/internal/noise"
	"skwrap/internal/prune"
	"skwrap/internal/smooth"
	"skwrap/internal/spatial"
)

var (
	// ErrLengthMismatch is returned when a reconstructed pose does not fit
	// the destination key.
	ErrLengthMismatch = errors.New("transfer: reconstructed pose length does not match destination key")
	// ErrNoSourceKeys is returned when the source has nothing to transfer.
	ErrNoSourceKeys = errors.New("transfer: source mesh has no shape keys")
)

// Options controls one transfer request. The zero value transfers every
// source key, appending under disambiguated names.
type Options struct {
	// Keys selects source keys by name; nil selects all.
	Keys      []string
	Overwrite bool
	// BindNoise, if set, binds against a jittered copy of the source rest
	// pose. Reconstruction always uses the real key poses.
	BindNoise *noise.Range
	Seed      uint64
	// BindValues drives the written target keys from the source keys.
	BindValues bool
	Prune      *prune.Options
	Smooth     *smooth.Options
	// SmoothWeights, if set, supplies smooth.Options.Weights per target.
	SmoothWeights func(tgt *mesh.Mesh) []float64
	// Workers is the number of targets processed concurrently.
	Workers int
	Binding binding.Options
}

// Request is a source mesh, its targets and the options to apply.
type Request struct {
	Source  *mesh.Mesh
	Targets []*mesh.Mesh
	Options Options
}

// TargetResult reports the outcome for one target object.
type TargetResult struct {
	Target  string
	Skipped bool
	// Keys lists the keys created or overwritten, in source order. Empty
	// when Err is set: a failed target keeps its previous keys.
	Keys    []string
	Err     error
	Flipped int

	Pruned    []string
	PruneErr  error
	Smoothed  []string
	SmoothErr error
}

// Report collects per-target results in request order.
type Report struct {
	Results []TargetResult
}

// Err joins the transfer errors of all failed targets.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Target, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Run transfers the selected source keys onto every target. A failing
// target is rolled back and reported; the remaining targets still run.
// The returned error covers invalid requests only.
func Run(ctx context.Context, req Request) (*Report, error) {
	src := req.Source
	if src == nil {
		return nil, errors.New("transfer: nil source")
	}
	if !src.HasKeys() {
		return nil, fmt.Errorf("%w: %s", ErrNoSourceKeys, src.Name)
	}
	opts := req.Options
	log := logging.Logger()

	keys := selectKeys(src, opts.Keys)

	// The binding index depends only on the source, so one serves all targets.
	idx, idxErr := buildIndex(src, opts)

	report := &Report{Results: make([]TargetResult, len(req.Targets))}
	var work []int
	seen := map[*mesh.Mesh]bool{src: true}
	for i, t := range req.Targets {
		report.Results[i].Target = t.Name
		if seen[t] {
			report.Results[i].Skipped = true
			log.Warn("transfer: skipping target", "target", t.Name, "reason", "source or duplicate")
			continue
		}
		seen[t] = true
		work = append(work, i)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, max(len(work), 1))

	jobs := make(chan int, len(work))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := &report.Results[i]
				if idxErr != nil {
					res.Err = idxErr
					continue
				}
				transferTarget(ctx, src, req.Targets[i], idx, keys, opts, res)
			}
		}()
	}
	for _, i := range work {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return report, nil
}

func selectKeys(src *mesh.Mesh, names []string) []*mesh.ShapeKey {
	all := src.Keys.Blocks[1:]
	if names == nil {
		return all
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if src.Keys.Index(n) <= 0 {
			logging.Logger().Debug("transfer: source key not found", "source", src.Name, "key", n)
			continue
		}
		want[mesh.NameKey(n)] = true
	}
	var out []*mesh.ShapeKey
	for _, k := range all {
		if want[mesh.NameKey(k.Name)] {
			out = append(out, k)
		}
	}
	return out
}

func buildIndex(src *mesh.Mesh, opts Options) (*boundSource, error) {
	pose := src.RestPose()
	if opts.BindNoise != nil {
		var err error
		pose, err = noise.Perturb(pose, src.Triangles, *opts.BindNoise, noise.NewSource(opts.Seed))
		if err != nil {
			return nil, err
		}
	}
	idx, err := spatial.Build(src.Triangles, pose)
	if err != nil {
		return nil, fmt.Errorf("transfer: source %s: %w", src.Name, err)
	}
	bs := &boundSource{index: idx, pose: pose}
	if opts.BindNoise != nil {
		rest := src.RestPose()
		bs.jitter = make([]mathutil.Vec3, len(pose))
		for i := range pose {
			bs.jitter[i] = pose[i].Sub(rest[i])
		}
	}
	return bs, nil
}

// boundSource is the index and the pose it was built from. With noise
// enabled, jitter holds pose minus the rest pose; it is added to every key
// before reconstruction so the binding and the deformed pose carry the
// same offsets and the noise cancels out.
type boundSource struct {
	index  *spatial.Index
	pose   []mathutil.Vec3
	jitter []mathutil.Vec3
}

// deformed returns key in the frame the table was bound in.
func (bs *boundSource) deformed(key []mathutil.Vec3) []mathutil.Vec3 {
	if bs.jitter == nil || len(key) != len(bs.jitter) {
		return key
	}
	out := make([]mathutil.Vec3, len(key))
	for i, p := range key {
		out[i] = p.Add(bs.jitter[i])
	}
	return out
}

func transferTarget(ctx context.Context, src, tgt *mesh.Mesh, bs *boundSource, keys []*mesh.ShapeKey, opts Options, res *TargetResult) {
	log := logging.Logger().With("source", src.Name, "target", tgt.Name)

	written, flipped, err := writeKeys(ctx, tgt, bs, keys, opts)
	res.Flipped = flipped
	if err != nil {
		res.Err = err
		log.Warn("transfer: target restored after failure", "err", err)
		return
	}
	res.Keys = written
	if flipped > 0 {
		log.Warn("transfer: reconstructed vertices on inverted triangles", "count", flipped)
	}

	if opts.BindValues {
		BindValues(src, tgt, written)
	}

	remaining := written
	if opts.Prune != nil {
		pr, err := prune.Prune(tgt, written, opts.Prune.Threshold)
		res.Pruned, res.PruneErr = pr.Deleted, err
		if err != nil {
			log.Warn("transfer: prune failed", "err", err)
		}
		remaining = without(written, pr.Deleted)
	}
	if opts.Smooth != nil && len(remaining) > 0 {
		so := *opts.Smooth
		if opts.SmoothWeights != nil {
			so.Weights = opts.SmoothWeights(tgt)
		}
		sr, err := smooth.Smooth(tgt, remaining, so)
		res.Smoothed, res.SmoothErr = sr.Written, err
		if err != nil {
			log.Warn("transfer: smooth failed", "err", err)
		}
	}

	log.Info("transfer: target done", "keys", len(written), "pruned", len(res.Pruned), "smoothed", len(res.Smoothed))
}

// writeKeys binds tgt and writes every key. On any failure the target's key
// set is restored to its state before the call.
func writeKeys(ctx context.Context, tgt *mesh.Mesh, bs *boundSource, keys []*mesh.ShapeKey, opts Options) (written []string, flipped int, err error) {
	guard := borrowState(tgt)
	defer guard.release()

	snapshot, err := tgt.Keys.Clone()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err != nil {
			tgt.Keys = snapshot
			written = nil
		}
	}()

	if tgt.EnsureBasis() {
		logging.Logger().Debug("transfer: created basis", "target", tgt.Name)
	}

	table, err := binding.ComputeWithIndex(ctx, bs.index, bs.pose, tgt.RestPose(), opts.Binding)
	if err != nil {
		return nil, 0, err
	}

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, flipped, err
		}
		pos, st, err := table.ReconstructStats(bs.deformed(k.Positions))
		if err != nil {
			return nil, flipped, fmt.Errorf("key %q: %w", k.Name, err)
		}
		flipped += st.Flipped

		name, err := writeKey(tgt, k, pos, opts.Overwrite)
		if err != nil {
			return nil, flipped, err
		}
		written = append(written, name)
		logging.Logger().Debug("transfer: wrote key", "target", tgt.Name, "key", name)
	}
	return written, flipped, nil
}

func writeKey(tgt *mesh.Mesh, k *mesh.ShapeKey, pos []mathutil.Vec3, overwrite bool) (string, error) {
	if overwrite {
		if i := tgt.Keys.Index(k.Name); i > 0 {
			dst := tgt.Keys.Blocks[i]
			if len(dst.Positions) != len(pos) {
				return "", fmt.Errorf("%w: key %q has %d vertices, got %d", ErrLengthMismatch, dst.Name, len(dst.Positions), len(pos))
			}
			dst.Positions = pos
			return dst.Name, nil
		}
	}
	if len(pos) != tgt.VertexCount() {
		return "", fmt.Errorf("%w: mesh has %d vertices, got %d", ErrLengthMismatch, tgt.VertexCount(), len(pos))
	}
	dst := tgt.Keys.Add(k.Name, pos)
	dst.SliderMin, dst.SliderMax = k.SliderMin, k.SliderMax
	return dst.Name, nil
}

func without(names, drop []string) []string {
	if len(drop) == 0 {
		return names
	}
	gone := make(map[string]bool, len(drop))
	for _, d := range drop {
		gone[d] = true
	}
	var out []string
	for _, n := range names {
		if !gone[n] {
			out = append(out, n)
		}
	}
	return out
}
