package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"skwrap/internal/batch"
	"skwrap/internal/config"
	"skwrap/internal/logging"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to a .json, .toml or .yaml config file")
	outputDir := flag.String("output", "", "Output directory (default: skwrap-out)")
	workers := flag.Int("workers", 0, "Number of scenes processed concurrently (default: NumCPU)")
	source := flag.String("source", "", "Source mesh name for scenes given as arguments")
	targets := flag.String("targets", "", "Comma-separated target mesh names (default: every other mesh)")
	keys := flag.String("keys", "", "Comma-separated shape keys to transfer (default: all)")
	stl := flag.String("stl", "", "Comma-separated STL files to import as extra targets")
	mask := flag.String("mask", "", "Weight mask image for smoothing, sampled at target UVs")
	overwrite := flag.Bool("overwrite", false, "Overwrite target keys with the same name")
	bindValues := flag.Bool("bind-values", false, "Drive target key values from the source keys")
	noiseRange := flag.String("noise", "", "Bind against a jittered source: min,max offset")
	seed := flag.Uint64("seed", 0, "Seed for -noise")
	pruneThreshold := flag.Float64("prune", 0, "Delete transferred keys that move no vertex further than this")
	smoothKeys := flag.Bool("smooth", false, "Write corrective-smoothed copies of transferred keys")
	noPreview := flag.Bool("no-preview", false, "Skip WebP displacement previews")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	flags := config.Flags{
		OutputDir:      *outputDir,
		Workers:        *workers,
		Keys:           splitList(*keys),
		Overwrite:      *overwrite,
		BindValues:     *bindValues,
		PruneThreshold: *pruneThreshold,
		Smooth:         *smoothKeys,
		NoPreview:      *noPreview,
	}
	if *noiseRange != "" {
		n, err := parseNoise(*noiseRange)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: -noise: %v\n", err)
			os.Exit(2)
		}
		n.Seed = *seed
		flags.Noise = n
	}

	// CLI flags override config file
	if err := cfg.Resolve(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	for _, in := range flag.Args() {
		if *source == "" {
			fmt.Fprintln(os.Stderr, "Error: -source is required for scenes given as arguments")
			os.Exit(2)
		}
		cfg.Jobs = append(cfg.Jobs, config.Job{
			Input:   in,
			Source:  *source,
			Targets: splitList(*targets),
			STL:     splitList(*stl),
			Mask:    *mask,
		})
	}

	if len(cfg.Jobs) == 0 {
		fmt.Println("No scenes to process.")
		os.Exit(0)
	}

	fmt.Printf("Shape-key transfer: %d scene(s), Workers: %d\n", len(cfg.Jobs), cfg.Workers)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	results := batch.Run(ctx, cfg.BatchConfig(), cfg.BatchJobs())

	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", time.Since(start).Seconds())

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
		fmt.Printf("%s\n", r.Input)
		for _, t := range r.Targets {
			status := fmt.Sprintf("%d keys", len(t.Keys))
			switch {
			case t.Skipped:
				status = "skipped"
			case t.Error != "":
				status = "error: " + t.Error
			}
			fmt.Printf("  %-24s %s\n", t.Name, status)
		}
		if !r.Success && r.Error != "" {
			fmt.Printf("  error: %s\n", r.Error)
		}
	}

	// Write manifest
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// splitList splits a comma-separated flag value; "" yields nil.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseNoise(s string) (*config.Noise, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("want min,max, got %q", s)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, err
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, err
	}
	return &config.Noise{Min: lo, Max: hi}, nil
}
