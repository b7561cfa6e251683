// Command evaluate scores surrogate models of acoustic pressure fields on a
// recorded simulation, either per sample (batch) or autoregressively
// (rollout), and renders the results.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Noofbiz/acousticEval/baseline"
	"github.com/Noofbiz/acousticEval/datasets"
	"github.com/Noofbiz/acousticEval/evaluate"
	"github.com/Noofbiz/acousticEval/metrics"
	"github.com/Noofbiz/acousticEval/present"
	"github.com/Noofbiz/acousticEval/rollout"
	"github.com/Noofbiz/acousticEval/store"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	cfg := config{}
	flag.StringVar(&cfg.Pattern, "pattern", "datasets/assets/sim/*.csv", "glob pattern for simulation CSV files")
	flag.IntVar(&cfg.Depth, "depth", 4, "temporal depth D of every sample")
	flag.StringVar(&cfg.Mode, "mode", "batch", "evaluation mode: batch, rollout, infer or initial")
	flag.StringVar(&cfg.Models, "models", "persistence,damped", "comma-separated models (persistence, zero, damped[:decay])")
	flag.StringVar(&cfg.Kind, "kind", "pressure", "visualization kind for rollout and infer: pressure, animation or error")
	flag.IntVar(&cfg.Index, "index", -1, "sample index (pressure/error window start, animation length); -1 uses the default")
	flag.StringVar(&cfg.Out, "out", "", "output path of the rendered figure (default depends on kind)")
	flag.StringVar(&cfg.Name, "name", "", "label used in figure titles; defaults to the model name")
	flag.BoolVar(&cfg.Metrics, "metrics", true, "compute rollout metrics")
	flag.IntVar(&cfg.Workers, "workers", 0, "evaluate up to this many models concurrently in batch mode")
	flag.StringVar(&cfg.Device, "device", evaluate.DefaultDevice, "compute device models are placed on")
	flag.StringVar(&cfg.DB, "db", "", "if set, store batch and rollout results in this SQLite database")
	flag.Float64Var(&cfg.DomainLength, "domain-length", 0, "physical side length of the grid for the H1 loss (0 = 2π)")
	flag.StringVar(&cfg.NormPolicy, "norm-policy", "error", "zero-norm targets: error or propagate (NaN/Inf)")
	configPath := flag.String("config", "", "path to a JSON configuration file; explicit flags take precedence")
	printEffectiveConfig := flag.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")
	flag.Parse()

	if *configPath != "" {
		set := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fc, err := loadFileConfig(*configPath)
		if err != nil {
			klog.Fatalf("failed to load config: %v", err)
		}
		overlay(&cfg, fc, set)
		klog.Infof("Loaded configuration from %s", *configPath)
	}

	if *printEffectiveConfig {
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			klog.Fatalf("failed to encode config: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	if err := cfg.validate(); err != nil {
		klog.Fatalf("invalid configuration: %v", err)
	}
	if err := run(cfg); err != nil {
		klog.Fatalf("%s failed: %v", cfg.Mode, err)
	}
}

func run(cfg config) error {
	globPaths, _ := filepath.Glob(cfg.Pattern)
	klog.Infof("Using CSV pattern: %s (found %d files)", cfg.Pattern, len(globPaths))

	ds, err := datasets.NewSimulationDataset(cfg.Pattern, cfg.Depth)
	if err != nil {
		return fmt.Errorf("open simulation: %w", err)
	}
	h, w := ds.Grid()
	klog.Infof("Simulation loaded: %s frames on a %dx%d grid, %s samples",
		humanize.Comma(int64(ds.Frames())), h, w, humanize.Comma(int64(ds.Len())))

	if cfg.Mode == "initial" {
		return plotInitial(cfg, ds)
	}

	models, err := baseline.ParseModels(cfg.Models, cfg.Depth)
	if err != nil {
		return err
	}
	metricOpts, err := cfg.metricOptions()
	if err != nil {
		return err
	}

	switch cfg.Mode {
	case "batch":
		results, err := evaluate.Evaluate(models, ds, evaluate.Options{
			Device:  cfg.Device,
			Workers: cfg.Workers,
			Metrics: metricOpts,
			Report:  os.Stdout,
		})
		if err != nil {
			return err
		}
		return saveRun(cfg, store.ModeBatch, ds, results)
	case "rollout":
		return runRollout(cfg, ds, models, rollout.Options{
			Device:         cfg.Device,
			ComputeMetrics: cfg.Metrics,
			Metrics:        metricOpts,
			Report:         os.Stdout,
		})
	case "infer":
		return runInfer(cfg, ds, models)
	}
	return fmt.Errorf("unknown mode %q", cfg.Mode)
}

func runRollout(cfg config, ds *datasets.SimulationDataset, models map[string]evaluate.Predictor, opts rollout.Options) error {
	kind, err := present.ParseKind(cfg.Kind)
	if err != nil {
		return err
	}
	names := baseline.Names(models)
	results := make(map[string]metrics.Values, len(names))
	for _, name := range names {
		opts.Name = name
		res, err := rollout.Run(models[name], ds, opts)
		if err != nil {
			return err
		}
		klog.Infof("Sampled %s initial conditions for %s", humanize.Comma(int64(res.Len())), name)
		if res.Metrics != nil {
			results[name] = *res.Metrics
		}

		trueSeq, predSeq, err := rollout.Window(res, kind, cfg.index(), ds.Depth())
		if err != nil {
			return err
		}
		path, err := present.Render(predSeq, trueSeq, present.RenderOptions{
			Kind: kind,
			Path: outputPath(cfg.Out, kind, name, len(names)),
			Name: label(cfg.Name, name) + " (iterative)",
		})
		if err != nil {
			return err
		}
		klog.Infof("Wrote %s for %s to %s", kind, name, path)
	}
	if !cfg.Metrics {
		return nil
	}
	return saveRun(cfg, store.ModeRollout, ds, results)
}

func runInfer(cfg config, ds *datasets.SimulationDataset, models map[string]evaluate.Predictor) error {
	kind, err := present.ParseKind(cfg.Kind)
	if err != nil {
		return err
	}
	names := baseline.Names(models)
	for _, name := range names {
		pred, target, err := evaluate.Infer(models[name], ds, cfg.index(), cfg.Device)
		if err != nil {
			return err
		}
		predSeq, err := pred.Frames(0, pred.Len())
		if err != nil {
			return err
		}
		trueSeq, err := target.Frames(0, target.Len())
		if err != nil {
			return err
		}
		path, err := present.Render(predSeq, trueSeq, present.RenderOptions{
			Kind: kind,
			Path: outputPath(cfg.Out, kind, name, len(names)),
			Name: label(cfg.Name, name),
		})
		if err != nil {
			return err
		}
		klog.Infof("Wrote %s for %s to %s", kind, name, path)
	}
	return nil
}

func plotInitial(cfg config, ds *datasets.SimulationDataset) error {
	idx := ds.Len() / 2
	if p := cfg.index(); p != nil {
		idx = *p
	}
	s, err := ds.Sample(idx)
	if err != nil {
		return err
	}
	path, err := present.PlotInitialConditions(s, cfg.Out)
	if err != nil {
		return err
	}
	klog.Infof("Wrote initial conditions of sample %d to %s", idx, path)
	return nil
}

func saveRun(cfg config, mode store.Mode, ds *datasets.SimulationDataset, results map[string]metrics.Values) error {
	if cfg.DB == "" {
		return nil
	}
	st, err := store.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()
	id, err := st.SaveRun(store.Run{
		Mode:    mode,
		Pattern: cfg.Pattern,
		Depth:   ds.Depth(),
		Samples: ds.Len(),
		Device:  cfg.Device,
		Results: results,
	})
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	klog.Infof("Stored %s run %s in %s", mode, id, cfg.DB)
	return nil
}

// outputPath keeps one file per model when several models render to the
// same target.
func outputPath(out string, kind present.Kind, model string, models int) string {
	if models < 2 {
		return out
	}
	if out == "" {
		out = present.DefaultPath(kind)
	}
	ext := filepath.Ext(out)
	safe := strings.NewReplacer(":", "_", "/", "_").Replace(model)
	return strings.TrimSuffix(out, ext) + "_" + safe + ext
}

func label(name, model string) string {
	if name != "" {
		return name
	}
	return model
}
