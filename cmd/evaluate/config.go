package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Noofbiz/acousticEval/metrics"
)

// config is the effective command configuration after CLI flags and the
// optional JSON file are merged.
type config struct {
	Pattern      string  `json:"pattern"`
	Depth        int     `json:"depth"`
	Mode         string  `json:"mode"`
	Models       string  `json:"models"`
	Kind         string  `json:"kind"`
	Index        int     `json:"index"`
	Out          string  `json:"out"`
	Name         string  `json:"name"`
	Metrics      bool    `json:"metrics"`
	Workers      int     `json:"workers"`
	Device       string  `json:"device"`
	DB           string  `json:"db"`
	DomainLength float64 `json:"domain_length"`
	NormPolicy   string  `json:"norm_policy"`
}

// fileConfig mirrors config with pointer fields so absent JSON keys can be
// told apart from zero values.
type fileConfig struct {
	Pattern      *string  `json:"pattern"`
	Depth        *int     `json:"depth"`
	Mode         *string  `json:"mode"`
	Models       *string  `json:"models"`
	Kind         *string  `json:"kind"`
	Index        *int     `json:"index"`
	Out          *string  `json:"out"`
	Name         *string  `json:"name"`
	Metrics      *bool    `json:"metrics"`
	Workers      *int     `json:"workers"`
	Device       *string  `json:"device"`
	DB           *string  `json:"db"`
	DomainLength *float64 `json:"domain_length"`
	NormPolicy   *string  `json:"norm_policy"`
}

// loadFileConfig reads a JSON configuration file.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// overlay applies JSON values to cfg for every flag the user did not set
// explicitly on the command line.
func overlay(cfg *config, fc fileConfig, set map[string]bool) {
	str := func(flag string, dst *string, v *string) {
		if v != nil && !set[flag] {
			*dst = *v
		}
	}
	num := func(flag string, dst *int, v *int) {
		if v != nil && !set[flag] {
			*dst = *v
		}
	}
	str("pattern", &cfg.Pattern, fc.Pattern)
	num("depth", &cfg.Depth, fc.Depth)
	str("mode", &cfg.Mode, fc.Mode)
	str("models", &cfg.Models, fc.Models)
	str("kind", &cfg.Kind, fc.Kind)
	num("index", &cfg.Index, fc.Index)
	str("out", &cfg.Out, fc.Out)
	str("name", &cfg.Name, fc.Name)
	num("workers", &cfg.Workers, fc.Workers)
	str("device", &cfg.Device, fc.Device)
	str("db", &cfg.DB, fc.DB)
	str("norm-policy", &cfg.NormPolicy, fc.NormPolicy)
	if fc.Metrics != nil && !set["metrics"] {
		cfg.Metrics = *fc.Metrics
	}
	if fc.DomainLength != nil && !set["domain-length"] {
		cfg.DomainLength = *fc.DomainLength
	}
}

// validate checks the merged configuration.
func (c config) validate() error {
	switch c.Mode {
	case "batch", "rollout", "infer", "initial":
	default:
		return fmt.Errorf("unknown mode %q (choose batch, rollout, infer or initial)", c.Mode)
	}
	if c.Pattern == "" {
		return fmt.Errorf("no dataset pattern")
	}
	if c.Depth < 2 {
		return fmt.Errorf("depth must be at least 2, got %d", c.Depth)
	}
	if _, err := c.metricOptions(); err != nil {
		return err
	}
	return nil
}

// index returns the -index value, or nil when it was left unset.
func (c config) index() *int {
	if c.Index < 0 {
		return nil
	}
	idx := c.Index
	return &idx
}

func (c config) metricOptions() (metrics.Options, error) {
	opts := metrics.Options{DomainLength: c.DomainLength}
	switch strings.ToLower(c.NormPolicy) {
	case "", "error":
		opts.Policy = metrics.NormError
	case "propagate":
		opts.Policy = metrics.NormPropagate
	default:
		return opts, fmt.Errorf("unknown norm policy %q (choose error or propagate)", c.NormPolicy)
	}
	return opts, nil
}
