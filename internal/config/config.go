// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads benchdash settings from an optional YAML or
// TOML file and from the CI environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tracyrender/benchdash/resample"
	"github.com/tracyrender/benchdash/runlog"
	"github.com/tracyrender/benchdash/trend"
)

// Config holds the tunable settings of a dashboard build.
type Config struct {
	// Window is the number of most recent builds in the trend.
	// Zero or less means every build.
	Window int `yaml:"window" toml:"window"`
	// Buckets is the number of shared convergence checkpoints.
	Buckets int `yaml:"buckets" toml:"buckets"`
	// Policy is the resampling policy past a variant's completion:
	// "hold" or "truncate".
	Policy string `yaml:"policy" toml:"policy"`
	// Grace is the truncate policy's margin past completion.
	Grace float64 `yaml:"grace" toml:"grace"`
	// Markers are the run log section marker prefixes.
	Markers []string `yaml:"markers" toml:"markers"`
	// ChartWidth and ChartHeight are chart dimensions in inches.
	ChartWidth  float64 `yaml:"chart_width" toml:"chart_width"`
	ChartHeight float64 `yaml:"chart_height" toml:"chart_height"`
	// DB is an optional History Store mirror, as driver:dsn.
	DB string `yaml:"db" toml:"db"`
	// LogLevel is the minimum level logged: trace, debug, info,
	// warn or error.
	LogLevel string `yaml:"log_level" toml:"log_level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Window:      trend.DefaultWindow,
		Buckets:     resample.DefaultOptions.Buckets,
		Policy:      resample.DefaultOptions.Policy.String(),
		Grace:       resample.DefaultOptions.Grace,
		Markers:     append([]string(nil), runlog.DefaultMarkers...),
		ChartWidth:  10,
		ChartHeight: 5,
		LogLevel:    "info",
	}
}

// SearchPath lists the files Load tries, in order, when no path is
// given.
var SearchPath = []string{"benchdash.yaml", "benchdash.yml", "benchdash.toml"}

// Load reads configuration from a file. If path is empty, Load tries
// each file in SearchPath and returns the defaults if none exists.
// Settings the file omits keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, name := range SearchPath {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config file %s: unknown format (want .yaml or .toml)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting in c.
func (c *Config) Validate() error {
	var errs []error
	if c.Buckets < 2 {
		errs = append(errs, fmt.Errorf("buckets must be at least 2, have %d", c.Buckets))
	}
	if _, err := resample.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Grace < 0 {
		errs = append(errs, fmt.Errorf("grace must not be negative, have %v", c.Grace))
	}
	if c.ChartWidth <= 0 || c.ChartHeight <= 0 {
		errs = append(errs, fmt.Errorf("chart size %vx%v must be positive", c.ChartWidth, c.ChartHeight))
	}
	for _, m := range c.Markers {
		if m == "" {
			errs = append(errs, errors.New("empty section marker"))
			break
		}
	}
	return errors.Join(errs...)
}

// ResampleOptions returns the resampler settings of c.
func (c *Config) ResampleOptions() (resample.Options, error) {
	p, err := resample.ParsePolicy(c.Policy)
	if err != nil {
		return resample.Options{}, err
	}
	return resample.Options{Buckets: c.Buckets, Policy: p, Grace: c.Grace}, nil
}

// Env is the CI environment a run is recorded in.
type Env struct {
	// Version is the build's base version.
	Version string `env:"bench_version" envDefault:"0.0.0-unknown"`
	// Commit is the commit hash being benchmarked.
	Commit string `env:"GITHUB_SHA" envDefault:"local-dev"`
	// LogLevel and DB override the corresponding Config settings.
	LogLevel string `env:"BENCHDASH_LOG_LEVEL"`
	DB       string `env:"BENCHDASH_DB"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv returns the CI environment.
func LoadEnv() (*Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Apply copies settings from e that override the file configuration.
func (e *Env) Apply(c *Config) {
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.DB != "" {
		c.DB = e.DB
	}
}
