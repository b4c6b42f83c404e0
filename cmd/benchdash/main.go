// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Benchdash turns renderer benchmark runs into a dashboard.
//
// A CI job runs the renderer, which writes a run log of per-sample
// errors and step times for each variant. Benchdash then:
//
//	benchdash record run.log result.json
//	benchdash append result.json benchmarks/history.csv
//	benchdash dashboard benchmarks/history.csv run.log README.md
//	benchdash plot run.log benchmarks/history.csv plots
//	benchdash publish gs://bucket/dashboard README.md plots/*.png
//
// record summarizes the run log into a run-result file. append adds
// the result's rows to the History Store, a CSV file that is only ever
// appended to. dashboard renders the latest result, the historical
// trend and the current run's convergence as Markdown (or HTML or
// plain text). plot draws the same trend and convergence as PNG
// charts. publish copies the artifacts to Google Cloud Storage or a
// local directory.
//
// Settings are read from benchdash.yaml or benchdash.toml in the
// current directory, or the file named by --config. The build version
// and commit come from the bench_version and GITHUB_SHA environment
// variables.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/tracyrender/benchdash/internal/config"
	"github.com/tracyrender/benchdash/storage/db"
	"github.com/tracyrender/benchdash/storage/fs"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/tracyrender/benchdash/storage/db/sqlite3"
)

func main() {
	log.SetPrefix("benchdash: ")
	log.SetFlags(0)
	if err := benchdash(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

// benchdash runs the command line args, writing confirmations to w
// and log messages to wErr.
func benchdash(ctx context.Context, w, wErr io.Writer, args []string) error {
	return newCommand(w, wErr).execute(ctx, args)
}

// A command holds the state shared by every subcommand.
type command struct {
	w, wErr io.Writer

	configPath string
	cfg        *config.Config
	env        *config.Env
	logger     hclog.Logger

	// now returns the time recorded in new run results.
	now func() time.Time
	// openFS opens a publishing destination, returning the FS and
	// the name prefix within it.
	openFS func(ctx context.Context, dest string) (fs.FS, string, error)
	// logTime includes timestamps in log lines.
	logTime bool
}

func newCommand(w, wErr io.Writer) *command {
	return &command{
		w:       w,
		wErr:    wErr,
		now:     time.Now,
		openFS:  openFS,
		logTime: true,
	}
}

func (c *command) execute(ctx context.Context, args []string) error {
	root := &cobra.Command{
		Use:   "benchdash",
		Short: "Aggregate renderer benchmark runs into a dashboard",
		Long: `Benchdash records renderer benchmark runs, keeps their history
and renders the history and the latest run as a dashboard.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Arguments have been validated; later errors are
			// not usage errors.
			cmd.SilenceUsage = true
			return c.setup()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "read settings from `file` (default benchdash.yaml or benchdash.toml)")
	root.AddCommand(
		c.recordCmd(),
		c.appendCmd(),
		c.dashboardCmd(),
		c.plotCmd(),
		c.publishCmd(),
	)
	root.SetArgs(args)
	root.SetOut(c.w)
	root.SetErr(c.wErr)
	return root.ExecuteContext(ctx)
}

// setup loads configuration and creates the logger.
func (c *command) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	env.Apply(cfg)
	c.cfg, c.env = cfg, env
	c.logger = hclog.New(&hclog.LoggerOptions{
		Name:        "benchdash",
		Level:       hclog.LevelFromString(cfg.LogLevel),
		Output:      c.wErr,
		DisableTime: !c.logTime,
	})
	c.logger.Debug("configured", "window", cfg.Window, "buckets", cfg.Buckets, "policy", cfg.Policy, "version", env.Version)
	return nil
}

// warn reports a recoverable problem with an input.
func (c *command) warn(format string, args ...interface{}) {
	c.logger.Warn(strings.TrimSuffix(fmt.Sprintf(format, args...), "\n"))
}

// openDB opens the History Store mirror named by source, a
// driver:dsn pair.
func (c *command) openDB(source string) (*db.DB, error) {
	driver, dsn, err := db.ParseSource(source)
	if err != nil {
		return nil, err
	}
	d, err := db.OpenSQL(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	c.logger.Debug("opened history mirror", "driver", driver)
	return d, nil
}
