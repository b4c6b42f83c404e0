// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tracyrender/benchdash/history"
	"github.com/tracyrender/benchdash/report"
	"github.com/tracyrender/benchdash/runlog"
	"github.com/tracyrender/benchdash/storage/fs/local"
)

var formats = map[string]func(io.Writer, *report.Report) error{
	"markdown": report.WriteMarkdown,
	"html":     report.WriteHTML,
	"text":     report.WriteText,
}

func (c *command) dashboardCmd() *cobra.Command {
	var (
		format   string
		window   int
		dbSource string
	)
	cmd := &cobra.Command{
		Use:   "dashboard <history.csv> <log> <out>",
		Short: "Render the dashboard",
		Long: `Dashboard renders the latest History Store result, the trend over
recent builds and the convergence of the run in log. A missing or
empty History Store renders placeholders. If out is "-", the
dashboard is written to standard output.`,
		Example: "  benchdash dashboard benchmarks/history.csv run.log README.md\n  benchdash dashboard --format text --window 5 benchmarks/history.csv run.log -",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			write, ok := formats[format]
			if !ok {
				return fmt.Errorf("unknown format %q (want markdown, html or text)", format)
			}
			if cmd.Flags().Changed("window") {
				c.cfg.Window = window
			}
			if cmd.Flags().Changed("db") {
				c.cfg.DB = dbSource
			}
			return c.dashboard(cmd.Context(), args[0], args[1], args[2], write)
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output `format`: markdown, html or text")
	cmd.Flags().IntVar(&window, "window", 0, "show the last `n` builds; 0 or less shows all (default from config)")
	cmd.Flags().StringVar(&dbSource, "db", "", "read history from the `driver:dsn` database instead of the CSV file")
	return cmd
}

func (c *command) dashboard(ctx context.Context, historyPath, logPath, out string, write func(io.Writer, *report.Report) error) error {
	recs, err := c.readHistory(ctx, historyPath)
	if err != nil {
		return err
	}
	run, err := runlog.ParseFile(logPath, c.warn, c.cfg.Markers...)
	if err != nil {
		return err
	}
	opts, err := c.cfg.ResampleOptions()
	if err != nil {
		return err
	}
	r, err := report.Assemble(report.Input{
		Run:      run,
		Records:  recs,
		Window:   c.cfg.Window,
		Resample: opts,
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := write(&buf, r); err != nil {
		return err
	}
	if out == "-" {
		_, err := c.w.Write(buf.Bytes())
		return err
	}
	if err := writeLocal(ctx, out, buf.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(c.w, "Successfully generated dashboard at %s\n", out)
	return nil
}

// readHistory reads the History Store from the configured mirror, or
// from the CSV file at path if there is none.
func (c *command) readHistory(ctx context.Context, path string) ([]history.Record, error) {
	if c.cfg.DB == "" {
		recs, err := history.ReadFile(path, c.warn)
		if err == nil && len(recs) == 0 {
			c.logger.Info("no history yet", "path", path)
		}
		return recs, err
	}
	d, err := c.openDB(c.cfg.DB)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.Records(ctx)
}

// writeLocal replaces the file at path with data. The file changes
// only if every byte is written.
func writeLocal(ctx context.Context, path string, data []byte) error {
	fsys := local.NewFS(filepath.Dir(path))
	w, err := fsys.NewWriter(ctx, filepath.Base(path), nil)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.CloseWithError(err)
		return err
	}
	return w.Close()
}
