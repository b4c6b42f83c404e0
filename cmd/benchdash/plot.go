// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/tracyrender/benchdash/chart"
	"github.com/tracyrender/benchdash/history"
	"github.com/tracyrender/benchdash/runlog"
	"github.com/tracyrender/benchdash/trend"
)

// Chart file names, without extension.
const (
	convergenceChart = "convergence"
	historyChart     = "history_trend"
)

func (c *command) plotCmd() *cobra.Command {
	var svg bool
	cmd := &cobra.Command{
		Use:   "plot <log> <history.csv> <outdir> [num_versions]",
		Short: "Draw the convergence and trend charts",
		Long: `Plot draws the convergence of the run in log and the trend of the
last num_versions builds in the History Store as convergence.png and
history_trend.png in outdir.`,
		Example: "  benchdash plot run.log benchmarks/history.csv plots 10",
		Args:    cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 4 {
				n, err := strconv.Atoi(args[3])
				if err != nil {
					return fmt.Errorf("num_versions %q is not an integer", args[3])
				}
				c.cfg.Window = n
			}
			return c.plot(cmd.Context(), args[0], args[1], args[2], svg)
		},
	}
	cmd.Flags().BoolVar(&svg, "svg", false, "also write SVG versions of the charts")
	return cmd
}

func (c *command) plot(ctx context.Context, logPath, historyPath, outDir string, svg bool) error {
	run, err := runlog.ParseFile(logPath, c.warn, c.cfg.Markers...)
	if err != nil {
		return err
	}
	recs, err := c.readHistory(ctx, historyPath)
	if err != nil {
		return err
	}

	conv, err := chart.Convergence(run)
	if err != nil {
		return err
	}
	hist, err := chart.History(trend.Align(history.NewMatrix(recs), c.cfg.Window))
	if err != nil {
		return err
	}

	exts := []string{".png"}
	if svg {
		exts = append(exts, ".svg")
	}
	width := vg.Length(c.cfg.ChartWidth) * vg.Inch
	height := vg.Length(c.cfg.ChartHeight) * vg.Inch
	for _, ch := range []struct {
		name string
		p    *plot.Plot
	}{
		{convergenceChart, conv},
		{historyChart, hist},
	} {
		for _, ext := range exts {
			path := filepath.Join(outDir, ch.name+ext)
			if err := chart.Save(path, ch.p, width, height); err != nil {
				return err
			}
			c.logger.Debug("saved chart", "path", path)
		}
	}
	fmt.Fprintf(c.w, "Success: Plots generated in %s\n", outDir)
	return nil
}
