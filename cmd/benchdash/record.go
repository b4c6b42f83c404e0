// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracyrender/benchdash/runlog"
	"github.com/tracyrender/benchdash/runresult"
)

func (c *command) recordCmd() *cobra.Command {
	var lastLine bool
	cmd := &cobra.Command{
		Use:   "record <log> <out.json>",
		Short: "Summarize a run log into a run-result file",
		Long: `Record parses a run log and writes the final error of each variant
as a run-result file for append. The version of each result is
$bench_version followed by the variant.`,
		Example: "  benchdash record run.log result.json\n  benchdash record --last-line metric.log result.json",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.record(args[0], args[1], lastLine)
		},
	}
	cmd.Flags().BoolVar(&lastLine, "last-line", false, "read a single-metric log whose last line is the final error")
	return cmd
}

func (c *command) record(logPath, out string, lastLine bool) error {
	var results []runresult.Result
	if lastLine {
		res, err := c.lastLineResult(logPath)
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		run, err := runlog.ParseFile(logPath, c.warn, c.cfg.Markers...)
		if err != nil {
			return err
		}
		results = runresult.FromRun(run, c.env.Version, c.env.Commit, c.now())
		if len(results) == 0 {
			return fmt.Errorf("%s: %w", logPath, runlog.ErrEmptyLog)
		}
	}
	if err := runresult.WriteFile(out, results); err != nil {
		return err
	}
	for _, res := range results {
		c.logger.Info("recorded", "version", res.Version, "rmse", res.RMSE)
	}
	fmt.Fprintf(c.w, "Wrote %d result(s) to %s\n", len(results), out)
	return nil
}

func (c *command) lastLineResult(logPath string) (runresult.Result, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return runresult.Result{}, err
	}
	defer f.Close()
	v, err := runlog.LastValue(f)
	if err != nil {
		return runresult.Result{}, fmt.Errorf("%s: %w", logPath, err)
	}
	commit := c.env.Commit
	if len(commit) > runresult.CommitLen {
		commit = commit[:runresult.CommitLen]
	}
	return runresult.Result{
		Version:   c.env.Version,
		RMSE:      v,
		Timestamp: c.now().Format(runresult.TimestampLayout),
		Commit:    commit,
		Mode:      runresult.DefaultMode,
	}, nil
}
