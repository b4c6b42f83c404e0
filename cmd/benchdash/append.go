// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracyrender/benchdash/history"
	"github.com/tracyrender/benchdash/runresult"
)

func (c *command) appendCmd() *cobra.Command {
	var dbSource string
	cmd := &cobra.Command{
		Use:   "append <result.json> <history.csv>",
		Short: "Append a run result to the History Store",
		Long: `Append adds one row per result in a run-result file to the History
Store, creating the file if needed. Existing rows are never changed.
With --db the rows are also stored in a SQL mirror of the History
Store.`,
		Example: "  benchdash append result.json benchmarks/history.csv\n  benchdash append --db sqlite3:history.db result.json benchmarks/history.csv",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("db") {
				c.cfg.DB = dbSource
			}
			return c.appendResults(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&dbSource, "db", "", "also store rows in the `driver:dsn` database")
	return cmd
}

func (c *command) appendResults(ctx context.Context, resultPath, historyPath string) error {
	results, warnings, err := runresult.ReadFile(resultPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		c.warn("%s: %v", resultPath, w)
	}
	if len(results) == 0 {
		return fmt.Errorf("%s: no valid results", resultPath)
	}
	recs := make([]history.Record, len(results))
	for i, res := range results {
		recs[i] = history.FromResult(res)
	}

	if c.cfg.DB == "" {
		if err := history.AppendFile(historyPath, recs); err != nil {
			return err
		}
	} else if err := c.appendMirrored(ctx, historyPath, recs); err != nil {
		return err
	}

	for _, r := range recs {
		c.logger.Info("appended", "version", r.Version, "mode", r.Mode, "rmse", r.RMSE)
	}
	fmt.Fprintf(c.w, "Appended %d row(s) to %s\n", len(recs), historyPath)
	return nil
}

// appendMirrored appends recs to both the History Store and its SQL
// mirror. The rows are inserted in an open upload before the file is
// written, so a failed file write leaves the mirror unchanged. Only a
// failed commit after a successful write leaves the two out of step.
func (c *command) appendMirrored(ctx context.Context, historyPath string, recs []history.Record) error {
	d, err := c.openDB(c.cfg.DB)
	if err != nil {
		return err
	}
	defer d.Close()
	u, err := d.NewUpload(ctx)
	if err != nil {
		return fmt.Errorf("mirroring rows: %w", err)
	}
	for _, r := range recs {
		if err := u.InsertRecord(ctx, r); err != nil {
			u.Abort()
			return fmt.Errorf("mirroring rows: %w", err)
		}
	}
	if err := history.AppendFile(historyPath, recs); err != nil {
		u.Abort()
		return err
	}
	if err := u.Commit(); err != nil {
		c.logger.Error("history mirror is missing appended rows", "path", historyPath, "upload", u.ID, "error", err)
		return fmt.Errorf("mirroring rows: %w", err)
	}
	return nil
}
