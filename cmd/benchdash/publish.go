// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracyrender/benchdash/storage/fs"
	"github.com/tracyrender/benchdash/storage/fs/gcs"
	"github.com/tracyrender/benchdash/storage/fs/local"
)

func (c *command) publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <dest> <file>...",
		Short: "Copy dashboard artifacts to a bucket or directory",
		Long: `Publish copies each file to dest, which is either a gs://bucket/prefix
URL or a local directory. Objects are tagged with the build version
and commit.`,
		Example: "  benchdash publish gs://bench-dashboards/main README.md plots/convergence.png",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.publish(cmd.Context(), args[0], args[1:])
		},
	}
}

// openFS opens a gs:// URL as a Cloud Storage bucket and anything
// else as a local directory.
func openFS(ctx context.Context, dest string) (fs.FS, string, error) {
	if !strings.HasPrefix(dest, "gs://") {
		return local.NewFS(dest), "", nil
	}
	bucket, prefix, err := gcs.ParseURL(dest)
	if err != nil {
		return nil, "", err
	}
	fsys, err := gcs.NewFS(ctx, bucket)
	if err != nil {
		return nil, "", fmt.Errorf("opening bucket %s: %w", bucket, err)
	}
	return fsys, prefix, nil
}

func (c *command) publish(ctx context.Context, dest string, files []string) error {
	fsys, prefix, err := c.openFS(ctx, dest)
	if err != nil {
		return err
	}
	meta := map[string]string{
		"version": c.env.Version,
		"commit":  c.env.Commit,
	}
	for _, src := range files {
		name := fs.Name(prefix, src)
		if err := fs.CopyFile(ctx, fsys, name, src, meta); err != nil {
			return err
		}
		c.logger.Info("published", "file", src, "name", name)
	}
	fmt.Fprintf(c.w, "Published %d file(s) to %s\n", len(files), dest)
	return nil
}
