// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package local implements the fs.FS interface using local files.
// Metadata is not stored separately; the caller should make sure
// the file contents carry whatever it needs.
package local

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tracyrender/benchdash/storage/fs"
)

// impl is an fs.FS backed by local disk.
type impl struct {
	root string
}

// NewFS constructs an FS that writes to the provided directory.
func NewFS(root string) fs.FS {
	return &impl{root}
}

// NewWriter creates a temporary file next to name's destination.
// Metadata is ignored.
func (fsys *impl) NewWriter(_ context.Context, name string, _ map[string]string) (fs.Writer, error) {
	dest := filepath.Join(fsys.root, filepath.FromSlash(name))
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return nil, err
	}
	return &wrapper{f, dest}, nil
}

// wrapper writes to a temporary file and renames it into place on a
// successful Close.
type wrapper struct {
	*os.File
	dest string
}

func (w *wrapper) Close() error {
	if err := w.File.Close(); err != nil {
		os.Remove(w.File.Name())
		return err
	}
	return os.Rename(w.File.Name(), w.dest)
}

// CloseWithError closes the file and attempts to unlink it.
func (w *wrapper) CloseWithError(error) error {
	w.File.Close()
	return os.Remove(w.File.Name())
}
