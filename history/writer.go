// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package history

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/tracyrender/benchdash/runresult"
)

// DateLayout is the layout of the date column.
const DateLayout = "2006-01-02 15:04:05"

// A Writer writes Records as History Store rows.
type Writer struct {
	w      *csv.Writer
	header []string
}

// NewWriter returns a Writer that writes rows of the current schema to
// w. It does not write a header; see WriteHeader.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w), header: Header}
}

// NewColumnWriter returns a Writer whose rows follow header, the
// header row of an existing History Store. Columns the Writer does not
// know are left empty. The header must name the version and rmse
// columns.
func NewColumnWriter(w io.Writer, header []string) (*Writer, error) {
	if cols := parseHeader(header); cols.version < 0 || cols.rmse < 0 {
		return nil, fmt.Errorf("header %q lacks required version and rmse columns", strings.Join(header, ","))
	}
	return &Writer{w: csv.NewWriter(w), header: header}, nil
}

// WriteHeader writes the Writer's header row.
func (w *Writer) WriteHeader() error {
	return w.w.Write(w.header)
}

// Write writes one row. A record with a mode other than DefaultMode
// cannot be written without a mode column.
func (w *Writer) Write(rec Record) error {
	mode := rec.Mode
	if mode == "" {
		mode = DefaultMode
	}
	row := make([]string, len(w.header))
	hasMode := false
	for i, name := range w.header {
		switch columnName(name) {
		case "date":
			row[i] = rec.Date
		case "version":
			row[i] = rec.Version
		case "mode":
			row[i], hasMode = mode, true
		case "rmse":
			row[i] = strconv.FormatFloat(rec.RMSE, 'g', -1, 64)
		case "commit":
			row[i] = rec.Commit
		case "iterations":
			if rec.Iterations != nil {
				row[i] = strconv.Itoa(*rec.Iterations)
			}
		}
	}
	if !hasMode && mode != DefaultMode {
		return fmt.Errorf("version %s: no mode column for mode %q", rec.Version, mode)
	}
	return w.w.Write(row)
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// FromResult converts a run result into a History Store record. An
// explicit mode on the result wins over a mode suffix on its version.
func FromResult(res runresult.Result) Record {
	version, mode := SplitVersion(res.Version)
	if res.Mode != "" {
		version, mode = res.Version, res.Mode
	}
	date := res.Timestamp
	if t, err := cast.ToTimeE(res.Timestamp); err == nil {
		date = t.Format(DateLayout)
	}
	commit := res.Commit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return Record{
		Date:       date,
		Version:    version,
		Mode:       mode,
		RMSE:       res.RMSE,
		Commit:     commit,
		Iterations: res.Iterations,
	}
}

// AppendFile appends recs to the History Store at path, creating the
// file (and its directory) with a header row if it does not exist.
// Rows follow the columns of the existing header, so stores written
// with an older schema stay readable. Existing rows are never
// rewritten.
func AppendFile(path string, recs []Record) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	if err := appendRecords(f, path, recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func appendRecords(f *os.File, path string, recs []Record) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}

	// Build every row first so a failure cannot leave half a row.
	var buf bytes.Buffer
	var w *Writer
	if fi.Size() == 0 {
		w = NewWriter(&buf)
		if err := w.WriteHeader(); err != nil {
			return err
		}
	} else {
		existing := io.NewSectionReader(f, 0, fi.Size())
		header, err := csv.NewReader(existing).Read()
		if err != nil {
			return fmt.Errorf("%s: reading header: %w", path, err)
		}
		if w, err = NewColumnWriter(&buf, header); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		// Terminate a last row written without a newline.
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, fi.Size()-1); err != nil {
			return err
		}
		if last[0] != '\n' {
			buf.WriteByte('\n')
		}
	}
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return nil
}
