// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// A SyntaxError represents a row of the History Store that could not
// be used. Syntax errors are never fatal; the row is skipped.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.FileName, e.Line, e.Msg)
}

// A Reader reads Records from a History Store.
//
// Its API is modeled on bufio.Scanner: call Scan until it returns
// false, then check Err. After each successful Scan, exactly one of
// Record and SyntaxError is non-nil.
type Reader struct {
	csv      *csv.Reader
	fileName string
	cols     columns
	width    int
	err      error

	rec    Record
	synErr *SyntaxError
}

// columns holds the index of each known column, or -1 if the column
// is absent from the header.
type columns struct {
	date, version, mode, rmse, commit, iterations int
}

func columnName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseHeader locates the known columns of a header row.
func parseHeader(header []string) columns {
	cols := columns{-1, -1, -1, -1, -1, -1}
	for i, name := range header {
		switch columnName(name) {
		case "date":
			cols.date = i
		case "version":
			cols.version = i
		case "mode":
			cols.mode = i
		case "rmse":
			cols.rmse = i
		case "commit":
			cols.commit = i
		case "iterations":
			cols.iterations = i
		}
	}
	return cols
}

// NewReader constructs a Reader and consumes the header row from r.
// An input with no rows at all is an empty History Store, not an
// error. fileName is used in error messages.
func NewReader(r io.Reader, fileName string) (*Reader, error) {
	if fileName == "" {
		fileName = "<unknown>"
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	hr := &Reader{csv: cr, fileName: fileName}

	header, err := cr.Read()
	if err == io.EOF {
		hr.err = io.EOF
		return hr, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", fileName, err)
	}
	hr.cols = parseHeader(header)
	if hr.cols.version < 0 || hr.cols.rmse < 0 {
		return nil, fmt.Errorf("%s: header %q lacks required version and rmse columns", fileName, strings.Join(header, ","))
	}
	hr.width = len(header)
	return hr, nil
}

// Scan advances to the next row and reports whether one was read.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	r.synErr = nil
	row, err := r.csv.Read()
	if err == io.EOF {
		r.err = io.EOF
		return false
	}
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		r.synErr = &SyntaxError{r.fileName, perr.Line, perr.Err.Error()}
		return true
	}
	if err != nil {
		r.err = fmt.Errorf("%s: %w", r.fileName, err)
		return false
	}
	line, _ := r.csv.FieldPos(0)
	if msg := r.parseRow(row); msg != "" {
		r.synErr = &SyntaxError{r.fileName, line, msg}
	}
	return true
}

func (r *Reader) parseRow(row []string) string {
	if len(row) != r.width {
		return fmt.Sprintf("expected %d fields, found %d", r.width, len(row))
	}
	field := func(i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	rec := Record{
		Date:    field(r.cols.date),
		Version: field(r.cols.version),
		Mode:    strings.ToLower(field(r.cols.mode)),
		Commit:  field(r.cols.commit),
	}
	if rec.Version == "" {
		return "missing version"
	}
	if rec.Mode == "" {
		rec.Mode = DefaultMode
	}
	v, err := strconv.ParseFloat(field(r.cols.rmse), 64)
	if err != nil {
		return fmt.Sprintf("parsing rmse %q: %v", field(r.cols.rmse), errors.Unwrap(err))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprintf("non-finite rmse %q", field(r.cols.rmse))
	}
	rec.RMSE = v
	if s := field(r.cols.iterations); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Sprintf("parsing iterations %q: %v", s, errors.Unwrap(err))
		}
		rec.Iterations = &n
	}
	r.rec = rec
	return ""
}

// Record returns the row read by the last call to Scan, or nil if that
// row was malformed.
func (r *Reader) Record() *Record {
	if r.synErr != nil {
		return nil
	}
	rec := r.rec
	return &rec
}

// SyntaxError returns the reason the row read by the last call to Scan
// was skipped, or nil.
func (r *Reader) SyntaxError() *SyntaxError {
	return r.synErr
}

// Err returns the first non-EOF error that was encountered by the
// Reader.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

// ReadAll reads every valid Record from r in file order. Malformed rows
// are passed to warn (which may be nil) and skipped.
func ReadAll(r io.Reader, fileName string, warn func(format string, args ...interface{})) ([]Record, error) {
	hr, err := NewReader(r, fileName)
	if err != nil {
		return nil, err
	}
	var recs []Record
	for hr.Scan() {
		if se := hr.SyntaxError(); se != nil {
			if warn != nil {
				warn("%v\n", se)
			}
			continue
		}
		recs = append(recs, *hr.Record())
	}
	if err := hr.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// ReadFile reads the named History Store. A store that does not exist
// yet holds no records; that is not an error.
func ReadFile(path string, warn func(format string, args ...interface{})) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f, path, warn)
}
