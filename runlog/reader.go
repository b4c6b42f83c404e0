// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runlog reads the line-oriented telemetry log written by a
// single benchmark run of the renderer.
//
// A log consists of variant blocks. Each block starts with a section
// marker line
//
//	VARIANT: st
//
// (VERSION: is accepted as a synonym) and is followed by data lines,
// each either a bare error metric
//
//	0.0412
//
// or an error metric and the wall-clock duration of the step that
// produced it, in seconds
//
//	0.0412,1.75
//
// Step durations are integrated into a cumulative elapsed time that is
// scoped to the variant block.
package runlog

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DefaultMarkers are the section marker prefixes recognized by
// NewReader.
var DefaultMarkers = []string{"VARIANT:", "VERSION:"}

// A Reader reads a run log.
//
// Its API is modeled on bufio.Scanner. Malformed lines do not stop the
// Reader: they are reported as *SyntaxError records and the caller may
// keep calling Scan.
type Reader struct {
	s   *bufio.Scanner
	err error // current I/O error

	fileName string
	line     int
	markers  []string

	// cur is the active variant block, or nil before the first
	// section marker.
	cur *block
	// last maps a variant to the elapsed time at the end of its most
	// recent block, so a variant that reappears continues its clock.
	last map[string]float64

	rec Record
}

// block is the state of one variant block. It is threaded through the
// Reader explicitly so that nothing leaks between blocks or Readers.
type block struct {
	variant string
	elapsed float64
}

// A Record is a single record read from a run log. It may be a
// *Result, a *Marker, or a *SyntaxError.
type Record interface {
	// Pos returns the position of this record as a file name and a
	// 1-based line number within that file.
	Pos() (fileName string, line int)
}

// A Result is one sample read from a data line.
type Result struct {
	Variant string
	Sample  Sample

	fileName string
	line     int
}

func (r *Result) Pos() (fileName string, line int) {
	return r.fileName, r.line
}

// A Marker records the start of a variant block.
type Marker struct {
	Variant string

	fileName string
	line     int
}

func (m *Marker) Pos() (fileName string, line int) {
	return m.fileName, m.line
}

// A SyntaxError represents a line of the log that could not be used.
// Syntax errors are never fatal.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (e *SyntaxError) Pos() (fileName string, line int) {
	return e.FileName, e.Line
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.FileName, e.Line, e.Msg)
}

var noResult = &SyntaxError{"", 0, "Reader.Scan has not been called"}

// NewReader constructs a reader to parse a run log from r.
// fileName is used in error messages; it is purely diagnostic.
// markers overrides DefaultMarkers when non-empty.
func NewReader(r io.Reader, fileName string, markers ...string) *Reader {
	if fileName == "" {
		fileName = "<unknown>"
	}
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &Reader{
		s:        bufio.NewScanner(r),
		fileName: fileName,
		markers:  markers,
		last:     make(map[string]float64),
	}
}

func (r *Reader) newSyntaxError(msg string) *SyntaxError {
	return &SyntaxError{r.fileName, r.line, msg}
}

// Scan advances the reader to the next record and reports whether a
// record was read. The caller should use the Result method to get the
// record. If Scan reaches EOF or an I/O error occurs, it returns false,
// in which case the caller should use the Err method to check for
// errors.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	for r.s.Scan() {
		r.line++
		line := strings.TrimSpace(r.s.Text())
		if line == "" {
			continue
		}
		if label, ok := r.marker(line); ok {
			if label == "" {
				r.rec = r.newSyntaxError("empty section label")
				return true
			}
			r.startBlock(label)
			r.rec = &Marker{Variant: label, fileName: r.fileName, line: r.line}
			return true
		}
		r.rec = r.parseDataLine(line)
		return true
	}
	if err := r.s.Err(); err != nil {
		r.err = fmt.Errorf("%s:%d: %w", r.fileName, r.line, err)
	}
	return false
}

// marker reports whether line is a section marker and returns its
// normalized label.
func (r *Reader) marker(line string) (string, bool) {
	for _, prefix := range r.markers {
		if strings.HasPrefix(line, prefix) {
			return strings.ToLower(strings.TrimSpace(line[len(prefix):])), true
		}
	}
	return "", false
}

func (r *Reader) startBlock(variant string) {
	if r.cur != nil {
		r.last[r.cur.variant] = r.cur.elapsed
	}
	// A variant that was already seen keeps counting from where its
	// previous block stopped; this keeps Elapsed non-decreasing.
	r.cur = &block{variant: variant, elapsed: r.last[variant]}
}

func (r *Reader) parseDataLine(line string) Record {
	if r.cur == nil {
		return r.newSyntaxError("data line before any section marker")
	}
	fields := strings.Split(line, ",")
	var s Sample
	switch len(fields) {
	case 1:
		v, err := parseFloat(fields[0])
		if err != nil {
			return r.newSyntaxError("parsing error metric: " + err.Error())
		}
		s = Sample{Error: v, Elapsed: r.cur.elapsed}
	case 2:
		v, err := parseFloat(fields[0])
		if err != nil {
			return r.newSyntaxError("parsing error metric: " + err.Error())
		}
		step, err := parseFloat(fields[1])
		if err != nil {
			return r.newSyntaxError("parsing step time: " + err.Error())
		}
		if step < 0 {
			return r.newSyntaxError(fmt.Sprintf("negative step time %v", step))
		}
		r.cur.elapsed += step
		s = Sample{Error: v, Elapsed: r.cur.elapsed, Timed: true}
	default:
		return r.newSyntaxError(fmt.Sprintf("expected 1 or 2 fields, found %d", len(fields)))
	}
	return &Result{Variant: r.cur.variant, Sample: s, fileName: r.fileName, line: r.line}
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok {
			return 0, ne.Err
		}
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// Result returns the record that was just read by Scan. This is either
// a *Result, a *Marker, or a *SyntaxError indicating a line that was
// skipped.
func (r *Reader) Result() Record {
	if r.rec == nil {
		return noResult
	}
	return r.rec
}

// Err returns the first non-EOF I/O error that was encountered by the
// Reader.
func (r *Reader) Err() error {
	return r.err
}
