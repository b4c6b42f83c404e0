// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// A Sample is one reported measurement within a variant's run.
type Sample struct {
	// Error is the error metric (typically RMSE against a reference).
	Error float64
	// Elapsed is the cumulative wall-clock time in seconds at which
	// the sample was taken, measured from the start of the variant.
	// Untimed samples carry the elapsed time of the last timed
	// sample before them.
	Elapsed float64
	// Timed reports whether the log line carried a step time.
	Timed bool
}

// A Series is the ordered samples of one variant.
type Series struct {
	Variant string
	Samples []Sample
}

// Final returns the last sample of s. It panics if s is empty.
func (s *Series) Final() Sample {
	return s.Samples[len(s.Samples)-1]
}

// Progress returns the x coordinate of each sample. If any sample of
// s is timed, every sample is placed at its elapsed time, so an untimed
// sample shares the position of the sample before it. Otherwise the
// i'th sample is placed at i+1 units of progress.
func (s *Series) Progress() []float64 {
	xs := make([]float64, len(s.Samples))
	if s.timed() {
		for i, smp := range s.Samples {
			xs[i] = smp.Elapsed
		}
		return xs
	}
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	return xs
}

func (s *Series) timed() bool {
	for _, smp := range s.Samples {
		if smp.Timed {
			return true
		}
	}
	return false
}

// Errors returns the error metric of every sample, in order.
func (s *Series) Errors() []float64 {
	ys := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		ys[i] = smp.Error
	}
	return ys
}

// A Run is the parsed telemetry of one benchmark run, keyed by
// variant.
type Run struct {
	// Variants lists variant names in the order their first section
	// marker appeared.
	Variants []string
	Series   map[string]*Series
}

// NewRun returns an empty Run.
func NewRun() *Run {
	return &Run{Series: make(map[string]*Series)}
}

// Add appends a sample to variant, creating the variant if needed.
func (run *Run) Add(variant string, s Sample) {
	series := run.series(variant)
	series.Samples = append(series.Samples, s)
}

func (run *Run) series(variant string) *Series {
	s, ok := run.Series[variant]
	if !ok {
		s = &Series{Variant: variant}
		run.Series[variant] = s
		run.Variants = append(run.Variants, variant)
	}
	return s
}

// Len returns the total number of samples across all variants.
func (run *Run) Len() int {
	n := 0
	for _, s := range run.Series {
		n += len(s.Samples)
	}
	return n
}

// Parse reads a complete run log from r. Lines that cannot be parsed
// are passed to warn (which may be nil) and otherwise ignored. Only an
// I/O error stops parsing.
func Parse(r io.Reader, fileName string, warn func(format string, args ...interface{}), markers ...string) (*Run, error) {
	run := NewRun()
	rd := NewReader(r, fileName, markers...)
	for rd.Scan() {
		switch rec := rd.Result().(type) {
		case *Marker:
			// A marker with no data still names a variant.
			run.series(rec.Variant)
		case *Result:
			run.Add(rec.Variant, rec.Sample)
		case *SyntaxError:
			if warn != nil {
				warn("%v\n", rec)
			}
		}
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	return run, nil
}

// ParseFile is like Parse but reads the named file. A missing or
// unreadable file is an error.
func ParseFile(path string, warn func(format string, args ...interface{}), markers ...string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path, warn, markers...)
}

// ErrEmptyLog reports a log with no data lines.
var ErrEmptyLog = errors.New("log is empty")

// LastValue returns the metric on the last non-empty line of a legacy
// single-metric log, which records one bare value per line.
func LastValue(r io.Reader) (float64, error) {
	s := bufio.NewScanner(r)
	last := ""
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			last = line
		}
	}
	if err := s.Err(); err != nil {
		return 0, err
	}
	if last == "" {
		return 0, ErrEmptyLog
	}
	v, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, fmt.Errorf("last line %q is not a valid number", last)
	}
	return v, nil
}
