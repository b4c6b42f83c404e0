// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runresult reads and writes the run-result record: the
// summary of one completed benchmark run that is handed from the
// benchmark job to the History Store.
//
// A record is a JSON object
//
//	{
//	  "version": "0.1.0-build.145-st",
//	  "rmse_value": 0.0123,
//	  "timestamp": "2025-03-01T12:00:00",
//	  "commit": "1a2b3c4d",
//	  "iterations": 64
//	}
//
// A run that measured several modes writes a JSON list of such
// objects. "iterations" and "mode" are optional.
package runresult

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cast"

	"github.com/tracyrender/benchdash/runlog"
)

// ErrFormat is returned (wrapped) when a run-result file is not a JSON
// object or list of objects at all.
var ErrFormat = errors.New("malformed run result")

// A Result is the final metric of one completed run of one mode.
type Result struct {
	Version   string
	RMSE      float64
	Timestamp string
	Commit    string
	// Mode names the mode explicitly. When empty, the mode is the
	// suffix of Version after its last "-".
	Mode string
	// Iterations is the number of samples in the run, if known.
	Iterations *int
}

// wireResult is the JSON form of a Result. Fields are decoded loosely
// because tools of different vintages wrote numbers as strings.
type wireResult struct {
	Version    interface{} `json:"version"`
	RMSE       interface{} `json:"rmse_value"`
	Timestamp  interface{} `json:"timestamp"`
	Commit     interface{} `json:"commit"`
	Mode       interface{} `json:"mode,omitempty"`
	Iterations interface{} `json:"iterations,omitempty"`
}

func (w *wireResult) result() (Result, error) {
	var res Result
	var err error
	if res.Version, err = cast.ToStringE(w.Version); err != nil || res.Version == "" {
		return res, fmt.Errorf("missing version")
	}
	if w.RMSE == nil {
		return res, fmt.Errorf("version %s: missing rmse_value", res.Version)
	}
	if res.RMSE, err = cast.ToFloat64E(w.RMSE); err != nil {
		return res, fmt.Errorf("version %s: rmse_value: %v", res.Version, err)
	}
	res.Timestamp = cast.ToString(w.Timestamp)
	res.Commit = cast.ToString(w.Commit)
	res.Mode = cast.ToString(w.Mode)
	if w.Iterations != nil {
		n, err := cast.ToIntE(w.Iterations)
		if err != nil {
			return res, fmt.Errorf("version %s: iterations: %v", res.Version, err)
		}
		res.Iterations = &n
	}
	return res, nil
}

// Decode reads a single record or a list of records from r. A document
// that is not JSON, or not an object or list, is a fatal error wrapping
// ErrFormat. Individual records with missing or uncoercible fields are
// skipped and reported in warnings.
func Decode(r io.Reader) (results []Result, warnings []error, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	data = bytes.TrimSpace(data)
	var wires []wireResult
	switch {
	case len(data) > 0 && data[0] == '[':
		err = json.Unmarshal(data, &wires)
	case len(data) > 0 && data[0] == '{':
		var w wireResult
		err = json.Unmarshal(data, &w)
		wires = []wireResult{w}
	default:
		err = errors.New("expected a JSON object or list")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	for i := range wires {
		res, err := wires[i].result()
		if err != nil {
			warnings = append(warnings, fmt.Errorf("record %d: %v", i, err))
			continue
		}
		results = append(results, res)
	}
	return results, warnings, nil
}

// ReadFile decodes the named run-result file.
func ReadFile(path string) ([]Result, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	results, warnings, err := Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return results, warnings, nil
}

// Encode writes results to w. A single result is written as a JSON
// object, several as a list.
func Encode(w io.Writer, results []Result) error {
	wires := make([]wireResult, len(results))
	for i, res := range results {
		wires[i] = wireResult{
			Version:   res.Version,
			RMSE:      res.RMSE,
			Timestamp: res.Timestamp,
			Commit:    res.Commit,
		}
		if res.Mode != "" {
			wires[i].Mode = res.Mode
		}
		if res.Iterations != nil {
			wires[i].Iterations = *res.Iterations
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(wires) == 1 {
		return enc.Encode(wires[0])
	}
	return enc.Encode(wires)
}

// WriteFile encodes results into the named file, creating its
// directory if needed. The file is written to a temporary name and
// renamed so that a failure leaves no partial file behind.
func WriteFile(path string, results []Result) error {
	var buf bytes.Buffer
	if err := Encode(&buf, results); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}

// CommitLen is the number of commit hash characters recorded.
const CommitLen = 8

// TimestampLayout is the time layout of new run results.
const TimestampLayout = "2006-01-02T15:04:05"

// DefaultMode is the mode of a run that measured a single,
// unnamed variant.
const DefaultMode = "default"

// FromRun summarizes a parsed run log into one Result per variant that
// has samples, in the order variants appeared. Each version is
// base-variant, except that a run whose only variant is "default"
// keeps the bare base version and names its mode explicitly, so that
// a "-" inside the base version is not taken for a mode suffix.
func FromRun(run *runlog.Run, base, commit string, now time.Time) []Result {
	if len(commit) > CommitLen {
		commit = commit[:CommitLen]
	}
	var out []Result
	for _, v := range run.Variants {
		s := run.Series[v]
		if len(s.Samples) == 0 {
			continue
		}
		version, mode := base+"-"+v, ""
		if v == DefaultMode && len(run.Variants) == 1 {
			version, mode = base, DefaultMode
		}
		n := len(s.Samples)
		out = append(out, Result{
			Version:    version,
			RMSE:       s.Final().Error,
			Timestamp:  now.Format(TimestampLayout),
			Commit:     commit,
			Mode:       mode,
			Iterations: &n,
		})
	}
	return out
}
