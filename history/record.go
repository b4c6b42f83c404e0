// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package history reads and appends the History Store: an append-only
// CSV file with one row per completed run of one mode.
//
// The file starts with a header row. The current schema is
//
//	date,version,mode,rmse,commit,iterations
//
// Columns are located by name, so files written by older tools with
// fewer columns (for example date,version,rmse,commit) remain
// readable. Rows from such files have mode "default".
package history

import (
	"strings"

	"github.com/tracyrender/benchdash/runresult"
)

// DefaultMode is the mode of records whose version or row does not
// name one.
const DefaultMode = runresult.DefaultMode

// Header is the header row written to new History Store files.
var Header = []string{"date", "version", "mode", "rmse", "commit", "iterations"}

// A Record is one row of the History Store: the final metric of one
// completed run of one mode.
type Record struct {
	Date    string
	Version string
	Mode    string
	RMSE    float64
	Commit  string
	// Iterations is the number of samples the run produced, if known.
	Iterations *int
}

// SplitVersion splits a version of the form base-mode on its last "-"
// into its base version and mode. A version with no "-" has mode
// DefaultMode.
func SplitVersion(v string) (base, mode string) {
	i := strings.LastIndex(v, "-")
	if i < 0 {
		return v, DefaultMode
	}
	base, mode = v[:i], strings.ToLower(v[i+1:])
	if mode == "" {
		mode = DefaultMode
	}
	return base, mode
}

// ShortVersion returns a compact key for version v for display on a
// chart axis. CI build identifiers such as "0.1.0-build.145" become
// "b.145"; anything else is truncated to its last 6 characters.
func ShortVersion(v string) string {
	if strings.Contains(v, "build") {
		return "b." + v[strings.LastIndex(v, ".")+1:]
	}
	if r := []rune(v); len(r) > 6 {
		return string(r[len(r)-6:])
	}
	return v
}
