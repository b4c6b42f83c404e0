// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package history

import "sort"

// A Matrix is the History Store pivoted into a per-build, per-mode
// lookup table.
type Matrix struct {
	// Versions lists the short version key of every build, in the
	// order each was first seen in the History Store.
	Versions []string
	// Modes lists every mode seen, sorted.
	Modes []string
	// Values maps a short version key and mode to the rmse recorded
	// for that build. A later record for the same build and mode
	// replaces an earlier one.
	Values map[string]map[string]float64
	// Latest is the last record, in file order, or nil if there are
	// no records.
	Latest *Record
}

// NewMatrix builds a Matrix from records in History Store order.
func NewMatrix(records []Record) *Matrix {
	m := &Matrix{Values: make(map[string]map[string]float64)}
	modes := make(map[string]bool)
	for i := range records {
		rec := &records[i]
		key := ShortVersion(rec.Version)
		row, ok := m.Values[key]
		if !ok {
			row = make(map[string]float64)
			m.Values[key] = row
			m.Versions = append(m.Versions, key)
		}
		mode := rec.Mode
		if mode == "" {
			mode = DefaultMode
		}
		row[mode] = rec.RMSE
		if !modes[mode] {
			modes[mode] = true
			m.Modes = append(m.Modes, mode)
		}
		m.Latest = rec
	}
	sort.Strings(m.Modes)
	return m
}

// Lookup returns the rmse recorded for mode at short version key v.
func (m *Matrix) Lookup(v, mode string) (float64, bool) {
	x, ok := m.Values[v][mode]
	return x, ok
}

// LatestByMode returns, for each mode, the last record in file order.
// The result is sorted by mode.
func LatestByMode(records []Record) []Record {
	last := make(map[string]Record)
	for _, rec := range records {
		mode := rec.Mode
		if mode == "" {
			mode = DefaultMode
		}
		last[mode] = rec
	}
	out := make([]Record, 0, len(last))
	for _, rec := range last {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mode < out[j].Mode })
	return out
}
