// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trend aligns per-mode History Store values onto a shared
// window of builds.
//
// Modes do not report on every build. Align fills each gap with the
// last value the mode reported (last value carried forward). It never
// averages neighbouring values and never extrapolates backwards: a
// position before a mode's first report is unknown, represented as
// NaN.
package trend

import (
	"math"

	"github.com/aclements/go-moremath/stats"

	"github.com/tracyrender/benchdash/history"
)

// DefaultWindow is the number of most recent builds shown by default.
const DefaultWindow = 20

// A Trend is a set of aligned series over a window of builds.
type Trend struct {
	// Versions are the short version keys of the window, oldest
	// first.
	Versions []string
	// Series holds one aligned series per mode that reported at
	// least once in the window, sorted by mode.
	Series []*Series
}

// A Series is one mode's value at every build in a window. Values has
// the same length as Trend.Versions; NaN marks an unknown value.
type Series struct {
	Mode   string
	Values []float64
}

// Defined reports whether s has a known value at position i.
func (s *Series) Defined(i int) bool {
	return !math.IsNaN(s.Values[i])
}

// Points returns the positions and values of s that are known.
func (s *Series) Points() (xs []int, ys []float64) {
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			xs = append(xs, i)
			ys = append(ys, v)
		}
	}
	return xs, ys
}

// Align builds a Trend over the last window builds of m, or over all
// of them if window <= 0 or m has fewer builds. A mode with no known
// value anywhere in the window is omitted.
func Align(m *history.Matrix, window int) *Trend {
	versions := m.Versions
	if window > 0 && len(versions) > window {
		versions = versions[len(versions)-window:]
	}
	t := &Trend{Versions: versions}
	for _, mode := range m.Modes {
		s := &Series{Mode: mode, Values: make([]float64, len(versions))}
		last, seen := math.NaN(), false
		for i, v := range versions {
			if x, ok := m.Lookup(v, mode); ok {
				last, seen = x, true
			}
			s.Values[i] = last
		}
		if seen {
			t.Series = append(t.Series, s)
		}
	}
	return t
}

// Empty reports whether t has nothing to show.
func (t *Trend) Empty() bool {
	return t == nil || len(t.Series) == 0
}

// Known returns every known value across all series of t.
func (t *Trend) Known() []float64 {
	var xs []float64
	for _, s := range t.Series {
		_, ys := s.Points()
		xs = append(xs, ys...)
	}
	return xs
}

// Range returns the smallest and largest known values in t. ok is
// false if t has no known values.
func (t *Trend) Range() (lo, hi float64, ok bool) {
	xs := t.Known()
	if len(xs) == 0 {
		return 0, 0, false
	}
	lo, hi = stats.Sample{Xs: xs}.Bounds()
	return lo, hi, true
}
