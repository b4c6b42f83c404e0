// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resample places the convergence series of every variant in a
// run onto one shared set of time checkpoints so that variants with
// different step counts and durations can be overlaid.
//
// The value of a variant at checkpoint t is the error of its last
// sample taken at or before t. Before a variant's first sample, the
// variant holds that first sample's error.
package resample

import (
	"fmt"
	"math"
	"sort"

	"github.com/tracyrender/benchdash/runlog"
)

// A Policy decides the value of a variant at checkpoints after the
// variant finished.
type Policy int

const (
	// HoldFinal keeps the variant's final error flat to the end of
	// the axis.
	HoldFinal Policy = iota
	// Truncate makes the variant unknown (NaN) at checkpoints later
	// than its completion time scaled by 1+Grace.
	Truncate
)

var policyNames = map[Policy]string{
	HoldFinal: "hold",
	Truncate:  "truncate",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy returns the Policy named s ("hold" or "truncate").
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown resampling policy %q (want hold or truncate)", s)
}

// Options configures Resample.
type Options struct {
	// Buckets is the number of checkpoints. It must be at least 2.
	Buckets int
	Policy  Policy
	// Grace is the fraction of a variant's completion time it is
	// still drawn for under the Truncate policy.
	Grace float64
}

// DefaultOptions are the options used when none are configured.
var DefaultOptions = Options{Buckets: 12, Policy: HoldFinal, Grace: 0.05}

// Precision is the number of decimal places resampled values are
// rounded to.
const Precision = 4

// A Result is a set of variants resampled onto shared checkpoints.
type Result struct {
	// Checkpoints are the shared time positions, in seconds (or in
	// units of synthetic progress for untimed logs), increasing from 0.
	Checkpoints []float64
	// Series are sorted by variant.
	Series []*Series
}

// A Series is one variant's value at each checkpoint. NaN marks an
// unknown value.
type Series struct {
	Variant string
	Values  []float64
	// Completion is the variant's own final time.
	Completion float64
}

// Resample resamples every non-empty variant of run. A run with no
// samples yields a Result with no series.
func Resample(run *runlog.Run, opts Options) (*Result, error) {
	if opts.Buckets < 2 {
		return nil, fmt.Errorf("resample: need at least 2 buckets, have %d", opts.Buckets)
	}
	if opts.Grace < 0 {
		return nil, fmt.Errorf("resample: negative grace margin %v", opts.Grace)
	}

	type points struct {
		variant string
		xs, ys  []float64
	}
	var all []points
	tmax := 0.0
	for _, v := range run.Variants {
		s := run.Series[v]
		if len(s.Samples) == 0 {
			continue
		}
		p := points{v, s.Progress(), s.Errors()}
		if end := p.xs[len(p.xs)-1]; end > tmax {
			tmax = end
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].variant < all[j].variant })

	res := &Result{Checkpoints: Checkpoints(tmax, opts.Buckets)}
	for _, p := range all {
		s := &Series{
			Variant:    p.variant,
			Values:     make([]float64, len(res.Checkpoints)),
			Completion: p.xs[len(p.xs)-1],
		}
		limit := s.Completion * (1 + opts.Grace)
		for k, t := range res.Checkpoints {
			if opts.Policy == Truncate && t > limit {
				s.Values[k] = math.NaN()
				continue
			}
			s.Values[k] = Round(lookback(p.xs, p.ys, t))
		}
		res.Series = append(res.Series, s)
	}
	return res, nil
}

// Checkpoints returns n evenly spaced times from 0 to tmax inclusive.
func Checkpoints(tmax float64, n int) []float64 {
	ts := make([]float64, n)
	step := tmax / float64(n-1)
	for k := range ts {
		ts[k] = step * float64(k)
	}
	// Pin the end so rounding in step cannot put the last checkpoint
	// before the longest variant's final sample.
	ts[n-1] = tmax
	return ts
}

// lookback returns the y of the last point with x <= t, or ys[0] if
// t precedes every point. xs must be non-decreasing.
func lookback(xs, ys []float64, t float64) float64 {
	i := sort.Search(len(xs), func(i int) bool { return xs[i] > t })
	if i == 0 {
		return ys[0]
	}
	return ys[i-1]
}

// Round rounds x to Precision decimal places.
func Round(x float64) float64 {
	const scale = 1e4
	return math.Round(x*scale) / scale
}

// Empty reports whether r has nothing to show.
func (r *Result) Empty() bool {
	return r == nil || len(r.Series) == 0
}

// Max returns the largest known value across all series. ok is false
// if there are none.
func (r *Result) Max() (max float64, ok bool) {
	for _, s := range r.Series {
		for _, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			if !ok || v > max {
				max, ok = v, true
			}
		}
	}
	return max, ok
}
