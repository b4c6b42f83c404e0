// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report assembles the benchmark dashboard from the History
// Store and the current run's log, and renders it as Markdown, HTML,
// or plain text.
package report

import (
	"sort"

	"github.com/aclements/go-moremath/stats"

	"github.com/tracyrender/benchdash/history"
	"github.com/tracyrender/benchdash/resample"
	"github.com/tracyrender/benchdash/runlog"
	"github.com/tracyrender/benchdash/trend"
)

// Placeholders shown in place of a chart that has no data.
const (
	NoTrend       = "No benchmark data available yet."
	NoConvergence = "No convergence data available yet."
)

// Axis headroom above the largest value on each chart.
const (
	trendHeadroom       = 1.2
	convergenceHeadroom = 1.1
)

// Input is everything a report is built from.
type Input struct {
	// Run is the current run's parsed log. It may be nil.
	Run *runlog.Run
	// Records is the History Store in file order. It may be empty.
	Records []history.Record
	// Window is the number of most recent builds in the trend.
	// If <= 0, all builds are shown.
	Window   int
	Resample resample.Options
}

// A Row summarizes one variant of the current run.
type Row struct {
	Variant    string
	FinalError float64
	BestError  float64
	TotalTime  float64
	Samples    int
}

// A Report is a dashboard ready to render.
type Report struct {
	// Latest is the last History Store row, or nil.
	Latest *history.Record
	// LatestByMode holds the last row of each mode, sorted by mode.
	LatestByMode []history.Record

	// Trend is the historical trend, or nil if there is no history.
	Trend *trend.Trend
	// TrendMax is the top of the trend's y axis.
	TrendMax float64

	// Convergence is the current run resampled onto shared
	// checkpoints, or nil if the run has no samples.
	Convergence *resample.Result
	// ConvergenceMax is the top of the convergence y axis.
	ConvergenceMax float64

	// Summary has one row per non-empty variant, sorted by variant.
	Summary []Row
}

// Assemble builds a Report. Missing history or an empty run are not
// errors; the corresponding parts of the report are left nil and
// render as placeholders.
func Assemble(in Input) (*Report, error) {
	r := &Report{TrendMax: 1, ConvergenceMax: 1}

	if len(in.Records) > 0 {
		last := in.Records[len(in.Records)-1]
		r.Latest = &last
		r.LatestByMode = history.LatestByMode(in.Records)
	}
	if t := trend.Align(history.NewMatrix(in.Records), in.Window); !t.Empty() {
		r.Trend = t
		if _, hi, ok := t.Range(); ok && hi > 0 {
			r.TrendMax = hi * trendHeadroom
		}
	}

	if in.Run == nil || in.Run.Len() == 0 {
		return r, nil
	}
	res, err := resample.Resample(in.Run, in.Resample)
	if err != nil {
		return nil, err
	}
	if !res.Empty() {
		r.Convergence = res
		if hi, ok := res.Max(); ok && hi > 0 {
			r.ConvergenceMax = hi * convergenceHeadroom
		}
	}
	r.Summary = summarize(in.Run)
	return r, nil
}

func summarize(run *runlog.Run) []Row {
	var rows []Row
	for _, v := range run.Variants {
		s := run.Series[v]
		if len(s.Samples) == 0 {
			continue
		}
		final := s.Final()
		best, _ := stats.Sample{Xs: s.Errors()}.Bounds()
		rows = append(rows, Row{
			Variant:    v,
			FinalError: final.Error,
			BestError:  best,
			TotalTime:  final.Elapsed,
			Samples:    len(s.Samples),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Variant < rows[j].Variant })
	return rows
}
