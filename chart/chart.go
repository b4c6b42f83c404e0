// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chart draws the convergence and historical trend charts.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/tracyrender/benchdash/runlog"
	"github.com/tracyrender/benchdash/trend"
)

// Default chart dimensions.
const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 5 * vg.Inch
	DefaultDPI    = 150
)

// Colors returns n distinct series colors. Colors repeat after the
// palette is exhausted.
func Colors(n int) []color.Color {
	const name, smallest, largest = "Set1", 3, 9
	k := n
	if k < smallest {
		k = smallest
	}
	if k > largest {
		k = largest
	}
	p, err := brewer.GetPalette(brewer.TypeQualitative, name, k)
	if err != nil {
		// Set1 is defined for every size in range.
		panic(err)
	}
	base := p.Colors()
	out := make([]color.Color, n)
	for i := range out {
		out[i] = base[i%len(base)]
	}
	return out
}

// Hex formats c as a #rrggbb string.
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

func newPlot(title, xlabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "RMSE"
	p.Legend.Left = true
	p.Legend.Padding = 1 * vg.Millimeter
	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	p.Add(grid)
	return p
}

func addLine(p *plot.Plot, label string, xys plotter.XYs, clr color.Color, shape draw.GlyphDrawer) error {
	l, s, err := plotter.NewLinePoints(xys)
	if err != nil {
		return err
	}
	l.Color = clr
	l.Width = vg.Points(2)
	s.Color = clr
	s.Shape = shape
	s.Radius = vg.Points(2.5)
	p.Add(l, s)
	p.Legend.Add(strings.ToUpper(label), l, s)
	return nil
}

// Convergence plots the error of every variant of run against its
// cumulative time. Variants are drawn in name order. The y axis starts
// at 0 and leaves 10% headroom above the largest error.
func Convergence(run *runlog.Run) (*plot.Plot, error) {
	p := newPlot("Convergence", "Cumulative Time (seconds)")

	names := make([]string, 0, len(run.Variants))
	for _, v := range run.Variants {
		if len(run.Series[v].Samples) > 0 {
			names = append(names, v)
		}
	}
	sort.Strings(names)

	colors := Colors(len(names))
	ymax := 0.0
	for i, v := range names {
		s := run.Series[v]
		xs, ys := s.Progress(), s.Errors()
		xys := make(plotter.XYs, len(xs))
		for j := range xs {
			xys[j].X, xys[j].Y = xs[j], ys[j]
			ymax = math.Max(ymax, ys[j])
		}
		if err := addLine(p, v, xys, colors[i], draw.CircleGlyph{}); err != nil {
			return nil, fmt.Errorf("plotting variant %s: %w", v, err)
		}
	}

	p.X.Min = 0
	p.Y.Min = 0
	if ymax > 0 {
		p.Y.Max = ymax * 1.1
	} else {
		p.Y.Max = 1
	}
	return p, nil
}

// History plots each mode of t at the builds where its value is
// known. Unknown positions are not drawn.
func History(t *trend.Trend) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("Historical Performance Trend (Last %d builds)", len(t.Versions)), "Build Version")

	colors := Colors(len(t.Series))
	for i, s := range t.Series {
		idx, ys := s.Points()
		xys := make(plotter.XYs, len(idx))
		for j := range idx {
			xys[j].X, xys[j].Y = float64(idx[j]), ys[j]
		}
		if err := addLine(p, s.Mode, xys, colors[i], draw.BoxGlyph{}); err != nil {
			return nil, fmt.Errorf("plotting mode %s: %w", s.Mode, err)
		}
	}

	ticks := make([]plot.Tick, len(t.Versions))
	for i, v := range t.Versions {
		ticks[i] = plot.Tick{Value: float64(i), Label: v}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YTop
	if len(t.Versions) > 0 {
		p.X.Min, p.X.Max = -0.5, float64(len(t.Versions))-0.5
	}

	p.Y.Min = 0
	if _, hi, ok := t.Range(); ok && hi > 0 {
		p.Y.Max = hi * 1.1
	} else {
		p.Y.Max = 1
	}
	return p, nil
}

// A Format is an image encoding for a chart.
type Format int

const (
	PNG Format = iota
	SVG
)

// FormatFor returns the Format implied by the extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".svg":
		return SVG, nil
	}
	return 0, fmt.Errorf("%s: unsupported chart format (want .png or .svg)", path)
}

// Write renders p to w in format f at the given size.
func Write(w io.Writer, p *plot.Plot, f Format, width, height vg.Length) error {
	var c vg.CanvasWriterTo
	switch f {
	case PNG:
		c = vgimg.PngCanvas{Canvas: vgimg.NewWith(
			vgimg.UseWH(width, height),
			vgimg.UseDPI(DefaultDPI),
			vgimg.UseBackgroundColor(color.White))}
	case SVG:
		c = vgsvg.New(width, height)
	default:
		return fmt.Errorf("unknown chart format %d", f)
	}
	p.Draw(draw.New(c))
	_, err := c.WriteTo(w)
	return err
}

// Save renders p to the named file, choosing the format from the
// file's extension. The image is written under a temporary name and
// renamed into place.
func Save(path string, p *plot.Plot, width, height vg.Length) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if err := Write(tmp, p, f, width, height); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
