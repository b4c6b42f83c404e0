// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tracyrender/benchdash/chart"
	"github.com/tracyrender/benchdash/history"
)

const fence = "```"

// num formats a metric value the way the History Store records it.
func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func complete(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

func numList(vs []float64) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = num(v)
	}
	return "[" + strings.Join(s, ", ") + "]"
}

// A mermaidLine is one line of a Mermaid xychart.
type mermaidLine struct {
	name   string
	values []float64
}

// writeMermaid writes an xychart block. Mermaid cannot draw a gap, so
// lines with unknown values are left out of the chart; callers list
// them in a table instead.
func writeMermaid(b *bytes.Buffer, title string, xs []string, ymax float64, lines []mermaidLine) {
	var drawn []mermaidLine
	for _, l := range lines {
		if complete(l.values) {
			drawn = append(drawn, l)
		}
	}
	colors := chart.Colors(len(drawn))
	hex := make([]string, len(colors))
	for i, c := range colors {
		hex[i] = chart.Hex(c)
	}

	fmt.Fprintf(b, "%smermaid\n", fence)
	fmt.Fprintf(b, "---\nconfig:\n    theme: base\n    themeVariables:\n        xyChart:\n")
	fmt.Fprintf(b, "            plotColorPalette: %q\n---\n", strings.Join(hex, ", "))
	fmt.Fprintf(b, "xychart-beta\n")
	fmt.Fprintf(b, "    title %q\n", title)
	fmt.Fprintf(b, "    x-axis %s\n", quoteAll(xs))
	fmt.Fprintf(b, "    y-axis \"RMSE\" 0 --> %.4f\n", ymax)
	for _, l := range drawn {
		fmt.Fprintf(b, "    line %s\n", numList(l.values))
	}
	fmt.Fprintf(b, "%s\n", fence)

	if len(drawn) > 0 {
		legend := make([]string, len(drawn))
		for i, l := range drawn {
			legend[i] = fmt.Sprintf("**%s** (`%s`)", strings.ToUpper(l.name), hex[i])
		}
		fmt.Fprintf(b, "\nLines: %s\n", strings.Join(legend, ", "))
	}
}

func latestCells(rec *history.Record) (version, date, rmse string) {
	if rec == nil {
		return "N/A", "N/A", "N/A"
	}
	return rec.Version, rec.Date, num(rec.RMSE)
}

// WriteMarkdown writes r as a Markdown dashboard with Mermaid charts.
func WriteMarkdown(w io.Writer, r *Report) error {
	var b bytes.Buffer
	version, date, rmse := latestCells(r.Latest)

	fmt.Fprintf(&b, "# Benchmark Dashboard\n\n")
	fmt.Fprintf(&b, "This dashboard tracks the image quality performance (RMSE) of the renderer over time.\n\n")
	fmt.Fprintf(&b, "| Metric | Latest Value |\n|--------|--------------|\n")
	fmt.Fprintf(&b, "| **Version** | `%s` |\n", version)
	fmt.Fprintf(&b, "| **Date** | %s |\n", date)
	fmt.Fprintf(&b, "| **RMSE** | **%s** |\n", rmse)

	if len(r.LatestByMode) > 1 {
		fmt.Fprintf(&b, "\n| Mode | Version | Date | RMSE |\n|------|---------|------|------|\n")
		for _, rec := range r.LatestByMode {
			fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n", strings.ToUpper(rec.Mode), rec.Version, rec.Date, num(rec.RMSE))
		}
	}

	fmt.Fprintf(&b, "\n## Performance Trend\n\n")
	if t := r.Trend; t == nil {
		fmt.Fprintf(&b, "%s\n", NoTrend)
	} else {
		lines := make([]mermaidLine, len(t.Series))
		for i, s := range t.Series {
			lines[i] = mermaidLine{s.Mode, s.Values}
		}
		writeMermaid(&b, "RMSE Convergence Error (Lower is Better)", t.Versions, r.TrendMax, lines)

		fmt.Fprintf(&b, "\n| Build |")
		for _, s := range t.Series {
			fmt.Fprintf(&b, " %s |", strings.ToUpper(s.Mode))
		}
		fmt.Fprintf(&b, "\n|-------|%s\n", strings.Repeat("------|", len(t.Series)))
		for i, v := range t.Versions {
			fmt.Fprintf(&b, "| %s |", v)
			for _, s := range t.Series {
				fmt.Fprintf(&b, " %s |", num(s.Values[i]))
			}
			fmt.Fprintf(&b, "\n")
		}
	}

	fmt.Fprintf(&b, "\n## Convergence\n\n")
	if c := r.Convergence; c == nil {
		fmt.Fprintf(&b, "%s\n", NoConvergence)
	} else {
		labels := make([]string, len(c.Checkpoints))
		for i, t := range c.Checkpoints {
			labels[i] = fmt.Sprintf("%.1fs", t)
		}
		lines := make([]mermaidLine, len(c.Series))
		for i, s := range c.Series {
			lines[i] = mermaidLine{s.Variant, s.Values}
		}
		writeMermaid(&b, "RMSE vs Time (Current Run)", labels, r.ConvergenceMax, lines)

		fmt.Fprintf(&b, "\n| Variant | Final RMSE | Best RMSE | Total Time (s) | Samples |\n")
		fmt.Fprintf(&b, "|---------|------------|-----------|----------------|---------|\n")
		for _, row := range r.Summary {
			fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %d |\n", strings.ToUpper(row.Variant), num(row.FinalError), num(row.BestError), row.TotalTime, row.Samples)
		}
	}

	fmt.Fprintf(&b, "\n---\n*Last updated by GitHub Actions on %s.*\n", date)
	_, err := w.Write(b.Bytes())
	return err
}
