// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/aclements/go-gg/table"
)

// WriteText writes r as aligned plain-text tables, for terminals and
// CI logs.
func WriteText(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	version, date, rmse := latestCells(r.Latest)
	fmt.Fprintf(bw, "latest: version %s, date %s, rmse %s\n", version, date, rmse)

	fmt.Fprintf(bw, "\ntrend:\n")
	if t := r.Trend; t == nil {
		fmt.Fprintf(bw, "%s\n", NoTrend)
	} else {
		var b table.Builder
		b.Add("build", t.Versions)
		for _, s := range t.Series {
			col := make([]string, len(s.Values))
			for i, v := range s.Values {
				col[i] = num(v)
			}
			b.Add(strings.ToUpper(s.Mode), col)
		}
		if err := table.Fprint(bw, b.Done()); err != nil {
			return err
		}
	}

	fmt.Fprintf(bw, "\nconvergence:\n")
	if r.Convergence == nil {
		fmt.Fprintf(bw, "%s\n", NoConvergence)
	} else {
		tab := table.TableFromStructs(r.Summary)
		if err := table.Fprint(bw, tab, "%s", "%.4g", "%.4g", "%.2f", "%d"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
