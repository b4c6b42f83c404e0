// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/safehtml/template"
)

var htmlTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"num":   num,
	"upper": strings.ToUpper,
	"secs":  func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"at":    func(vs []float64, i int) float64 { return vs[i] },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Benchmark Dashboard</title>
<style>
table { border-collapse: collapse; }
th, td { padding: 0.2em 0.6em; border: 1px solid #ccc; }
td.num { text-align: right; font-family: monospace; }
</style>
</head>
<body>
<h1>Benchmark Dashboard</h1>
<table class="latest">
<tr><th>Version<td><code>{{.Version}}</code>
<tr><th>Date<td>{{.Date}}
<tr><th>RMSE<td class="num"><b>{{.RMSE}}</b>
</table>
{{- if gt (len .R.LatestByMode) 1}}
<table class="modes">
<tr><th>Mode<th>Version<th>Date<th>RMSE
{{- range .R.LatestByMode}}
<tr><td>{{upper .Mode}}<td><code>{{.Version}}</code><td>{{.Date}}<td class="num">{{num .RMSE}}
{{- end}}
</table>
{{- end}}
<h2>Performance Trend</h2>
{{- with .R.Trend}}
<table class="trend">
<tr><th>Build{{range .Series}}<th>{{upper .Mode}}{{end}}
{{- $t := .}}
{{- range $i, $v := .Versions}}
<tr><td>{{$v}}{{range $t.Series}}<td class="num">{{num (at .Values $i)}}{{end}}
{{- end}}
</table>
{{- else}}
<p>{{.NoTrend}}</p>
{{- end}}
<h2>Convergence</h2>
{{- if .R.Convergence}}
<table class="summary">
<tr><th>Variant<th>Final RMSE<th>Best RMSE<th>Total Time (s)<th>Samples
{{- range .R.Summary}}
<tr><td>{{upper .Variant}}<td class="num">{{num .FinalError}}<td class="num">{{num .BestError}}<td class="num">{{secs .TotalTime}}<td class="num">{{.Samples}}
{{- end}}
</table>
{{- else}}
<p>{{.NoConvergence}}</p>
{{- end}}
<p><i>Last updated on {{.Date}}.</i></p>
</body>
</html>
`))

type htmlData struct {
	R                      *Report
	Version, Date, RMSE    string
	NoTrend, NoConvergence string
}

// WriteHTML writes r as a standalone HTML page.
func WriteHTML(w io.Writer, r *Report) error {
	version, date, rmse := latestCells(r.Latest)
	return htmlTemplate.Execute(w, htmlData{
		R:             r,
		Version:       version,
		Date:          date,
		RMSE:          rmse,
		NoTrend:       NoTrend,
		NoConvergence: NoConvergence,
	})
}
