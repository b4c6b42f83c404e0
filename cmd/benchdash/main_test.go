// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tracyrender/benchdash/history"
	"github.com/tracyrender/benchdash/internal/diff"
	"github.com/tracyrender/benchdash/runlog"
	"github.com/tracyrender/benchdash/runresult"
	"github.com/tracyrender/benchdash/storage/db"
	"github.com/tracyrender/benchdash/storage/fs"
	"github.com/tracyrender/benchdash/trend"
)

var update = flag.Bool("update", false, "update golden files")

var testNow = time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)

// testCommand returns a command with a fixed clock and CI environment.
func testCommand(t *testing.T) (*command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("bench_version", "0.1.0-build.3")
	t.Setenv("GITHUB_SHA", "0123456789abcdef")
	t.Setenv("BENCHDASH_LOG_LEVEL", "")
	t.Setenv("BENCHDASH_DB", "")
	var out, errOut bytes.Buffer
	c := newCommand(&out, &errOut)
	c.now = func() time.Time { return testNow }
	c.logTime = false
	return c, &out, &errOut
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	c, out, errOut := testCommand(t)
	t.Logf("benchdash %s", strings.Join(args, " "))
	err = c.execute(context.Background(), args)
	return out.String(), errOut.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := execute(t, args...)
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr:\n%s", err, errOut)
	}
	return out
}

// copyTestdata copies the named testdata files into a fresh directory.
func copyTestdata(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0666); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestPipeline(t *testing.T) {
	dir := copyTestdata(t, "run.log", "history.csv")
	logPath := filepath.Join(dir, "run.log")
	resultPath := filepath.Join(dir, "result.json")
	historyPath := filepath.Join(dir, "history.csv")
	readme := filepath.Join(dir, "README.md")
	config := filepath.Join("testdata", "benchdash.yaml")

	out := mustExecute(t, "record", "--config", config, logPath, resultPath)
	if want := "Wrote 2 result(s) to " + resultPath + "\n"; out != want {
		t.Errorf("record printed %q, want %q", out, want)
	}
	results, warnings, err := runresult.ReadFile(resultPath)
	if err != nil || len(warnings) != 0 {
		t.Fatalf("reading result: %v, %v", err, warnings)
	}
	st, mt := 3, 2
	wantResults := []runresult.Result{
		{Version: "0.1.0-build.3-st", RMSE: 0.1, Timestamp: "2025-01-03T12:00:00", Commit: "01234567", Iterations: &st},
		{Version: "0.1.0-build.3-mt", RMSE: 0.3, Timestamp: "2025-01-03T12:00:00", Commit: "01234567", Iterations: &mt},
	}
	if diff := cmp.Diff(wantResults, results); diff != "" {
		t.Errorf("recorded results mismatch (-want +got):\n%s", diff)
	}

	out = mustExecute(t, "append", "--config", config, resultPath, historyPath)
	if want := "Appended 2 row(s) to " + historyPath + "\n"; out != want {
		t.Errorf("append printed %q, want %q", out, want)
	}
	got, err := os.ReadFile(historyPath)
	if err != nil {
		t.Fatal(err)
	}
	diff.Golden(t, filepath.Join("testdata", "history.csv.golden"), got, *update)

	mustExecute(t, "dashboard", "--config", config, historyPath, logPath, readme)
	got, err = os.ReadFile(readme)
	if err != nil {
		t.Fatal(err)
	}
	diff.Golden(t, filepath.Join("testdata", "dashboard.md.golden"), got, *update)
}

func TestRecordLastLine(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "metric.log")
	if err := os.WriteFile(logPath, []byte("0.9\n0.4\n0.25\n\n"), 0666); err != nil {
		t.Fatal(err)
	}
	resultPath := filepath.Join(dir, "result.json")
	mustExecute(t, "record", "--last-line", logPath, resultPath)
	results, _, err := runresult.ReadFile(resultPath)
	if err != nil {
		t.Fatal(err)
	}
	want := []runresult.Result{{Version: "0.1.0-build.3", RMSE: 0.25, Timestamp: "2025-01-03T12:00:00", Commit: "01234567", Mode: "default"}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestSingleModeBuildsTrend(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.csv")
	for i, version := range []string{"0.1.0-build.1", "0.1.0-build.2"} {
		logPath := filepath.Join(dir, "metric.log")
		if err := os.WriteFile(logPath, []byte(fmt.Sprintf("0.9\n0.%d\n", 5-i)), 0666); err != nil {
			t.Fatal(err)
		}
		resultPath := filepath.Join(dir, "result.json")
		c, _, errOut := testCommand(t)
		t.Setenv("bench_version", version)
		for _, args := range [][]string{
			{"record", "--last-line", logPath, resultPath},
			{"append", resultPath, historyPath},
		} {
			if err := c.execute(context.Background(), args); err != nil {
				t.Fatalf("benchdash %s: %v\n%s", strings.Join(args, " "), err, errOut)
			}
		}
	}

	recs, err := history.ReadFile(historyPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	tr := trend.Align(history.NewMatrix(recs), 0)
	if diff := cmp.Diff([]string{"b.1", "b.2"}, tr.Versions); diff != "" {
		t.Errorf("trend versions mismatch (-want +got):\n%s", diff)
	}
	if len(tr.Series) != 1 || tr.Series[0].Mode != "default" {
		t.Fatalf("trend series = %+v, want one default series", tr.Series)
	}
	if diff := cmp.Diff([]float64{0.5, 0.4}, tr.Series[0].Values); diff != "" {
		t.Errorf("trend values mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordEmptyLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log")
	if err := os.WriteFile(logPath, []byte("VARIANT:st\n"), 0666); err != nil {
		t.Fatal(err)
	}
	resultPath := filepath.Join(dir, "result.json")
	_, _, err := execute(t, "record", logPath, resultPath)
	if !errors.Is(err, runlog.ErrEmptyLog) {
		t.Errorf("record of empty log: got %v, want %v", err, runlog.ErrEmptyLog)
	}
	if _, err := os.Stat(resultPath); !os.IsNotExist(err) {
		t.Errorf("record of empty log wrote %s", resultPath)
	}
}

func TestMalformedLinesWarn(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log")
	if err := os.WriteFile(logPath, []byte("VARIANT:st\n0.5,0\nbogus\n0.2,1\n"), 0666); err != nil {
		t.Fatal(err)
	}
	_, errOut, err := execute(t, "record", logPath, filepath.Join(dir, "result.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut, "[WARN]") || !strings.Contains(errOut, logPath+":3:") {
		t.Errorf("stderr lacks a warning for line 3:\n%s", errOut)
	}
}

func TestMissingInputs(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")
	readme := filepath.Join(dir, "README.md")
	for _, args := range [][]string{
		{"record", missing, filepath.Join(dir, "out.json")},
		{"append", missing, filepath.Join(dir, "history.csv")},
		{"dashboard", filepath.Join(dir, "history.csv"), missing, readme},
		{"plot", missing, filepath.Join(dir, "history.csv"), dir},
	} {
		if _, _, err := execute(t, args...); err == nil {
			t.Errorf("benchdash %s succeeded", strings.Join(args, " "))
		}
	}
	if _, err := os.Stat(readme); !os.IsNotExist(err) {
		t.Errorf("failed dashboard left %s behind", readme)
	}
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"record", "run.log"},
		{"append"},
		{"dashboard", "history.csv", "run.log"},
		{"plot", "run.log", "history.csv"},
		{"publish", "dest"},
		{"plot", "run.log", "history.csv", "out", "many"},
	} {
		out, _, err := execute(t, args...)
		if err == nil {
			t.Errorf("benchdash %s succeeded", strings.Join(args, " "))
			continue
		}
		if len(args) < 5 && !strings.Contains(out, "Usage:") {
			t.Errorf("benchdash %s printed no usage:\n%s", strings.Join(args, " "), out)
		}
	}
}

func TestDashboardNoHistory(t *testing.T) {
	dir := copyTestdata(t, "run.log")
	out := mustExecute(t, "dashboard", "--format", "text", filepath.Join(dir, "history.csv"), filepath.Join(dir, "run.log"), "-")
	for _, want := range []string{"N/A", "No benchmark data available yet.", "30.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard lacks %q:\n%s", want, out)
		}
	}
}

func TestDashboardTOMLWindow(t *testing.T) {
	dir := copyTestdata(t, "run.log", "history.csv")
	out := mustExecute(t, "dashboard", "--config", filepath.Join("testdata", "benchdash.toml"), "--format", "text",
		filepath.Join(dir, "history.csv"), filepath.Join(dir, "run.log"), "-")
	if !strings.Contains(out, "b.2") || strings.Contains(out, "b.1") {
		t.Errorf("window of 1 build not applied:\n%s", out)
	}

	// The flag wins over the file.
	out = mustExecute(t, "dashboard", "--config", filepath.Join("testdata", "benchdash.toml"), "--format", "text", "--window", "0",
		filepath.Join(dir, "history.csv"), filepath.Join(dir, "run.log"), "-")
	if !strings.Contains(out, "b.1") {
		t.Errorf("--window 0 did not show every build:\n%s", out)
	}
}

func TestDashboardBadFormat(t *testing.T) {
	dir := copyTestdata(t, "run.log", "history.csv")
	_, _, err := execute(t, "dashboard", "--format", "pdf", filepath.Join(dir, "history.csv"), filepath.Join(dir, "run.log"), "-")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("--format pdf: got %v", err)
	}
}

func TestDBMirror(t *testing.T) {
	dir := copyTestdata(t, "run.log")
	source := "sqlite3:" + filepath.Join(dir, "history.db")
	resultPath := filepath.Join(dir, "result.json")
	mustExecute(t, "record", filepath.Join(dir, "run.log"), resultPath)
	mustExecute(t, "append", "--db", source, resultPath, filepath.Join(dir, "history.csv"))

	// Read the history from the mirror only.
	os.Remove(filepath.Join(dir, "history.csv"))
	out := mustExecute(t, "dashboard", "--db", source, "--format", "text", filepath.Join(dir, "history.csv"), filepath.Join(dir, "run.log"), "-")
	if !strings.Contains(out, "latest: version 0.1.0-build.3") {
		t.Errorf("dashboard from mirror lacks latest build:\n%s", out)
	}
}

func TestDBMirrorFailedAppend(t *testing.T) {
	dir := copyTestdata(t, "run.log")
	dbPath := filepath.Join(dir, "history.db")
	resultPath := filepath.Join(dir, "result.json")
	mustExecute(t, "record", filepath.Join(dir, "run.log"), resultPath)

	// A History Store path below a regular file cannot be created.
	badPath := filepath.Join(dir, "run.log", "history.csv")
	if _, _, err := execute(t, "append", "--db", "sqlite3:"+dbPath, resultPath, badPath); err == nil {
		t.Fatal("append to unwritable History Store succeeded")
	}

	d, err := db.OpenSQL("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	recs, err := d.Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("mirror holds %d record(s) after failed append, want 0", len(recs))
	}
}

func TestPlot(t *testing.T) {
	dir := copyTestdata(t, "run.log", "history.csv")
	outDir := filepath.Join(dir, "plots")
	out := mustExecute(t, "plot", "--svg", filepath.Join(dir, "run.log"), filepath.Join(dir, "history.csv"), outDir, "2")
	if want := "Success: Plots generated in " + outDir + "\n"; out != want {
		t.Errorf("plot printed %q, want %q", out, want)
	}
	for _, name := range []string{"convergence.png", "history_trend.png", "convergence.svg", "history_trend.svg"} {
		fi, err := os.Stat(filepath.Join(outDir, name))
		if err != nil {
			t.Error(err)
			continue
		}
		if fi.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestPublish(t *testing.T) {
	dir := copyTestdata(t, "run.log", "history.csv")
	mem := fs.NewMemFS()
	c, out, _ := testCommand(t)
	var dest string
	c.openFS = func(_ context.Context, d string) (fs.FS, string, error) {
		dest = d
		return mem, "main", nil
	}
	err := c.execute(context.Background(), []string{"publish", "gs://bucket/main", filepath.Join(dir, "run.log"), filepath.Join(dir, "history.csv")})
	if err != nil {
		t.Fatal(err)
	}
	if dest != "gs://bucket/main" {
		t.Errorf("opened %q, want gs://bucket/main", dest)
	}
	if diff := cmp.Diff([]string{"main/history.csv", "main/run.log"}, mem.Files()); diff != "" {
		t.Errorf("published files mismatch (-want +got):\n%s", diff)
	}
	_, meta, _ := mem.Content("main/run.log")
	if diff := cmp.Diff(map[string]string{"version": "0.1.0-build.3", "commit": "0123456789abcdef"}, meta); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	if want := "Published 2 file(s) to gs://bucket/main\n"; out.String() != want {
		t.Errorf("publish printed %q, want %q", out.String(), want)
	}
}

func TestPublishLocal(t *testing.T) {
	dir := copyTestdata(t, "run.log")
	dest := filepath.Join(dir, "site")
	mustExecute(t, "publish", dest, filepath.Join(dir, "run.log"))
	got, err := os.ReadFile(filepath.Join(dest, "run.log"))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := os.ReadFile(filepath.Join("testdata", "run.log"))
	if !bytes.Equal(got, want) {
		t.Errorf("published run.log = %q, want %q", got, want)
	}
}
