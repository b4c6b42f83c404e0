// Copyright 2025 The Benchdash Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tracyrender/benchdash/runresult"
)

func intp(n int) *int { return &n }

func TestShortVersion(t *testing.T) {
	for _, test := range []struct {
		in, want string
	}{
		{"1.2.0-build.145", "b.145"},
		{"0.1.0-build.145", "b.145"},
		{"abcdef123456", "123456"},
		{"v1", "v1"},
		{"", ""},
		{"build", "b.build"},
		{"héllo-wörld", "-wörld"},
	} {
		if got := ShortVersion(test.in); got != test.want {
			t.Errorf("ShortVersion(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestSplitVersion(t *testing.T) {
	for _, test := range []struct {
		in, base, mode string
	}{
		{"0.1.0-build.145-st", "0.1.0-build.145", "st"},
		{"1.0-MT", "1.0", "mt"},
		{"1.0", "1.0", "default"},
		{"1.0-", "1.0", "default"},
		// A CI version alone looks like base-mode; single-mode results
		// name their mode explicitly to avoid this split.
		{"0.1.0-build.145", "0.1.0", "build.145"},
	} {
		base, mode := SplitVersion(test.in)
		if base != test.base || mode != test.mode {
			t.Errorf("SplitVersion(%q) = %q, %q, want %q, %q", test.in, base, mode, test.base, test.mode)
		}
	}
}

func readString(t *testing.T, data string) ([]Record, []string) {
	t.Helper()
	var warnings []string
	warn := func(format string, args ...interface{}) {
		warnings = append(warnings, strings.TrimSpace(fmt.Sprintf(format, args...)))
	}
	recs, err := ReadAll(strings.NewReader(data), "history.csv", warn)
	if err != nil {
		t.Fatal(err)
	}
	return recs, warnings
}

func TestReadAll(t *testing.T) {
	recs, warnings := readString(t, `date,version,mode,rmse,commit,iterations
2025-01-01 00:00:00,0.1.0-build.1,ST,0.10,aaaa,10
2025-01-02 00:00:00,0.1.0-build.2,mt,0.20,bbbb,
`)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	want := []Record{
		{Date: "2025-01-01 00:00:00", Version: "0.1.0-build.1", Mode: "st", RMSE: 0.10, Commit: "aaaa", Iterations: intp(10)},
		{Date: "2025-01-02 00:00:00", Version: "0.1.0-build.2", Mode: "mt", RMSE: 0.20, Commit: "bbbb"},
	}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Errorf("ReadAll mismatch (-want +got):\n%s", diff)
	}
}

func TestReadLegacySchema(t *testing.T) {
	recs, _ := readString(t, `date,version,rmse,commit
2025-01-01 00:00:00,0.0.1-mock.123,0.042,unknown_
`)
	want := []Record{{Date: "2025-01-01 00:00:00", Version: "0.0.1-mock.123", Mode: "default", RMSE: 0.042, Commit: "unknown_"}}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Errorf("ReadAll mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedRow(t *testing.T) {
	recs, warnings := readString(t, `date,version,mode,rmse,commit
d1,0.1.0-build.1,st,0.10,a
d2,0.1.0-build.2,st,not-a-number,b
d3,0.1.0-build.3,st
d4,,st,0.3,d
d5,0.1.0-build.5,st,0.05,e
`)
	if len(recs) != 2 || recs[0].RMSE != 0.10 || recs[1].RMSE != 0.05 {
		t.Errorf("ReadAll = %+v, want rows d1 and d5", recs)
	}
	want := []string{
		`history.csv:3: parsing rmse "not-a-number": invalid syntax`,
		"history.csv:4: expected 5 fields, found 3",
		"history.csv:5: missing version",
	}
	if diff := cmp.Diff(want, warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}

	m := NewMatrix(recs)
	if diff := cmp.Diff([]string{"b.1", "b.5"}, m.Versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMissingHeaderColumns(t *testing.T) {
	_, err := ReadAll(strings.NewReader("date,commit\nx,y\n"), "bad.csv", nil)
	if err == nil {
		t.Fatal("expected error for header without version and rmse")
	}
}

func TestReadFileMissing(t *testing.T) {
	recs, err := ReadFile(filepath.Join(t.TempDir(), "none.csv"), nil)
	if err != nil || recs != nil {
		t.Fatalf("ReadFile(missing) = %v, %v; want nil, nil", recs, err)
	}
}

func TestReadEmpty(t *testing.T) {
	recs, warnings := readString(t, "")
	if len(recs) != 0 || len(warnings) != 0 {
		t.Fatalf("ReadAll(empty) = %v, %v", recs, warnings)
	}
}

func TestMatrix(t *testing.T) {
	recs := []Record{
		{Version: "0.1.0-build.1", Mode: "st", RMSE: 0.5},
		{Version: "0.1.0-build.1", Mode: "mt", RMSE: 0.4},
		{Version: "0.1.0-build.2", Mode: "st", RMSE: 0.3},
		{Version: "0.1.0-build.1", Mode: "st", RMSE: 0.45},
	}
	m := NewMatrix(recs)
	if diff := cmp.Diff([]string{"b.1", "b.2"}, m.Versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"mt", "st"}, m.Modes); diff != "" {
		t.Errorf("modes mismatch (-want +got):\n%s", diff)
	}
	if v, ok := m.Lookup("b.1", "st"); !ok || v != 0.45 {
		t.Errorf("Lookup(b.1, st) = %v, %v; want later record 0.45", v, ok)
	}
	if _, ok := m.Lookup("b.2", "mt"); ok {
		t.Errorf("Lookup(b.2, mt) found a value; want none")
	}
	if m.Latest == nil || m.Latest.RMSE != 0.45 {
		t.Errorf("Latest = %+v, want last record", m.Latest)
	}

	latest := LatestByMode(recs)
	if len(latest) != 2 || latest[0].Mode != "mt" || latest[1].RMSE != 0.45 {
		t.Errorf("LatestByMode = %+v", latest)
	}
}

func TestFromResult(t *testing.T) {
	got := FromResult(runresult.Result{
		Version:    "0.1.0-build.9-st",
		RMSE:       0.25,
		Timestamp:  "2025-03-01T12:34:56.789012",
		Commit:     "0123456789",
		Iterations: intp(40),
	})
	want := Record{
		Date:       "2025-03-01 12:34:56",
		Version:    "0.1.0-build.9",
		Mode:       "st",
		RMSE:       0.25,
		Commit:     "01234567",
		Iterations: intp(40),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromResult mismatch (-want +got):\n%s", diff)
	}

	got = FromResult(runresult.Result{Version: "0.1.0-build.9", Mode: "gpu", Timestamp: "yesterday"})
	if got.Version != "0.1.0-build.9" || got.Mode != "gpu" || got.Date != "yesterday" {
		t.Errorf("FromResult with explicit mode = %+v", got)
	}
}

func TestAppendTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "history.csv")
	rec := Record{Date: "2025-01-01 00:00:00", Version: "1.0", Mode: "st", RMSE: 0.125, Commit: "abc"}
	for i := 0; i < 2; i++ {
		if err := AppendFile(path, []Record{rec}); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `date,version,mode,rmse,commit,iterations
2025-01-01 00:00:00,1.0,st,0.125,abc,
2025-01-01 00:00:00,1.0,st,0.125,abc,
`
	if string(data) != want {
		t.Errorf("history file:\n%s\nwant:\n%s", data, want)
	}

	recs, err := ReadFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Record{rec, rec}, recs); diff != "" {
		t.Errorf("read back mismatch (-want +got):\n%s", diff)
	}
}

func TestFromResultSingleMode(t *testing.T) {
	var versions []string
	for _, v := range []string{"0.1.0-build.1", "0.1.0-build.2", "0.0.0-unknown"} {
		rec := FromResult(runresult.Result{Version: v, RMSE: 0.5, Mode: runresult.DefaultMode})
		if rec.Version != v || rec.Mode != DefaultMode {
			t.Errorf("FromResult(%q) = version %q, mode %q; want %q, %q", v, rec.Version, rec.Mode, v, DefaultMode)
		}
		versions = append(versions, ShortVersion(rec.Version))
	}
	if diff := cmp.Diff([]string{"b.1", "b.2", "nknown"}, versions); diff != "" {
		t.Errorf("short versions mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendLegacySchema(t *testing.T) {
	rec := Record{Date: "2025-01-02 00:00:00", Version: "0.1.0-build.2", Mode: DefaultMode, RMSE: 0.2, Commit: "bbbb", Iterations: intp(7)}
	for _, test := range []struct {
		name, existing, want string
	}{
		{
			"no iterations",
			"date,version,mode,rmse,commit\n2025-01-01 00:00:00,0.1.0-build.1,default,0.3,aaaa\n",
			"2025-01-02 00:00:00,0.1.0-build.2,default,0.2,bbbb\n",
		},
		{
			"no mode",
			"date,version,rmse,commit\n2025-01-01 00:00:00,0.1.0-build.1,0.3,aaaa\n",
			"2025-01-02 00:00:00,0.1.0-build.2,0.2,bbbb\n",
		},
		{
			"reordered without newline",
			"Version,RMSE,Date\n0.1.0-build.1,0.3,2025-01-01 00:00:00",
			"\n0.1.0-build.2,0.2,2025-01-02 00:00:00\n",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.csv")
			if err := os.WriteFile(path, []byte(test.existing), 0666); err != nil {
				t.Fatal(err)
			}
			if err := AppendFile(path, []Record{rec}); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if want := test.existing + test.want; string(data) != want {
				t.Errorf("history file:\n%s\nwant:\n%s", data, want)
			}

			var warnings []string
			recs, err := ReadFile(path, func(format string, args ...interface{}) {
				warnings = append(warnings, fmt.Sprintf(format, args...))
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != 2 || len(warnings) != 0 {
				t.Fatalf("read back %d records, warnings %q; want 2 records", len(recs), warnings)
			}
			if got := recs[1]; got.Version != rec.Version || got.RMSE != rec.RMSE || got.Mode != DefaultMode {
				t.Errorf("appended record read back as %+v", got)
			}
		})
	}
}

func TestAppendNoModeColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	existing := "date,version,rmse,commit\n2025-01-01 00:00:00,1.0,0.3,aaaa\n"
	if err := os.WriteFile(path, []byte(existing), 0666); err != nil {
		t.Fatal(err)
	}
	err := AppendFile(path, []Record{{Version: "1.1", Mode: "st", RMSE: 0.2}})
	if err == nil {
		t.Fatal("AppendFile of a moded record to a store without a mode column succeeded")
	}
	data, _ := os.ReadFile(path)
	if string(data) != existing {
		t.Errorf("failed append changed the store:\n%s", data)
	}
}
