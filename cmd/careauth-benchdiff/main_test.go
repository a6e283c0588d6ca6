package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const baselineOutput = `goos: linux
pkg: github.com/MrEthical07/careAuth
BenchmarkAuthenticate-8   	  500000	      2000 ns/op	     900 B/op	      12 allocs/op
BenchmarkAuthenticate-8   	  500000	      2100 ns/op	     900 B/op	      12 allocs/op
BenchmarkAuthenticate-8   	  500000	      2050 ns/op	     900 B/op	      12 allocs/op
BenchmarkAuthorize-8      	  400000	      2500 ns/op	    1000 B/op	      14 allocs/op
BenchmarkRefresh-8        	   20000	     60000 ns/op	    8000 B/op	     120 allocs/op
BenchmarkLogin-8          	     100	  10000000 ns/op	 8400000 B/op	     150 allocs/op
BenchmarkUnrelated-8      	     100	         1 ns/op
PASS
ok  	github.com/MrEthical07/careAuth	12.345s
`

func mustParse(t *testing.T, out string) runs {
	t.Helper()
	r, err := parseRuns(strings.NewReader(out))
	if err != nil {
		t.Fatalf("parseRuns: %v", err)
	}
	return r
}

func TestParseRuns(t *testing.T) {
	r := mustParse(t, baselineOutput)

	if got := r[metricKey{"BenchmarkAuthenticate", "ns/op"}]; len(got) != 3 || got[2] != 2050 {
		t.Fatalf("authenticate samples = %v", got)
	}
	if got := median(r[metricKey{"BenchmarkAuthenticate", "ns/op"}]); got != 2050 {
		t.Fatalf("median = %v", got)
	}
	if got := r[metricKey{"BenchmarkLogin", "B/op"}]; len(got) != 1 {
		t.Fatalf("login B/op samples = %v", got)
	}
	if _, ok := r[metricKey{"ok", "github.com/MrEthical07/careAuth"}]; ok {
		t.Fatal("summary line parsed as a result")
	}
}

func TestEvaluateBudgets(t *testing.T) {
	baseline := mustParse(t, baselineOutput)

	cases := []struct {
		name     string
		from, to string
		failures int
	}{
		{"identical", "", "", 0},
		{"refresh over ratio", "60000 ns/op", "90000 ns/op", 1},
		{"login inside wider band", "10000000 ns/op", "14000000 ns/op", 0},
		{"one extra alloc", "14 allocs/op", "15 allocs/op", 0},
		{"two extra allocs", "14 allocs/op", "16 allocs/op", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := baselineOutput
			if tc.from != "" {
				out = strings.Replace(out, tc.from, tc.to, 1)
			}
			verdicts := evaluate(defaultBudgets, baseline, mustParse(t, out))
			if len(verdicts) != len(defaultBudgets) {
				t.Fatalf("verdicts = %d", len(verdicts))
			}
			if got := failed(verdicts); got != tc.failures {
				t.Fatalf("failures = %d, want %d: %+v", got, tc.failures, verdicts)
			}
		})
	}
}

func TestEvaluateMissingSamples(t *testing.T) {
	verdicts := evaluate(defaultBudgets, mustParse(t, baselineOutput), runs{})
	if got := failed(verdicts); got != len(defaultBudgets) {
		t.Fatalf("every budget should fail without candidate samples, got %d", got)
	}
	if verdicts[0].note != "no candidate samples" {
		t.Fatalf("note = %q", verdicts[0].note)
	}
}

func TestWriteReport(t *testing.T) {
	baseline := mustParse(t, baselineOutput)
	candidate := mustParse(t, strings.Replace(baselineOutput, "60000 ns/op", "90000 ns/op", 1))

	var buf bytes.Buffer
	if err := writeReport(&buf, evaluate(defaultBudgets, baseline, candidate)); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	report := buf.String()
	if !strings.Contains(report, "+50.0%") || !strings.Contains(report, "FAIL") {
		t.Fatalf("report missing refresh regression:\n%s", report)
	}
	if !strings.Contains(report, "1 of 6 budgets exceeded") {
		t.Fatalf("report missing summary:\n%s", report)
	}
}

func TestLoadBudgets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "budgets.yaml")
	body := "- benchmark: BenchmarkRefresh\n  unit: ns/op\n  max_ratio: 0.1\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	budgets, err := loadBudgets(path)
	if err != nil {
		t.Fatalf("loadBudgets: %v", err)
	}
	if len(budgets) != 1 || budgets[0].MaxRatio != 0.1 || budgets[0].limit() != "+10%" {
		t.Fatalf("budgets = %+v", budgets)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- benchmark: BenchmarkRefresh\n  threshold: 2\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadBudgets(bad); err == nil {
		t.Fatal("unknown field should be rejected")
	}
}

func TestTrimProcs(t *testing.T) {
	for raw, want := range map[string]string{
		"BenchmarkLogin-16":       "BenchmarkLogin",
		"BenchmarkLogin":          "BenchmarkLogin",
		"BenchmarkRole-superuser": "BenchmarkRole-superuser",
	} {
		if got := trimProcs(raw); got != want {
			t.Fatalf("trimProcs(%q) = %q, want %q", raw, got, want)
		}
	}
}
