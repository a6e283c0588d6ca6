// Command careauth-benchdiff compares two `go test -bench -count=N` outputs
// of the root package and fails when a hot path exceeds its regression
// budget.
//
//	careauth-benchdiff -baseline old.txt -candidate new.txt [-budgets budgets.yaml]
//
// A budget file replaces the built-in budgets:
//
//	- benchmark: BenchmarkAuthenticate
//	  unit: ns/op
//	  max_ratio: 0.25
//	- benchmark: BenchmarkAuthenticate
//	  unit: allocs/op
//	  slack: 1
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// budget bounds the median of one benchmark metric. A candidate passes when
// it stays within MaxRatio of the baseline or within Slack in absolute terms.
type budget struct {
	Benchmark string  `yaml:"benchmark"`
	Unit      string  `yaml:"unit"`
	MaxRatio  float64 `yaml:"max_ratio"`
	Slack     float64 `yaml:"slack"`
}

// Login is dominated by argon2id and gets a wider band than token checks.
var defaultBudgets = []budget{
	{Benchmark: "BenchmarkAuthenticate", Unit: "ns/op", MaxRatio: 0.30},
	{Benchmark: "BenchmarkAuthenticate", Unit: "allocs/op", Slack: 1},
	{Benchmark: "BenchmarkAuthorize", Unit: "ns/op", MaxRatio: 0.30},
	{Benchmark: "BenchmarkAuthorize", Unit: "allocs/op", Slack: 1},
	{Benchmark: "BenchmarkRefresh", Unit: "ns/op", MaxRatio: 0.30},
	{Benchmark: "BenchmarkLogin", Unit: "ns/op", MaxRatio: 0.50},
}

type metricKey struct {
	benchmark string
	unit      string
}

// runs holds every sample of every benchmark metric in one output file.
type runs map[metricKey][]float64

type verdict struct {
	budget
	baseline  float64
	candidate float64
	ok        bool
	note      string
}

func main() {
	baselinePath := flag.String("baseline", "", "benchmark output of the reference build")
	candidatePath := flag.String("candidate", "", "benchmark output of the build under test")
	budgetsPath := flag.String("budgets", "", "optional YAML budget list")
	flag.Parse()

	if *baselinePath == "" || *candidatePath == "" {
		fmt.Fprintln(os.Stderr, "usage: careauth-benchdiff -baseline FILE -candidate FILE [-budgets FILE]")
		os.Exit(2)
	}

	budgets := defaultBudgets
	if *budgetsPath != "" {
		var err error
		if budgets, err = loadBudgets(*budgetsPath); err != nil {
			fmt.Fprintf(os.Stderr, "budgets: %v\n", err)
			os.Exit(2)
		}
	}

	baseline, err := readRuns(*baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := readRuns(*candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "candidate: %v\n", err)
		os.Exit(1)
	}

	verdicts := evaluate(budgets, baseline, candidate)
	if err := writeReport(os.Stdout, verdicts); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
	if failed(verdicts) > 0 {
		os.Exit(1)
	}
}

func loadBudgets(path string) ([]budget, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []budget
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, errors.New("no budgets defined")
	}
	for i, b := range out {
		if b.Benchmark == "" || b.Unit == "" {
			return nil, fmt.Errorf("budget %d: benchmark and unit are required", i)
		}
		if b.MaxRatio < 0 || b.Slack < 0 {
			return nil, fmt.Errorf("budget %d: limits must be >= 0", i)
		}
	}
	return out, nil
}

// evaluate keeps the order of budgets. A metric absent from either run fails.
func evaluate(budgets []budget, baseline, candidate runs) []verdict {
	out := make([]verdict, 0, len(budgets))
	for _, b := range budgets {
		key := metricKey{b.Benchmark, b.Unit}
		v := verdict{budget: b}
		base, cand := baseline[key], candidate[key]
		switch {
		case len(base) == 0:
			v.note = "no baseline samples"
		case len(cand) == 0:
			v.note = "no candidate samples"
		default:
			v.baseline, v.candidate = median(base), median(cand)
			v.ok = v.candidate-v.baseline <= v.Slack ||
				(v.baseline > 0 && v.candidate <= v.baseline*(1+v.MaxRatio))
		}
		out = append(out, v)
	}
	return out
}

func failed(verdicts []verdict) int {
	n := 0
	for _, v := range verdicts {
		if !v.ok {
			n++
		}
	}
	return n
}

func writeReport(w io.Writer, verdicts []verdict) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BENCHMARK\tUNIT\tBASELINE\tCANDIDATE\tCHANGE\tBUDGET\tRESULT")
	for _, v := range verdicts {
		result := "ok"
		if !v.ok {
			result = "FAIL"
		}
		if v.note != "" {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t%s\t%s (%s)\n", v.Benchmark, v.Unit, v.limit(), result, v.note)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%s\t%s\t%s\n",
			v.Benchmark, v.Unit, v.baseline, v.candidate, v.change(), v.limit(), result)
	}
	fmt.Fprintf(tw, "\n%d of %d budgets exceeded\n", failed(verdicts), len(verdicts))
	return tw.Flush()
}

func (v verdict) change() string {
	if v.baseline == 0 {
		return fmt.Sprintf("%+.1f", v.candidate)
	}
	return fmt.Sprintf("%+.1f%%", (v.candidate-v.baseline)/v.baseline*100)
}

func (b budget) limit() string {
	switch {
	case b.MaxRatio > 0 && b.Slack > 0:
		return fmt.Sprintf("+%.0f%% or +%g", b.MaxRatio*100, b.Slack)
	case b.Slack > 0:
		return fmt.Sprintf("+%g", b.Slack)
	default:
		return fmt.Sprintf("+%.0f%%", b.MaxRatio*100)
	}
}

func readRuns(path string) (runs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseRuns(f)
}

// parseRuns collects every "value unit" pair of each benchmark result line.
// Names lose their -GOMAXPROCS suffix so runs on different hosts line up.
func parseRuns(r io.Reader) (runs, error) {
	out := runs{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name, pairs, ok := splitResultLine(sc.Text())
		if !ok {
			continue
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			value, err := strconv.ParseFloat(pairs[i], 64)
			if err != nil {
				continue
			}
			key := metricKey{name, pairs[i+1]}
			out[key] = append(out[key], value)
		}
	}
	return out, sc.Err()
}

// splitResultLine accepts "BenchmarkX-8  <iterations>  <value> <unit> ...".
func splitResultLine(line string) (string, []string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
		return "", nil, false
	}
	if _, err := strconv.ParseInt(fields[1], 10, 64); err != nil {
		return "", nil, false
	}
	return trimProcs(fields[0]), fields[2:], true
}

func trimProcs(name string) string {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 {
		return name
	}
	if _, err := strconv.Atoi(name[i+1:]); err != nil {
		return name
	}
	return name[:i]
}

func median(samples []float64) float64 {
	s := slices.Clone(samples)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
