package psdsummary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestRoot_SubcommandsPresent(t *testing.T) {
	want := map[string][]string{
		"summarize": nil,
		"synth":     nil,
		"list":      {"runs", "commands", "impacts"},
		"query":     {"time", "freq", "median", "wide"},
		"plot":      {"fslice", "tslice"},
	}
	have := map[string]*cobra.Command{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = c
	}
	for name, subs := range want {
		c, ok := have[name]
		if !ok {
			t.Fatalf("missing subcommand %s", name)
		}
		sub := map[string]bool{}
		for _, sc := range c.Commands() {
			sub[sc.Name()] = true
		}
		for _, s := range subs {
			if !sub[s] {
				t.Fatalf("%s subcommands missing %s: %v", name, s, sub)
			}
		}
	}
}

func TestCommands_HaveDescriptions(t *testing.T) {
	var check func(*cobra.Command)
	check = func(cmd *cobra.Command) {
		if cmd.Short == "" || cmd.Long == "" {
			t.Fatalf("command %s missing Short/Long", cmd.Name())
		}
		for _, sc := range cmd.Commands() {
			check(sc)
		}
	}
	check(rootCmd)
}

func TestListCommands_PrintsTree(t *testing.T) {
	var buf bytes.Buffer
	listAllCommands(&buf, rootCmd)
	out := buf.String()
	for _, want := range []string{"psdsummary commands:", "psdsummary summarize", "    psdsummary query time", "psdsummary plot fslice"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
	if strings.Contains(out, "psdsummary help") {
		t.Errorf("help command should be hidden: %s", out)
	}
}

// execute runs the root command with args and a fresh set of flag values.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()
	overwriteAll, keepAll, noProgress = false, false, false
	queryChannel, plotChannel = "", ""
	useNearest, freqNearest = false, false
	synth.Skip = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "psdsummary.yaml")
	body := fmt.Sprintf(`data_root: %s
out_root: %s
channels: [x, y]
workers: 2
impacts_file: %s
log_level: error
`, filepath.Join(dir, "data"), filepath.Join(dir, "out"), filepath.Join(dir, "impacts.dat"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEndToEnd_SynthSummarizeQueryPlot(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	const start, step = 1159724832, 1637
	missing := fmt.Sprint(start + 2*step)

	out, err := execute(t, "", "synth", "--config", cfgPath,
		"--mode", "ltp", "--name", "run_k", "--start", fmt.Sprint(start), "--step", fmt.Sprint(step),
		"--windows", "5", "--skip", "2", "--chains", "3", "--freqs", "4")
	if err != nil {
		t.Fatalf("synth: %v\n%s", err, out)
	}
	runDir := filepath.Join(dir, "data", "ltp", "run_k")
	if !strings.Contains(out, runDir) {
		t.Fatalf("synth output %q does not name %s", out, runDir)
	}

	out, err = execute(t, "", "summarize", "--config", cfgPath, "--overwrite-all", "--no-progress")
	if err != nil {
		t.Fatalf("summarize: %v\n%s", err, out)
	}
	dbPath := filepath.Join(dir, "out", "ltp", "run_k", "summaries", "psd.db")
	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	if !strings.Contains(out, "run_k") || !strings.Contains(out, missing) {
		t.Errorf("report should name the run and the missing time:\n%s", out)
	}

	// an existing summary is kept when the prompt is declined
	time.Sleep(10 * time.Millisecond)
	out, err = execute(t, "n\n", "summarize", "--config", cfgPath, "--no-progress", runDir)
	if err != nil {
		t.Fatalf("summarize (declined): %v\n%s", err, out)
	}
	if !strings.Contains(out, "Overwrite? (y/N)") {
		t.Errorf("expected overwrite prompt, got:\n%s", out)
	}
	if again, _ := os.Stat(dbPath); !again.ModTime().Equal(info.ModTime()) {
		t.Errorf("declined overwrite replaced the summary")
	}
	if _, err := execute(t, "", "summarize", "--config", cfgPath, "--keep-all", "--no-progress"); err != nil {
		t.Fatalf("summarize --keep-all: %v", err)
	}
	if _, err := execute(t, "", "summarize", "--config", cfgPath, "--keep-all", "--overwrite-all"); err == nil {
		t.Errorf("conflicting flags should fail")
	}

	out, err = execute(t, "", "query", "time", missing, "--config", cfgPath, "--run", "ltp/run_k")
	if err != nil {
		t.Fatalf("query time: %v\n%s", err, out)
	}
	if !strings.Contains(out, "missing-time") {
		t.Errorf("missing time should be reported:\n%s", out)
	}

	out, err = execute(t, "", "query", "time", fmt.Sprint(start+10), "--nearest", "--config", cfgPath, "--run", runDir, "--channel", "y")
	if err != nil {
		t.Fatalf("query time --nearest: %v\n%s", err, out)
	}
	if !strings.Contains(out, fmt.Sprintf("GPS %d", start)) || !strings.Contains(out, "observed") {
		t.Errorf("unexpected nearest output:\n%s", out)
	}

	out, err = execute(t, "", "query", "freq", "0.0021", "--nearest", "--config", cfgPath, "--run", runDir)
	if err != nil {
		t.Fatalf("query freq: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Hz") {
		t.Errorf("unexpected freq output:\n%s", out)
	}

	out, err = execute(t, "", "query", "wide", "--channel", "x", "--config", cfgPath, "--run", runDir)
	if err != nil {
		t.Fatalf("query wide: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 || !strings.HasPrefix(lines[0], "freq,") || strings.Count(lines[0], ",") != 5 {
		t.Fatalf("unexpected wide CSV:\n%s", out)
	}
	if !strings.Contains(out, "NaN") {
		t.Errorf("missing column should be NaN:\n%s", out)
	}

	if out, err = execute(t, "", "query", "median", "--config", cfgPath, "--run", runDir); err != nil {
		t.Fatalf("query median: %v\n%s", err, out)
	}

	out, err = execute(t, "", "list", "runs", "--config", cfgPath)
	if err != nil {
		t.Fatalf("list runs: %v\n%s", err, out)
	}
	if !strings.Contains(out, "run_k") || !strings.Contains(out, "1637") {
		t.Errorf("unexpected runs listing:\n%s", out)
	}

	impactsRow := fmt.Sprintf("2016-10-05T18:30:00 %d 0.5 0.1 0.9 +x - 10 20 30 40 1 2 3\n", start+3000)
	if err := os.WriteFile(filepath.Join(dir, "impacts.dat"), []byte(impactsRow), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "", "list", "impacts", "--config", cfgPath)
	if err != nil || !strings.Contains(out, "1 impacts") {
		t.Fatalf("list impacts: %v\n%s", err, out)
	}

	for _, kind := range []string{"fslice", "tslice"} {
		out, err = execute(t, "", "plot", kind, "--config", cfgPath, "--run", runDir, "--channel", "x", "--width", "320", "--height", "240")
		if err != nil {
			t.Fatalf("plot %s: %v\n%s", kind, err, out)
		}
		png := filepath.Join(dir, "out", "ltp", "run_k", "plots", "run_k_"+kind+"_x.png")
		if info, err := os.Stat(png); err != nil || info.Size() == 0 {
			t.Errorf("plot %s not written: %v", kind, err)
		}
	}
}

func TestSummarize_MissingRunIsSkipped(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	if _, err := execute(t, "", "synth", "--config", cfgPath, "--mode", "m", "--name", "r", "--windows", "2", "--chains", "2", "--freqs", "3"); err != nil {
		t.Fatal(err)
	}
	runDir := filepath.Join(dir, "data", "m", "r")
	out, err := execute(t, "", "summarize", "--config", cfgPath, "--no-progress", filepath.Join(dir, "data", "m", "gone"), runDir)
	if err != nil {
		t.Fatalf("summarize: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "m", "r", "summaries", "psd.db")); err != nil {
		t.Errorf("existing run not summarized: %v", err)
	}

	if _, err := execute(t, "", "query", "median", "--config", cfgPath, "--run", "m/gone"); err == nil {
		t.Errorf("query on a missing run should fail")
	}
}

func TestSummarize_InterruptedLeavesNoArtifactOrLock(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	if _, err := execute(t, "", "synth", "--config", cfgPath, "--mode", "m", "--name", "cut", "--windows", "3", "--chains", "2", "--freqs", "3"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := executeContext(t, ctx, "", "summarize", "--config", cfgPath, "--overwrite-all", "--no-progress")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	summaries := filepath.Join(dir, "out", "m", "cut", "summaries")
	entries, _ := os.ReadDir(summaries)
	for _, e := range entries {
		t.Errorf("interrupted summarize left %s behind", e.Name())
	}

	if out, err := execute(t, "", "summarize", "--config", cfgPath, "--overwrite-all", "--no-progress"); err != nil {
		t.Fatalf("summarize after interruption: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(summaries, "psd.db")); err != nil {
		t.Errorf("summary not written after interruption: %v", err)
	}
}
