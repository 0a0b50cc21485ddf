package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestWorkflowsCommand_ListsCatalog(t *testing.T) {
	out, err := run(t, "workflows")
	if err != nil {
		t.Fatalf("workflows failed: %v\n%s", err, out)
	}
	for _, id := range []string{"welcome-workflow", "contribution-workflow", "triage-workflow", "human_approval"} {
		if !strings.Contains(out, id) {
			t.Fatalf("expected %q in output:\n%s", id, out)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("id: good\nsteps:\n  - id: a\n    type: automated\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("id: bad\nsteps:\n  - id: a\n    type: automated\n    dependencies: [b]\n  - id: b\n    type: automated\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "validate", good)
	if err != nil || !strings.Contains(out, "ok") {
		t.Fatalf("expected good file to validate, got %v\n%s", err, out)
	}

	out, err = run(t, "validate", good, bad)
	if err == nil {
		t.Fatalf("expected failure for bad file\n%s", out)
	}
	if !strings.Contains(out, "FAIL") {
		t.Fatalf("expected FAIL in output:\n%s", out)
	}
}

func TestDemoCommand_RunsEveryAgent(t *testing.T) {
	t.Setenv("AGENTSIM_SIMULATION_MIN_STEP_DELAY", "1ms")
	t.Setenv("AGENTSIM_SIMULATION_MAX_STEP_DELAY", "2ms")
	t.Setenv("AGENTSIM_SIMULATION_SEED", "9")
	t.Setenv("AGENTSIM_LOG_LEVEL", "error")

	out, err := run(t, "demo", "--timeout", "20s", "--reject")
	if err != nil {
		t.Fatalf("demo failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "workflows started=3 completed=0 failed=3") {
		t.Fatalf("expected three rejected workflows:\n%s", out)
	}
	if !strings.Contains(out, "agentsim_approval_responses_total status=rejected 3") {
		t.Fatalf("expected rejection metrics:\n%s", out)
	}
}
