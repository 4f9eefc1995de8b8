package exec

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	ctx := context.Background()
	// "go env" should be available and safe
	res, err := Run(ctx, "go", []string{"env", "GOHOSTOS"}, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if res.Stdout == "" {
		t.Error("expected stdout output, got empty")
	}
}

func TestRun_NotFound(t *testing.T) {
	ctx := context.Background()
	res, _ := Run(ctx, "nonexistentcommand12345", nil, "", nil)
	if res.ExitCode != 127 {
		t.Errorf("expected exit code 127 for missing command, got %d", res.ExitCode)
	}
}

func TestRun_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, _ := Run(ctx, "sleep", []string{"2"}, "", nil)

	// For robustness, skip where sleep is missing.
	if res.ExitCode == 127 {
		t.Skip("sleep command not found, skipping timeout test")
	}

	if res.ExitCode != 124 {
		t.Errorf("expected exit code 124 for timeout, got %d", res.ExitCode)
	}
}

func TestRun_Lines(t *testing.T) {
	var mu sync.Mutex
	got := map[string][]string{}

	res, err := Run(context.Background(), "sh",
		[]string{"-c", "echo one; echo two; echo oops 1>&2; printf tail"}, "",
		func(stream, line string) {
			mu.Lock()
			defer mu.Unlock()
			got[stream] = append(got[stream], line)
		})
	if res.ExitCode == 127 {
		t.Skip("sh not found")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got[Stdout]) != 3 || got[Stdout][0] != "one" || got[Stdout][2] != "tail" {
		t.Errorf("unexpected stdout lines: %v", got[Stdout])
	}
	if len(got[Stderr]) != 1 || got[Stderr][0] != "oops" {
		t.Errorf("unexpected stderr lines: %v", got[Stderr])
	}
	if res.Stdout != "one\ntwo\ntail" {
		t.Errorf("expected captured stdout to be kept, got %q", res.Stdout)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), "sh", []string{"-c", "exit 3"}, "", nil)
	if res.ExitCode == 127 {
		t.Skip("sh not found")
	}
	if err == nil {
		t.Error("expected error for nonzero exit")
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
}
