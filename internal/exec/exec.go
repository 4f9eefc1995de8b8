package exec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Result holds the execution result.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

const waitDelay = time.Second

// Stream names passed to a LineFunc.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// LineFunc receives each complete output line as the process produces it.
// It may be called from two goroutines at once (one per stream).
type LineFunc func(stream, line string)

// Run executes a command with context/timeout, capturing output and duration.
// It returns specific exit codes for timeout (124) and not found (127).
// When onLine is non-nil every stdout/stderr line is also handed to it.
func Run(ctx context.Context, name string, args []string, dir string, onLine LineFunc) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Children of a killed process may keep the output pipes open.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	var outLines, errLines *lineWriter
	if onLine != nil {
		outLines = &lineWriter{stream: Stdout, fn: onLine}
		errLines = &lineWriter{stream: Stderr, fn: onLine}
		cmd.Stdout = io.MultiWriter(&stdout, outLines)
		cmd.Stderr = io.MultiWriter(&stderr, errLines)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	duration := time.Since(start)

	if onLine != nil {
		outLines.Flush()
		errLines.Flush()
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
		ExitCode: 0,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Other errors (e.g. not found, context cancelled)
			res.ExitCode = 1
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.ExitCode = 124
		} else if errors.Is(err, exec.ErrNotFound) {
			res.ExitCode = 127
		}
	}

	return res, err
}

// lineWriter splits written bytes into lines and forwards complete ones.
type lineWriter struct {
	mu     sync.Mutex
	stream string
	fn     LineFunc
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(w.buf[:i], "\r")
		w.fn(w.stream, string(line))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush forwards a trailing line that had no newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.fn(w.stream, string(w.buf))
		w.buf = nil
	}
}
