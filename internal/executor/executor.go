package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultTimeout is used when Run is called with a non-positive timeout.
const DefaultTimeout = 300 * time.Second

// defaultWaitDelay bounds how long Run waits for output pipes after the
// process has been killed.
const defaultWaitDelay = 5 * time.Second

// Result describes a successful run. The report itself is a file the
// executable wrote; Result only carries what the process printed.
type Result struct {
	Output     []byte
	DurationMS int
}

// Runner launches the simulation executable.
type Runner struct {
	logger    *slog.Logger
	waitDelay time.Duration
}

// NewRunner creates a runner that logs through logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{
		logger:    logger,
		waitDelay: defaultWaitDelay,
	}
}

// Run executes `<executable> <inputPath>` and blocks until it exits, the
// timeout expires or ctx is cancelled. Standard output and standard error are
// captured together; onLine, when non-nil, receives each line as it is
// printed. A non-zero exit yields *ProcessError, an expired timeout yields an
// error wrapping ErrTimeout.
func (r *Runner) Run(ctx context.Context, executable, inputPath string, timeout time.Duration, onLine func(string)) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := &lineWriter{onLine: onLine}
	cmd := exec.CommandContext(runCtx, executable, inputPath)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = r.waitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		runsTotal.WithLabelValues(resultStartFail).Inc()
		return Result{}, fmt.Errorf("start %s: %w", executable, err)
	}

	r.logger.Debug("simulation started",
		"executable", executable,
		"input", inputPath,
		"pid", cmd.Process.Pid,
		"timeout", timeout,
	)

	waitErr := cmd.Wait()
	out.flush()
	elapsed := time.Since(start)
	runDuration.Observe(elapsed.Seconds())

	res := Result{
		Output:     out.bytes(),
		DurationMS: int(elapsed.Milliseconds()),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		runsTotal.WithLabelValues(resultTimeout).Inc()
		return res, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if ctx.Err() != nil {
		runsTotal.WithLabelValues(resultFailed).Inc()
		return res, fmt.Errorf("simulation aborted: %w", ctx.Err())
	}
	if waitErr != nil {
		runsTotal.WithLabelValues(resultFailed).Inc()
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return res, &ProcessError{
			ExitCode: exitCode,
			Output:   string(res.Output),
			Err:      waitErr,
		}
	}

	runsTotal.WithLabelValues(resultOK).Inc()
	return res, nil
}

// Check reports whether path names an executable regular file.
func Check(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("simulation executable: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("simulation executable %s is a directory", path)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("simulation executable %s is not executable", path)
	}
	return nil
}

// lineWriter accumulates process output and reports complete lines.
// os/exec calls Write from a single goroutine when Stdout and Stderr are the
// same writer; the mutex guards reads from other goroutines.
type lineWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	partial []byte
	onLine  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	if w.onLine == nil {
		return len(p), nil
	}

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(w.partial[:i], "\r")
		w.onLine(string(line))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

// flush reports a trailing line that was not newline-terminated.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.onLine != nil && len(w.partial) > 0 {
		w.onLine(string(w.partial))
	}
	w.partial = nil
}

func (w *lineWriter) bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Clone(w.buf.Bytes())
}
