package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/loadpress/loadpress/internal/resultparse"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/types"
)

// maxStderrCapture bounds how much stderr is retained for logging.
const maxStderrCapture = 64 * 1024

// LineFunc receives one decoded output line from the runner process.
type LineFunc func(level, message string)

// Runner supervises a single load-generator child process.
type Runner struct {
	cfg *config.RunnerConfig
}

// NewRunner creates a runner bound to the given configuration
func NewRunner(cfg *config.RunnerConfig) *Runner {
	return &Runner{cfg: cfg}
}

// ArtifactPath returns the result artifact path the runner writes for a task
func (r *Runner) ArtifactPath(taskID int64) string {
	return filepath.Join(r.cfg.DataDir, fmt.Sprintf("task_%d_result.json", taskID))
}

// buildArgs assembles the runner command line for a task
func (r *Runner) buildArgs(task *types.Task) []string {
	args := []string{
		fmt.Sprintf("--target-url=%s", task.TargetURL),
		fmt.Sprintf("--concurrency=%d", task.Concurrency),
		fmt.Sprintf("--duration=%s", task.Duration),
		fmt.Sprintf("--threads=%d", task.Threads),
		fmt.Sprintf("--task-id=%d", task.ID),
	}
	if task.ScriptPath != nil && *task.ScriptPath != "" {
		args = append(args, fmt.Sprintf("--script-path=%s", *task.ScriptPath))
	}
	return args
}

// Run executes the load generator for a task, streaming stdout lines through
// onLine as they arrive. Output bytes pass through encoding recovery before
// logging, so a GBK-emitting runner still yields readable trace lines.
// On nonzero exit the captured stderr is reported through onLine at error
// level and an execution error is returned. Context cancellation kills the
// child process.
func (r *Runner) Run(ctx context.Context, task *types.Task, onLine LineFunc) error {
	cmd := exec.CommandContext(ctx, r.cfg.BinaryPath, r.buildArgs(task)...)

	// The runner forks workers that inherit its pipes. Run the child in its
	// own process group and kill the whole group on cancellation, otherwise
	// surviving workers hold stdout open and the run blocks past cancel.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.NewInternalError("failed to open runner stdout").WithCause(err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrCapture}

	if err := cmd.Start(); err != nil {
		return errors.NewTaskError(task.ID, "failed to start load runner").WithCause(err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := resultparse.DecodeText(scanner.Bytes())
		if strings.TrimSpace(line) == "" {
			continue
		}
		onLine(types.LogLevelInfo, line)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		// An oversized line stops the scanner but must not stall the child:
		// drain the pipe so the run can finish and the artifact still counts.
		onLine(types.LogLevelWarning, fmt.Sprintf("output streaming stopped: %v", scanErr))
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()

	if stderrText := strings.TrimSpace(resultparse.DecodeText(stderr.Bytes())); stderrText != "" {
		level := types.LogLevelWarning
		if waitErr != nil {
			level = types.LogLevelError
		}
		onLine(level, stderrText)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return errors.NewTaskError(task.ID,
				fmt.Sprintf("load runner exited with code %d", exitErr.ExitCode())).WithCause(waitErr)
		}
		return errors.NewTaskError(task.ID, "load runner execution failed").WithCause(waitErr)
	}

	return nil
}

// ReadArtifact loads and parses the result artifact for a task. A clean exit
// with no artifact on disk is a missing-artifact error, which callers treat
// as a task failure.
func (r *Runner) ReadArtifact(taskID int64) (*resultparse.Metrics, []byte, error) {
	path := r.ArtifactPath(taskID)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewMissingArtifactError(path)
		}
		return nil, nil, errors.NewInternalError("failed to read result artifact").WithCause(err)
	}

	metrics, err := resultparse.Parse(raw)
	if err != nil {
		return nil, raw, err
	}
	return metrics, raw, nil
}

// limitedWriter discards writes past its limit.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if remaining := l.limit - l.w.Len(); remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
		}
		l.w.Write(p)
	}
	return n, nil
}
