// Package runner spawns subprocesses for the command-backed executors.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
)

// KillGrace is how long a cancelled process group gets between SIGTERM and
// SIGKILL.
var KillGrace = 3 * time.Second

// Command describes one subprocess invocation.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string // nil inherits the current environment
	Timeout time.Duration
}

// Result holds the output of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Shell builds a Command that runs command via sh -c.
func Shell(command string) Command {
	return Command{Path: "sh", Args: []string{"-c", command}}
}

// Run executes c and captures its output. A non-zero exit is not an error.
// Errors are returned when the process cannot be started (TRANSIENT), when
// the timeout elapses (TIMEOUT) or when ctx is cancelled (CANCELLED); in the
// latter two cases the partial output is returned with ExitCode -1.
func Run(ctx context.Context, c Command) (*Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, runerrors.NewTransient(fmt.Sprintf("executable not found or not startable: %s", c.Path), err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		terminate(cmd, done)
		res := &Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, &runerrors.RunError{
				Type:    runerrors.Timeout,
				Message: fmt.Sprintf("%s timed out after %s", c.Path, c.Timeout),
				Cause:   ctx.Err(),
			}
		}
		return res, &runerrors.RunError{Type: runerrors.Cancelled, Message: c.Path + " cancelled", Cause: ctx.Err()}

	case err := <-done:
		exitCode := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				exitCode = 1
			}
		}
		return &Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}, nil
	}
}

// terminate sends SIGTERM to the process group, then SIGKILL after KillGrace.
func terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(KillGrace):
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
	}
}

// MergeEnv returns base with overrides applied, later keys winning.
// A nil base starts from os.Environ.
func MergeEnv(base []string, overrides map[string]string) []string {
	if base == nil {
		base = os.Environ()
	}
	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]int, len(base))
	for _, kv := range base {
		k := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k = kv[:i]
		}
		if j, ok := seen[k]; ok {
			out[j] = kv
			continue
		}
		seen[k] = len(out)
		out = append(out, kv)
	}
	for k, v := range overrides {
		kv := k + "=" + v
		if j, ok := seen[k]; ok {
			out[j] = kv
			continue
		}
		seen[k] = len(out)
		out = append(out, kv)
	}
	return out
}

// LookupEnv finds key in an environment list.
func LookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		kv := env[i]
		if j := strings.IndexByte(kv, '='); j >= 0 && kv[:j] == key {
			return kv[j+1:], true
		}
	}
	return "", false
}
