// Package shell launches a rule's command as a child process (§4.4, §4.5:
// "fork + exec of /bin/sh -c <cmd> with the prepared fds and
// environment").
package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.trai.ch/zerr"

	"go.stu.dev/stu/internal/core/ports"
)

// shutdownGrace bounds how long a canceled command is given to exit after
// SIGTERM before Executor escalates to SIGKILL (§4.5 "Signal handling":
// "sends SIGTERM to all job process groups ... waits briefly").
const shutdownGrace = 2 * time.Second

// Executor runs a resolved command through "/bin/sh -c".
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates an Executor that streams stdout/stderr to logger
// (stdout only when spec.OutputPath is empty — an output-redirected
// command's stdout goes to the file instead, per §4.4).
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{logger: logger}
}

var _ ports.Executor = (*Executor)(nil)

// Execute runs spec.Command via "/bin/sh -c", wiring InputPath as stdin
// and OutputPath as stdout when set, and merging spec.Env over the
// inherited process environment.
func (e *Executor) Execute(ctx context.Context, spec ports.ExecSpec) (int, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", spec.Command) //nolint:gosec // rule-authored command, by design
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = shutdownGrace
	cmd.Env = mergeEnv(os.Environ(), spec.Env)

	if spec.InputPath != "" {
		f, err := os.Open(spec.InputPath)
		if err != nil {
			return -1, zerr.With(zerr.Wrap(err, "opening input redirect"), "path", spec.InputPath)
		}
		defer f.Close()
		cmd.Stdin = f
	}

	var outFile *os.File
	if spec.OutputPath != "" {
		tmp := tempOutputPath(spec.OutputPath)
		f, err := os.Create(tmp)
		if err != nil {
			return -1, zerr.With(zerr.Wrap(err, "opening output redirect"), "path", tmp)
		}
		defer f.Close()
		cmd.Stdout = f
		outFile = f
	} else {
		cmd.Stdout = &logWriter{logger: e.logger, level: "info"}
	}
	cmd.Stderr = &logWriter{logger: e.logger, level: "error"}

	runErr := cmd.Run()

	if outFile != nil {
		tmp := outFile.Name()
		if runErr == nil {
			if err := os.Rename(tmp, spec.OutputPath); err != nil {
				return -1, zerr.With(zerr.Wrap(err, "publishing output redirect"), "path", spec.OutputPath)
			}
		} else {
			_ = os.Remove(tmp)
		}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, zerr.Wrap(runErr, "starting command")
	}
	return 0, nil
}

func tempOutputPath(path string) string {
	return path + ".tmp." + strconv.Itoa(os.Getpid())
}

// mergeEnv overlays vars (the rule's VARIABLE dependencies) onto the
// inherited process environment, last write wins (§4.1 "Environment").
func mergeEnv(base []string, vars map[string]string) []string {
	if len(vars) == 0 {
		return base
	}
	env := make(map[string]string, len(base)+len(vars))
	for _, entry := range base {
		if k, v, ok := strings.Cut(entry, "="); ok {
			env[k] = v
		}
	}
	for k, v := range vars {
		env[k] = v
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

type logWriter struct {
	logger ports.Logger
	level  string
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSuffix(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		if w.level == "info" {
			w.logger.Info(line)
		} else {
			w.logger.Error(zerr.New(line))
		}
	}
	return len(p), nil
}
