// Package sandbox implements the Sandbox Runner (spec 4.E): executing a
// command inside a constrained filesystem view, with a timeout and an
// explicit environment.
//
// Spec §9 frames sandboxing as a policy record, not a process mode:
// Runner is the interface the Builder depends on; hostRunner is its one
// realization, running commands directly or, when configured with
// WithIsolation, behind an isolation wrapper. This generalizes the
// teacher's container-only Executor (internal/sandbox/executor.go) to
// the abstract "run a command in a dir with env + timeout" contract the
// core actually needs, while keeping its functional-options
// construction style.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/stefan-hacks/pygr/internal/errmsg"
	"github.com/stefan-hacks/pygr/internal/log"
)

// Policy describes the capability set a Run call is granted (spec 4.E):
// read-only access to the source and store is implicit; WritablePaths
// are the only paths a command may write to, and Network gates whether
// the sandboxed command may reach the network at all.
type Policy struct {
	WritablePaths []string
	Network       bool
}

// Marker renders the policy's contribution to the build fingerprint
// (spec §3 "sandbox policy marker").
func (p Policy) Marker() string {
	if p.Network {
		return "network-on"
	}
	return "network-off"
}

// Request is one command to execute under a Policy.
type Request struct {
	Command []string
	Cwd     string
	Env     []string
	Timeout time.Duration
	Policy  Policy
}

// Result captures a completed run's captured output.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands under a sandbox policy (spec 4.E).
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// BuildFailedError reports a command that ran to completion with a
// non-zero exit status (spec 4.E, error kind BuildFailed).
type BuildFailedError struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("command %v exited %d:\n%s", e.Command, e.ExitCode, e.Stderr)
}
func (e *BuildFailedError) ErrorKind() errmsg.Kind { return errmsg.KindBuildFailed }

// BuildTimeoutError reports a command that was killed after exceeding
// its timeout (spec 4.E, error kind BuildTimeout).
type BuildTimeoutError struct {
	Command []string
	Timeout time.Duration
}

func (e *BuildTimeoutError) Error() string {
	return fmt.Sprintf("command %v exceeded timeout %s", e.Command, e.Timeout)
}
func (e *BuildTimeoutError) ErrorKind() errmsg.Kind { return errmsg.KindBuildTimeout }

// Option configures a Runner constructed by New.
type Option func(*hostRunner)

// WithLogger sets a logger for runner diagnostics.
func WithLogger(logger log.Logger) Option {
	return func(r *hostRunner) { r.logger = logger }
}

// WithIsolation selects an isolating command wrapper (e.g. "bwrap",
// "unshare") prepended to every command when the sandbox facility is
// enabled. An empty value (the default) runs commands directly under
// the host process, per spec 4.E: "When the sandbox facility is
// disabled by configuration, the command runs under the host process
// with the provided env."
func WithIsolation(wrapper string) Option {
	return func(r *hostRunner) { r.isolation = wrapper }
}

// New returns the default Runner. Its isolation wrapper is empty unless
// WithIsolation is supplied, making the host-process path (spec 4.E's
// disabled-sandbox case) the default realization.
func New(opts ...Option) Runner {
	r := &hostRunner{logger: log.NewNoop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// hostRunner runs commands as host subprocesses, optionally wrapped by
// an external isolation tool for the "sandbox enabled" case.
type hostRunner struct {
	logger    log.Logger
	isolation string
}

func (r *hostRunner) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Command) == 0 {
		return Result{}, fmt.Errorf("sandbox: empty command")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	argv := req.Command
	if r.isolation != "" {
		argv = r.wrapIsolated(req)
	}

	r.logger.Debug("running sandbox command", "argv", argv, "cwd", req.Cwd, "network", req.Policy.Network)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = req.Cwd
	cmd.Env = req.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, &BuildTimeoutError{Command: req.Command, Timeout: req.Timeout}
	}
	if err != nil {
		return result, &BuildFailedError{
			Command:  req.Command,
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
		}
	}
	return result, nil
}

// wrapIsolated prepends the configured isolation tool, granting
// read-write access to the policy's writable paths and nothing else.
// bwrap (bubblewrap) is the reference tool this targets: read-only bind
// of cwd, read-write binds of writable paths, and network namespace
// unshared unless Policy.Network is set.
func (r *hostRunner) wrapIsolated(req Request) []string {
	argv := []string{r.isolation, "--ro-bind", req.Cwd, req.Cwd}
	for _, p := range req.Policy.WritablePaths {
		argv = append(argv, "--bind", p, p)
	}
	if !req.Policy.Network {
		argv = append(argv, "--unshare-net")
	}
	argv = append(argv, "--chdir", req.Cwd)
	argv = append(argv, req.Command...)
	return argv
}

// IsolationAvailable reports whether the named isolation tool is on
// PATH, for configuration code deciding whether --sandbox can be
// honored.
func IsolationAvailable(wrapper string) bool {
	_, err := exec.LookPath(wrapper)
	return err == nil
}
