package sshclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// sshConnectionFailure is the status the ssh binary exits with when it could not
// connect or authenticate.
const sshConnectionFailure = 255

// CommandRunner executes external commands and returns their output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execCommandRunner is the default implementation using os/exec.
type execCommandRunner struct{}

func (execCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// ExecRunner runs commands through the system ssh binary, or through a local
// shell when no host is set.
type ExecRunner struct {
	host   string
	user   string
	keyArg string
	cmd    CommandRunner
}

// ExecOption configures an ExecRunner.
type ExecOption func(*ExecRunner)

// WithExecUser passes -l user to ssh.
func WithExecUser(user string) ExecOption {
	return func(r *ExecRunner) {
		r.user = user
	}
}

// WithIdentityFile passes -i path to ssh.
func WithIdentityFile(path string) ExecOption {
	return func(r *ExecRunner) {
		r.keyArg = path
	}
}

// WithCommandRunner replaces the process runner, for tests.
func WithCommandRunner(cmd CommandRunner) ExecOption {
	return func(r *ExecRunner) {
		r.cmd = cmd
	}
}

// NewExecRunner creates an ExecRunner for host. The host may be an alias from
// ~/.ssh/config. An empty host runs commands locally with bash -c.
func NewExecRunner(host string, opts ...ExecOption) *ExecRunner {
	r := &ExecRunner{
		host: host,
		cmd:  execCommandRunner{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes command and returns its stdout.
func (r *ExecRunner) Run(ctx context.Context, command string) (string, error) {
	name, args := r.argv(command)
	stdout, stderr, err := r.cmd.Run(ctx, name, args...)
	if err == nil {
		return string(stdout), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%w: %w", ErrTimeout, ctxErr)
	}

	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) && coded.ExitCode() >= 0 {
		code := coded.ExitCode()
		msg := strings.TrimSpace(string(stderr))
		if r.host != "" && code == sshConnectionFailure {
			return "", fmt.Errorf("%w: ssh %s: %s", ErrConnection, r.host, msg)
		}
		return string(stdout), &ExitError{Code: code, Stderr: msg}
	}
	return "", fmt.Errorf("%w: %w", ErrConnection, err)
}

func (r *ExecRunner) argv(command string) (string, []string) {
	if r.host == "" {
		return "bash", []string{"-c", command}
	}
	args := []string{"-o", "BatchMode=yes", "-o", "ConnectTimeout=10"}
	if r.user != "" {
		args = append(args, "-l", r.user)
	}
	if r.keyArg != "" {
		args = append(args, "-i", r.keyArg)
	}
	args = append(args, r.host, command)
	return "ssh", args
}

var _ Runner = (*ExecRunner)(nil)
