// Package sshclient runs shell commands on the host that executes a campaign.
//
// Two Runners are provided. SSHClient keeps one connection open via
// golang.org/x/crypto/ssh and is used when a private key is configured. ExecRunner
// shells out to the system ssh binary, so host aliases and agent setup from
// ~/.ssh/config keep working when no key is given.
//
// Failures are typed: ErrTimeout when the context expires, ErrConnection when the
// host cannot be reached, and *ExitError when the command ran but exited non-zero.
// Stdout is still returned alongside an *ExitError.
package sshclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultSSHPort     = "22"
	defaultDialTimeout = 10 * time.Second
)

var (
	// ErrTimeout is returned when a command does not finish before its deadline.
	ErrTimeout = errors.New("command timed out")
	// ErrConnection is returned when the remote host cannot be reached.
	ErrConnection = errors.New("connection failed")
)

// ExitError is returned when a command exits with a non-zero status.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command exited with status %d", e.Code)
	}
	return fmt.Sprintf("command exited with status %d: %s", e.Code, e.Stderr)
}

// Runner executes a shell command on the campaign host and returns its stdout.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// SSHClient manages a persistent SSH connection for running multiple commands.
// The connection is dialled on first use and redialled after a failure.
type SSHClient struct {
	addr            string
	user            string
	signer          ssh.Signer
	knownHostsPath  string
	dialTimeout     time.Duration
	logger          *slog.Logger
	hostKeyCallback ssh.HostKeyCallback

	mu     sync.Mutex
	client *ssh.Client
}

// Option configures an SSHClient.
type Option func(*SSHClient)

// WithUser sets the remote login user.
func WithUser(user string) Option {
	return func(c *SSHClient) {
		c.user = user
	}
}

// WithKnownHosts verifies the host key against a known_hosts file. Without it
// host keys are not checked.
func WithKnownHosts(path string) Option {
	return func(c *SSHClient) {
		c.knownHostsPath = path
	}
}

// WithDialTimeout bounds the TCP and handshake phase of a connection.
func WithDialTimeout(d time.Duration) Option {
	return func(c *SSHClient) {
		c.dialTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *SSHClient) {
		c.logger = logger
	}
}

// New creates an SSHClient for host ("name" or "name:port") authenticating with
// the given private key (PEM format). No connection is made until the first Run.
func New(host string, privateKeyPEM []byte, opts ...Option) (*SSHClient, error) {
	signer, err := ssh.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultSSHPort)
	}

	c := &SSHClient{
		addr:            host,
		user:            "root",
		signer:          signer,
		dialTimeout:     defaultDialTimeout,
		logger:          slog.Default(),
		hostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.knownHostsPath != "" {
		cb, err := knownhosts.New(c.knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", c.knownHostsPath, err)
		}
		c.hostKeyCallback = cb
	}
	return c, nil
}

// Run executes a command using a new session on the shared connection.
func (c *SSHClient) Run(ctx context.Context, command string) (string, error) {
	session, err := c.newSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		// the session goroutine may still be writing; its buffers are abandoned
		_ = session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case err := <-done:
		if err == nil {
			return stdoutBuf.String(), nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return stdoutBuf.String(), &ExitError{Code: exitErr.ExitStatus(), Stderr: stderrBuf.String()}
		}
		c.reset()
		return "", fmt.Errorf("%w: %w", ErrConnection, err)
	}
}

// Close closes the underlying SSH connection.
func (c *SSHClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *SSHClient) newSession() (*ssh.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		client, err := ssh.Dial("tcp", c.addr, &ssh.ClientConfig{
			User:            c.user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.signer)},
			HostKeyCallback: c.hostKeyCallback,
			Timeout:         c.dialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to dial SSH %s: %w", ErrConnection, c.addr, err)
		}
		c.logger.Debug("ssh connection established", "addr", c.addr, "user", c.user)
		c.client = client
	}

	session, err := c.client.NewSession()
	if err != nil {
		// the connection is probably dead; drop it so the next call redials
		c.client.Close()
		c.client = nil
		return nil, fmt.Errorf("%w: failed to create SSH session: %w", ErrConnection, err)
	}
	return session, nil
}

func (c *SSHClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

var _ Runner = (*SSHClient)(nil)
