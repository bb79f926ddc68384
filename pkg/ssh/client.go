package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/monshunter/ohmyremote/pkg/log"
	"github.com/monshunter/ohmyremote/pkg/process"
)

const (
	DefaultPort          = "22"
	DefaultUser          = "ubuntu"
	DefaultDialTimeout   = 15 * time.Second
	DefaultRetries       = 5
	DefaultRetryInterval = 3 * time.Second
)

// Client is a wrapper around an SSH connection to one machine. Host keys
// are not verified: test machines are recycled and their keys change.
type Client struct {
	Host     string
	Port     string
	User     string
	Password string
	PrivKey  string

	DialTimeout   time.Duration
	Retries       int
	RetryInterval time.Duration

	client *ssh.Client
}

// NewClient creates a new SSH client
func NewClient(host, port, user, password, privKey string) *Client {
	if port == "" {
		port = DefaultPort
	}
	if user == "" {
		user = DefaultUser
	}
	return &Client{
		Host:          host,
		Port:          port,
		User:          user,
		Password:      password,
		PrivKey:       privKey,
		DialTimeout:   DefaultDialTimeout,
		Retries:       DefaultRetries,
		RetryInterval: DefaultRetryInterval,
	}
}

func (c *Client) config() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}
	if c.PrivKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.PrivKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH credentials for %s@%s", c.User, c.Host)
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.DialTimeout,
	}, nil
}

// Connect dials the server, retrying until the attempts run out or ctx
// is done
func (c *Client) Connect(ctx context.Context) error {
	config, err := c.config()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(c.Host, c.Port)
	attempts := max(c.Retries, 1)
	for i := range attempts {
		var client *ssh.Client
		client, err = ssh.Dial("tcp", addr, config)
		if err == nil {
			c.client = client
			log.Debugf("SSH connection to %s established", addr)
			return nil
		}
		if i == attempts-1 {
			break
		}
		log.Debugf("SSH connection to %s failed: %v, retrying...", addr, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.RetryInterval):
		}
	}
	return fmt.Errorf("failed to connect to %s: %w", addr, err)
}

// Close closes the SSH connection
func (c *Client) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// RunCommand runs command on the server and returns its stdout. A
// non-zero remote exit status is reported as a *process.ProcessError.
// When not connected, a connection is opened for this command only.
func (c *Client) RunCommand(ctx context.Context, command string) ([]byte, error) {
	if c.client == nil {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		defer c.Close()
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, ctx.Err()
	case err = <-done:
	}
	if err == nil {
		return stdout.Bytes(), nil
	}

	perr := &process.ProcessError{
		Argv:     []string{"ssh", c.User + "@" + c.Host, command},
		ExitCode: -1,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Err:      err,
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		perr.ExitCode = exitErr.ExitStatus()
	}
	return stdout.Bytes(), perr
}

// Executor runs commands over native SSH, one connection per command, for
// callers that only know the address
type Executor struct {
	User    string
	Port    string
	PrivKey string
	Retries int
}

// NewExecutor loads the private key at keyFile
func NewExecutor(user, keyFile string) (*Executor, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key %s: %w", keyFile, err)
	}
	return &Executor{User: user, PrivKey: string(key)}, nil
}

// Run executes command on host
func (e *Executor) Run(ctx context.Context, host, command string) ([]byte, error) {
	client := NewClient(host, e.Port, e.User, "", e.PrivKey)
	if e.Retries > 0 {
		client.Retries = e.Retries
	}
	return client.RunCommand(ctx, command)
}

// Fetch copies the files matching globs on host into destDir
func (e *Executor) Fetch(ctx context.Context, host, destDir string, globs []string) error {
	client := NewClient(host, e.Port, e.User, "", e.PrivKey)
	if e.Retries > 0 {
		client.Retries = e.Retries
	}
	return client.Fetch(ctx, destDir, globs)
}
