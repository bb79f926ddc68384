package juju

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/monshunter/ohmyremote/pkg/log"
	"github.com/monshunter/ohmyremote/pkg/process"
	"github.com/monshunter/ohmyremote/pkg/status"
)

const DefaultBinary = "juju"

// Client drives the juju command line for one model
type Client struct {
	Binary string
	Model  string
	runner process.Runner
}

// NewClient creates a client for model. A nil runner uses os/exec.
func NewClient(binary, model string, runner process.Runner) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &Client{
		Binary: binary,
		Model:  model,
		runner: runner,
	}
}

// CheckInstalled checks if the juju binary exists
func (c *Client) CheckInstalled() error {
	if _, err := exec.LookPath(c.Binary); err != nil {
		return fmt.Errorf("%s command not found, please install juju first: %w", c.Binary, err)
	}
	return nil
}

func (c *Client) command(subcommand string, args ...string) []string {
	argv := []string{c.Binary, subcommand}
	if c.Model != "" {
		argv = append(argv, "-m", c.Model)
	}
	return append(argv, args...)
}

// Status fetches and parses `juju status`
func (c *Client) Status(ctx context.Context) (*status.Status, error) {
	out, err := c.runner.Output(ctx, c.command("status", "--format", "yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to get status of model %s: %w", c.Model, err)
	}
	return status.Parse(out)
}

// Output runs a juju subcommand and returns its stdout. A positive timeout
// wraps the invocation with the timeout prefix.
func (c *Client) Output(ctx context.Context, subcommand string, args []string, timeout time.Duration) ([]byte, error) {
	argv := process.WithTimeout(timeout, c.command(subcommand, args...))
	log.Debugf("Running %v", argv)
	return c.runner.Output(ctx, argv)
}

func (c *Client) String() string {
	return c.Model
}
