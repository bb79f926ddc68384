package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/alessio/shellescape"

	"github.com/monshunter/ohmyremote/pkg/log"
	"github.com/monshunter/ohmyremote/pkg/process"
)

// Mode is how an SSHRemote runs commands
type Mode int

const (
	// ModeMediated goes through the orchestrator first
	ModeMediated Mode = iota
	// ModeDirectOnly connects straight to the machine address. Once a
	// remote is in this mode it never leaves it.
	ModeDirectOnly
)

func (m Mode) String() string {
	if m == ModeMediated {
		return "mediated"
	}
	return "direct"
}

// SSHRemote reaches Linux machines over ssh
type SSHRemote struct {
	base
	mode    Mode
	timeout time.Duration
	user    string
	runner  process.Runner
	direct  DirectRunner
}

// NewSSHRemote creates an SSH remote. It starts in mediated mode when the
// target names a unit.
func NewSSHRemote(target Target, cfg Config) *SSHRemote {
	cfg = cfg.withDefaults()
	mode := ModeDirectOnly
	if target.Client != nil && target.Unit != "" {
		mode = ModeMediated
	}
	return &SSHRemote{
		base:    newBase(target),
		mode:    mode,
		timeout: cfg.Timeout,
		user:    cfg.User,
		runner:  cfg.Runner,
		direct:  cfg.Direct,
	}
}

func (r *SSHRemote) Mode() Mode {
	return r.mode
}

func (r *SSHRemote) sshOpts() []string {
	return []string{
		"-o", "User " + r.user,
		"-o", "UserKnownHostsFile /dev/null",
		"-o", "StrictHostKeyChecking no",
	}
}

// Run runs command on the machine and returns its stdout. The first
// failure of the mediated path switches the remote to direct mode for good.
func (r *SSHRemote) Run(ctx context.Context, command string) ([]byte, error) {
	if r.mode == ModeMediated {
		out, err := r.client.Output(ctx, "ssh", []string{r.unit, command}, r.timeout)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		log.Warnf("juju ssh to %q failed: %v", r.unit, err)
		r.mode = ModeDirectOnly
	}
	if err := r.ensureAddress(ctx); err != nil {
		return nil, err
	}

	if r.direct != nil {
		ctx, cancel := r.withTimeout(ctx)
		defer cancel()
		return r.direct.Run(ctx, r.address, command)
	}

	argv := append([]string{"ssh"}, r.sshOpts()...)
	argv = append(argv, r.address, command)
	return r.runner.Output(ctx, process.WithTimeout(r.timeout, argv))
}

func (r *SSHRemote) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

// Cat returns the content of filename. Tildes and $VARS are not expanded
// since the name is quoted for the remote shell.
func (r *SSHRemote) Cat(ctx context.Context, filename string) ([]byte, error) {
	return r.Run(ctx, "cat "+shellescape.Quote(filename))
}

// Copy fetches files and directories matching globs with scp, or the
// native copier when configured. It always connects directly.
func (r *SSHRemote) Copy(ctx context.Context, destDir string, globs []string) error {
	if len(globs) == 0 {
		return fmt.Errorf("%w: no source globs", ErrInvalidArgument)
	}
	if err := r.ensureAddress(ctx); err != nil {
		return err
	}
	if copier, ok := r.direct.(DirectCopier); ok {
		ctx, cancel := r.withTimeout(ctx)
		defer cancel()
		return copier.Fetch(ctx, r.address, destDir, globs)
	}
	argv := append([]string{"scp", "-rC"}, r.sshOpts()...)
	for _, glob := range globs {
		argv = append(argv, r.address+":"+glob)
	}
	argv = append(argv, destDir)
	_, err := r.runner.Output(ctx, process.WithTimeout(r.timeout, argv))
	return err
}

func (r *SSHRemote) UpdateAddress(address string) error {
	r.address = address
	return nil
}

func (r *SSHRemote) String() string {
	return r.repr("SSHRemote")
}
