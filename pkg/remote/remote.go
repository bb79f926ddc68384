// Package remote gives access to machines in a model, over SSH for Linux
// machines and WinRM for Windows ones.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/monshunter/ohmyremote/pkg/envar"
	"github.com/monshunter/ohmyremote/pkg/process"
	"github.com/monshunter/ohmyremote/pkg/status"
	"github.com/monshunter/ohmyremote/pkg/winrm"
)

// DefaultTimeout limits each direct operation
const DefaultTimeout = 120 * time.Second

// Client is the orchestrator a remote asks for status and mediated access
type Client interface {
	Status(ctx context.Context) (*status.Status, error)
	Output(ctx context.Context, subcommand string, args []string, timeout time.Duration) ([]byte, error)
	String() string
}

// Remote is a machine files and command output can be fetched from
type Remote interface {
	// Cat returns the content of filename. Environment variables in the
	// name are expanded following the rules of the remote platform.
	Cat(ctx context.Context, filename string) ([]byte, error)
	// Copy fetches the files matching globs into destDir
	Copy(ctx context.Context, destDir string, globs []string) error
	Address(ctx context.Context) (string, error)
	UpdateAddress(address string) error
	IsWindows() bool
	String() string
}

// Target identifies a machine either by address or by a unit the client
// can resolve. Status, when set, is used instead of fetching one.
type Target struct {
	Client  Client
	Unit    string
	Address string
	Series  string
	Status  *status.Status
}

// DirectRunner runs a command on a host without going through the
// orchestrator
type DirectRunner interface {
	Run(ctx context.Context, host, command string) ([]byte, error)
}

// DirectCopier fetches files from a host without going through the
// orchestrator. A DirectRunner that also implements it replaces scp.
type DirectCopier interface {
	Fetch(ctx context.Context, host, destDir string, globs []string) error
}

// Config holds the settings shared by remotes
type Config struct {
	Timeout time.Duration
	User    string
	Runner  process.Runner
	// Direct replaces the ssh binary for direct commands when set, and
	// scp as well when it is a DirectCopier
	Direct DirectRunner

	// WinRMCerts, when nil, are loaded from WinRMCertDir, which defaults
	// to the x509 directory of the juju data dir
	WinRMCerts    *winrm.Certs
	WinRMCertDir  string
	WinRMSessions winrm.SessionFactory
}

func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
		User:    "ubuntu",
		Runner:  process.NewExecRunner(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.User == "" {
		c.User = def.User
	}
	if c.Runner == nil {
		c.Runner = def.Runner
	}
	if c.WinRMCertDir == "" {
		c.WinRMCertDir = envar.WinRMCertDir()
	}
	if c.WinRMSessions == nil {
		c.WinRMSessions = winrm.NewSSLSessionFactory(winrm.Options{})
	}
	return c
}

// Kind is the transport used to reach a machine
type Kind int

const (
	KindSSH Kind = iota
	KindWinRM
)

func (k Kind) String() string {
	if k == KindWinRM {
		return "winrm"
	}
	return "ssh"
}

// ForSeries picks the transport for a machine series. Unknown series are
// assumed to be Linux.
func ForSeries(series string) Kind {
	if strings.HasPrefix(series, "win") {
		return KindWinRM
	}
	return KindSSH
}

// New creates the remote suited to the target's series
func New(ctx context.Context, target Target, cfg Config) (Remote, error) {
	if target.Address == "" && (target.Client == nil || target.Unit == "") {
		return nil, ErrInvalidTarget
	}
	cfg = cfg.withDefaults()
	if ForSeries(target.Series) == KindWinRM {
		return NewWinRMRemote(ctx, target, cfg)
	}
	return NewSSHRemote(target, cfg), nil
}

// FromUnit creates a remote for a unit. When series is empty it is looked
// up in the status, which is fetched if not supplied.
func FromUnit(ctx context.Context, client Client, unit, series string, st *status.Status, cfg Config) (Remote, error) {
	if client == nil || unit == "" {
		return nil, ErrInvalidTarget
	}
	if series == "" {
		if st == nil {
			var err error
			if st, err = client.Status(ctx); err != nil {
				return nil, err
			}
		}
		var err error
		if series, err = st.UnitSeries(unit); err != nil {
			return nil, err
		}
	}
	return New(ctx, Target{Client: client, Unit: unit, Series: series, Status: st}, cfg)
}

// FromAddress creates a remote for a bare address
func FromAddress(ctx context.Context, address, series string, cfg Config) (Remote, error) {
	return New(ctx, Target{Address: address, Series: series}, cfg)
}

// base holds what both transports share: the target and the cached status
type base struct {
	client  Client
	unit    string
	address string
	series  string
	status  *status.Status
}

func newBase(target Target) base {
	return base{
		client:  target.Client,
		unit:    target.Unit,
		address: target.Address,
		series:  target.Series,
		status:  target.Status,
	}
}

func (b *base) getStatus(ctx context.Context) (*status.Status, error) {
	if b.status == nil {
		st, err := b.client.Status(ctx)
		if err != nil {
			return nil, err
		}
		b.status = st
	}
	return b.status, nil
}

func (b *base) ensureAddress(ctx context.Context) error {
	if b.address != "" {
		return nil
	}
	if b.client == nil {
		return ErrNoAddressSource
	}
	st, err := b.getStatus(ctx)
	if err != nil {
		return err
	}
	addr, err := st.UnitAddress(b.unit)
	if err != nil {
		return err
	}
	b.address = addr
	return nil
}

// Address returns the machine address, resolving it from status once
func (b *base) Address(ctx context.Context) (string, error) {
	if err := b.ensureAddress(ctx); err != nil {
		return "", err
	}
	return b.address, nil
}

func (b *base) IsWindows() bool {
	return ForSeries(b.series) == KindWinRM
}

func (b *base) repr(name string) string {
	var params []string
	if b.client != nil {
		params = append(params, fmt.Sprintf("env=%q", b.client.String()))
	}
	if b.unit != "" {
		params = append(params, fmt.Sprintf("unit=%q", b.unit))
	}
	if b.address != "" {
		params = append(params, fmt.Sprintf("addr=%q", b.address))
	}
	return fmt.Sprintf("<%s %s>", name, strings.Join(params, " "))
}
