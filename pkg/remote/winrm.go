package remote

import (
	"bytes"
	"context"
	"fmt"

	"github.com/monshunter/ohmyremote/pkg/copystream"
	"github.com/monshunter/ohmyremote/pkg/log"
	"github.com/monshunter/ohmyremote/pkg/process"
	"github.com/monshunter/ohmyremote/pkg/winrm"
)

// WinRMRemote reaches Windows machines over WinRM with client certificates
type WinRMRemote struct {
	base
	certs    winrm.Certs
	sessions winrm.SessionFactory
	session  winrm.Session
}

// NewWinRMRemote resolves the address and opens a session straight away
func NewWinRMRemote(ctx context.Context, target Target, cfg Config) (*WinRMRemote, error) {
	cfg = cfg.withDefaults()
	r := &WinRMRemote{
		base:     newBase(target),
		sessions: cfg.WinRMSessions,
	}
	if err := r.ensureAddress(ctx); err != nil {
		return nil, err
	}

	if cfg.WinRMCerts != nil {
		r.certs = *cfg.WinRMCerts
	} else {
		certs, err := winrm.LoadCerts(cfg.WinRMCertDir)
		if err != nil {
			return nil, err
		}
		r.certs = certs
	}

	session, err := r.sessions(r.address, r.certs)
	if err != nil {
		return nil, err
	}
	r.session = session
	return r, nil
}

// UpdateAddress switches to a new address with a fresh session. On failure
// the remote keeps its old address and session.
func (r *WinRMRemote) UpdateAddress(address string) error {
	session, err := r.sessions(address, r.certs)
	if err != nil {
		return err
	}
	r.address = address
	r.session = session
	return nil
}

// RunCmd runs a command given as a program and its arguments. The
// arguments are escaped here because the session passes them verbatim.
func (r *WinRMRemote) RunCmd(ctx context.Context, argv []string) (*winrm.Response, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidArgument)
	}
	cmd := winrm.EscapeArgs(argv[:1])
	args := []string{winrm.EscapeArgs(argv[1:])}
	return r.session.RunCmd(ctx, cmd, args)
}

// RunPS runs a PowerShell script
func (r *WinRMRemote) RunPS(ctx context.Context, script string) (*winrm.Response, error) {
	return r.session.RunPS(ctx, script)
}

// Cat returns the content of filename. Backslashes are directory
// separators and %VARS% are expanded. A failing type command is only
// logged: whatever it printed is returned.
func (r *WinRMRemote) Cat(ctx context.Context, filename string) ([]byte, error) {
	resp, err := r.session.RunCmd(ctx, "type", []string{winrm.EscapeArgs([]string{filename})})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 0 {
		log.Warnf("winrm cat failed %s", resp)
	}
	return resp.StdOut, nil
}

// Copy fetches regular files matching globs. Directories are not copied
// recursively: a directory match arrives as an error record.
func (r *WinRMRemote) Copy(ctx context.Context, destDir string, globs []string) error {
	if len(globs) == 0 {
		return fmt.Errorf("%w: no source globs", ErrInvalidArgument)
	}
	resp, err := r.RunPS(ctx, copystream.PowerShellScript(globs))
	if err != nil {
		return err
	}
	if resp.StatusCode != 0 {
		log.Warnf("winrm copy stderr:\n%s", resp.StdErr)
		return &process.ProcessError{
			Argv:     []string{"powershell"},
			ExitCode: resp.StatusCode,
			Stdout:   resp.StdOut,
			Stderr:   resp.StdErr,
		}
	}
	written, err := copystream.DecodeToDir(destDir, bytes.NewReader(resp.StdOut))
	for _, name := range written {
		if copystream.IsErrorRecord(name) {
			log.Warnf("Failed to copy %s from %s", name[:len(name)-len(copystream.ErrorSuffix)], r.address)
		}
	}
	return err
}

func (r *WinRMRemote) String() string {
	return r.repr("WinRMRemote")
}
