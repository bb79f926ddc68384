// Package winrm runs commands on Windows machines over WinRM with client
// certificate authentication.
package winrm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/masterzen/winrm"
)

const (
	DefaultPort    = 5986
	DefaultTimeout = 60 * time.Second

	KeyFile  = "winrmkey.pem"
	CertFile = "winrmcert.crt"
)

// Response is the outcome of one remote command
type Response struct {
	StatusCode int
	StdOut     []byte
	StdErr     []byte
}

func (r *Response) String() string {
	return fmt.Sprintf("<Response code %d, out %q, err %q>", r.StatusCode, r.StdOut, r.StdErr)
}

// Session runs commands on one machine. A non-zero StatusCode is not an
// error; errors are reserved for transport failures.
type Session interface {
	RunCmd(ctx context.Context, command string, args []string) (*Response, error)
	RunPS(ctx context.Context, script string) (*Response, error)
}

// Certs is a PEM encoded client key and certificate pair
type Certs struct {
	Key  []byte
	Cert []byte
}

// LoadCerts reads the client key and certificate from dir
func LoadCerts(dir string) (Certs, error) {
	key, err := os.ReadFile(filepath.Join(dir, KeyFile))
	if err != nil {
		return Certs{}, fmt.Errorf("failed to read WinRM client key: %w", err)
	}
	cert, err := os.ReadFile(filepath.Join(dir, CertFile))
	if err != nil {
		return Certs{}, fmt.Errorf("failed to read WinRM client certificate: %w", err)
	}
	return Certs{Key: key, Cert: cert}, nil
}

// SessionFactory opens a session to address
type SessionFactory func(address string, certs Certs) (Session, error)

// Options tune the SSL sessions made by NewSSLSessionFactory
type Options struct {
	Port     int
	Insecure bool
	Timeout  time.Duration
}

// NewSSLSessionFactory returns a factory for HTTPS sessions authenticated
// with the client certificate
func NewSSLSessionFactory(opts Options) SessionFactory {
	return func(address string, certs Certs) (Session, error) {
		return NewSSLSession(address, certs, opts)
	}
}

type sslSession struct {
	client *winrm.Client
}

// NewSSLSession connects to the WinRM HTTPS listener of address
func NewSSLSession(address string, certs Certs, opts Options) (Session, error) {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	endpoint := winrm.NewEndpoint(address, opts.Port, true, opts.Insecure, nil, certs.Cert, certs.Key, opts.Timeout)

	params := *winrm.DefaultParameters
	params.TransportDecorator = func() winrm.Transporter {
		return &winrm.ClientAuthRequest{}
	}
	client, err := winrm.NewClientWithParameters(endpoint, "", "", &params)
	if err != nil {
		return nil, fmt.Errorf("failed to create WinRM session for %s: %w", address, err)
	}
	return &sslSession{client: client}, nil
}

func (s *sslSession) run(ctx context.Context, command string) (*Response, error) {
	stdout, stderr, code, err := s.client.RunWithContextWithString(ctx, command, "")
	if err != nil {
		return nil, fmt.Errorf("failed to run %q over WinRM: %w", command, err)
	}
	return &Response{StatusCode: code, StdOut: []byte(stdout), StdErr: []byte(stderr)}, nil
}

// RunCmd runs command with args appended verbatim, so args must already be
// escaped for the Windows command line
func (s *sslSession) RunCmd(ctx context.Context, command string, args []string) (*Response, error) {
	return s.run(ctx, strings.Join(append([]string{command}, args...), " "))
}

func (s *sslSession) RunPS(ctx context.Context, script string) (*Response, error) {
	return s.run(ctx, winrm.Powershell(script))
}
