package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/monshunter/ohmyremote/pkg/envar"
	"github.com/monshunter/ohmyremote/pkg/juju"
	"github.com/monshunter/ohmyremote/pkg/jujuci"
	"github.com/monshunter/ohmyremote/pkg/remote"
	"github.com/monshunter/ohmyremote/pkg/winrm"
)

// EnvPrefix prefixes the environment variables overriding the config file,
// e.g. OHMYREMOTE_SSH_TIMEOUT or OHMYREMOTE_CI_RETRY_MAX
const EnvPrefix = "OHMYREMOTE"

// Config is the content of the ohmyremote config file
type Config struct {
	CI    CIConfig    `yaml:"ci"`
	SSH   SSHConfig   `yaml:"ssh"`
	WinRM WinRMConfig `yaml:"winrm"`
	Juju  JujuConfig  `yaml:"juju"`
}

type CIConfig struct {
	URL      string `yaml:"url"`
	RetryMax int    `yaml:"retryMax" split_words:"true"`
	Build    string `yaml:"build"`
}

type SSHConfig struct {
	User    string        `yaml:"user"`
	Timeout time.Duration `yaml:"timeout"`
	// Native uses the built in SSH client instead of the ssh binary
	Native  bool   `yaml:"native"`
	KeyFile string `yaml:"keyFile,omitempty" split_words:"true"`
}

type WinRMConfig struct {
	// CertDir defaults to the x509 directory of the juju data dir
	CertDir  string `yaml:"certDir,omitempty" split_words:"true"`
	Port     int    `yaml:"port"`
	Insecure bool   `yaml:"insecure"`
}

type JujuConfig struct {
	Binary string `yaml:"binary"`
	Model  string `yaml:"model,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		CI: CIConfig{
			URL:      jujuci.DefaultURL,
			RetryMax: jujuci.DefaultRetryMax,
			Build:    jujuci.DefaultBuild,
		},
		SSH: SSHConfig{
			User:    "ubuntu",
			Timeout: remote.DefaultTimeout,
		},
		WinRM: WinRMConfig{
			Port: winrm.DefaultPort,
		},
		Juju: JujuConfig{
			Binary: juju.DefaultBinary,
		},
	}
}

// Load reads the config file at path, or the default location when path is
// empty. Settings missing from the file keep their defaults and a missing
// file yields the defaults. OHMYREMOTE_* environment variables override
// both.
func Load(path string) (*Config, error) {
	if path == "" {
		path = envar.OhMyRemoteConfigFile()
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory
func (c *Config) Save(path string) error {
	if path == "" {
		path = envar.OhMyRemoteConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save config to %s: %w", path, err)
	}
	return nil
}

// CertDir returns the directory holding the WinRM client certificates
func (c *Config) CertDir() string {
	if c.WinRM.CertDir != "" {
		return c.WinRM.CertDir
	}
	return envar.WinRMCertDir()
}
