package envar

import (
	"os"
	"path/filepath"
)

const (
	OHMYREMOTE_HOME = "OHMYREMOTE_HOME"
	JUJU_DATA       = "JUJU_DATA"
	XDG_DATA_HOME   = "XDG_DATA_HOME"
)

func UserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return home
}

func OhMyRemoteHome() string {
	home := os.Getenv(OHMYREMOTE_HOME)
	if home == "" {
		return filepath.Join(UserHome(), ".ohmyremote")
	}
	return home
}

func OhMyRemoteConfigFile() string {
	return filepath.Join(OhMyRemoteHome(), "config.yaml")
}

// JujuData follows the juju client lookup: $JUJU_DATA, then
// $XDG_DATA_HOME/juju, then ~/.local/share/juju.
func JujuData() string {
	if dir := os.Getenv(JUJU_DATA); dir != "" {
		return dir
	}
	if dir := os.Getenv(XDG_DATA_HOME); dir != "" {
		return filepath.Join(dir, "juju")
	}
	return filepath.Join(UserHome(), ".local", "share", "juju")
}

// WinRMCertDir holds the client certificate pair juju generates for WinRM.
func WinRMCertDir() string {
	return filepath.Join(JujuData(), "x509")
}
