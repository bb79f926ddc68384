package main

import (
	"github.com/monshunter/ohmyremote/cmd/ohmyremote/app"
	"github.com/monshunter/ohmyremote/pkg/log"
)

// Version information set by build-time LDFLAGS
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	app.SetVersionInfo(Version, BuildTime, GoVersion)

	if err := app.Run(); err != nil {
		log.Fatalf("Error: %s", err)
	}
}
