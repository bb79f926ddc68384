package app

import (
	"github.com/spf13/cobra"

	"github.com/monshunter/ohmyremote/pkg/config"
	"github.com/monshunter/ohmyremote/pkg/log"
)

var (
	verbose    bool
	quiet      bool
	dryRun     bool
	configFile string

	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "ohmyremote",
	Short: "OhMyRemote - Fetch logs and run commands on test machines",
	Long: `OhMyRemote reaches the machines of a juju model over SSH or WinRM to run
commands and copy files back, and fetches build artifacts from the CI server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetVerbose(true)
		}
		if quiet {
			log.SetQuiet(true)
		}

		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Enable quiet mode (minimal output)")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "d", false, "Do not make changes")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $OHMYREMOTE_HOME/config.yaml)")

	rootCmd.AddCommand(ciCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(versionCmd)
}

// Run adds all child commands to the root command and sets flags, this is the entry point called by main.go
func Run() error {
	handler := NewGracefulShutdownHandler()
	defer handler.Close()
	shutdown = handler
	return rootCmd.ExecuteContext(handler.Context())
}
