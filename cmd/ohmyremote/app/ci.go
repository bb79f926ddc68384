package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/monshunter/ohmyremote/pkg/jujuci"
	"github.com/monshunter/ohmyremote/pkg/log"
)

var (
	build   string
	archive bool
)

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "List and get artifacts from the CI server",
}

var ciListCmd = &cobra.Command{
	Use:   "list JOB [GLOB]",
	Short: "List artifacts for a job build",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, glob := args[0], argOr(args, 1, "*")
		artifacts, err := ciClient().ListArtifacts(cmd.Context(), job, buildOrDefault(), glob)
		if err != nil {
			return err
		}
		for _, artifact := range artifacts {
			if verbose {
				fmt.Fprintln(cmd.OutOrStdout(), artifact.Location)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), artifact.FileName)
			}
		}
		return nil
	},
}

var ciGetCmd = &cobra.Command{
	Use:   "get JOB [GLOB] [PATH]",
	Short: "Get artifacts for a job build",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, glob, path := args[0], argOr(args, 1, "*"), argOr(args, 2, ".")
		artifacts, err := ciClient().GetArtifacts(cmd.Context(), job, buildOrDefault(), glob, path, jujuci.GetOptions{
			Archive: archive,
			DryRun:  dryRun,
		})
		if err != nil {
			return err
		}
		for _, artifact := range artifacts {
			fmt.Fprintln(cmd.OutOrStdout(), artifact.FileName)
		}
		log.Debug("Done.")
		return nil
	},
}

var ciSetupWorkspaceCmd = &cobra.Command{
	Use:   "setup-workspace PATH",
	Short: "Clean the workspace and create an artifacts directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return jujuci.SetupWorkspace(args[0], dryRun)
	},
}

func init() {
	for _, c := range []*cobra.Command{ciListCmd, ciGetCmd} {
		c.Flags().StringVarP(&build, "build", "b", "", "The specific build to examine (default: config ci.build)")
	}
	ciGetCmd.Flags().BoolVarP(&archive, "archive", "a", false, "Ensure the download path exists and remove older files")

	ciCmd.AddCommand(ciListCmd)
	ciCmd.AddCommand(ciGetCmd)
	ciCmd.AddCommand(ciSetupWorkspaceCmd)
}

func ciClient() *jujuci.Client {
	return jujuci.NewClient(cfg.CI.URL, cfg.CI.RetryMax)
}

func buildOrDefault() string {
	if build != "" {
		return build
	}
	return cfg.CI.Build
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}
