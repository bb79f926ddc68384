package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/monshunter/ohmyremote/pkg/copystream"
	"github.com/monshunter/ohmyremote/pkg/log"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Encode and decode multi-file copy streams",
}

var streamEncodeCmd = &cobra.Command{
	Use:   "encode GLOB...",
	Short: "Write files matching globs to stdout as a copy stream",
	Long: `Write files matching globs to stdout as a copy stream. $VARS in the globs
are expanded. Files that cannot be read are sent as .copyerror records.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return copystream.Gather(cmd.OutOrStdout(), args)
	},
}

var streamDecodeCmd = &cobra.Command{
	Use:   "decode DEST",
	Short: "Read a copy stream from stdin and write its files into DEST",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := args[0]
		if err := os.MkdirAll(dest, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dest, err)
		}
		onShutdown(func() error { return copystream.RemovePartials(dest) })
		written, err := copystream.DecodeToDir(dest, cmd.InOrStdin())
		for _, name := range written {
			if copystream.IsErrorRecord(name) {
				log.Warnf("Remote failed to read %s", name)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		}
		return err
	},
}

var streamScriptCmd = &cobra.Command{
	Use:   "script GLOB...",
	Short: "Print the PowerShell script that encodes files matching globs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), copystream.PowerShellScript(args))
		return err
	},
}

func init() {
	streamCmd.AddCommand(streamEncodeCmd)
	streamCmd.AddCommand(streamDecodeCmd)
	streamCmd.AddCommand(streamScriptCmd)
}
