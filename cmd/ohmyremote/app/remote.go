package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monshunter/ohmyremote/pkg/copystream"
	"github.com/monshunter/ohmyremote/pkg/juju"
	"github.com/monshunter/ohmyremote/pkg/log"
	"github.com/monshunter/ohmyremote/pkg/remote"
	"github.com/monshunter/ohmyremote/pkg/ssh"
	"github.com/monshunter/ohmyremote/pkg/winrm"
)

var (
	address string
	model   string
	unit    string
	series  string
)

var (
	_ remote.Client       = (*juju.Client)(nil)
	_ remote.DirectRunner = (*ssh.Executor)(nil)
	_ remote.DirectCopier = (*ssh.Executor)(nil)
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Run commands on and copy files from a machine",
}

var remoteRunCmd = &cobra.Command{
	Use:   "run COMMAND [ARG...]",
	Short: "Run a command on the machine",
	Long: `Run a command on the machine. On Linux the arguments are joined into one
shell command. On Windows they are escaped for the Windows command line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRemote(cmd.Context())
		if err != nil {
			return err
		}
		switch r := r.(type) {
		case *remote.SSHRemote:
			out, err := r.Run(cmd.Context(), strings.Join(args, " "))
			cmd.OutOrStdout().Write(out)
			return err
		case *remote.WinRMRemote:
			resp, err := r.RunCmd(cmd.Context(), args)
			if err != nil {
				return err
			}
			cmd.OutOrStdout().Write(resp.StdOut)
			cmd.ErrOrStderr().Write(resp.StdErr)
			if resp.StatusCode != 0 {
				return fmt.Errorf("command exited with status %d", resp.StatusCode)
			}
			return nil
		}
		return fmt.Errorf("unsupported remote %s", r)
	},
}

var remoteCatCmd = &cobra.Command{
	Use:   "cat FILE",
	Short: "Print the content of a file on the machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRemote(cmd.Context())
		if err != nil {
			return err
		}
		out, err := r.Cat(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var remoteCopyCmd = &cobra.Command{
	Use:   "copy DEST GLOB...",
	Short: "Copy files matching globs from the machine into DEST",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRemote(cmd.Context())
		if err != nil {
			return err
		}
		log.Infof("Copying %s from %s to %s", strings.Join(args[1:], " "), r, args[0])
		if r.IsWindows() {
			onShutdown(func() error { return copystream.RemovePartials(args[0]) })
		}
		return r.Copy(cmd.Context(), args[0], args[1:])
	},
}

var remoteAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRemote(cmd.Context())
		if err != nil {
			return err
		}
		addr, err := r.Address(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addr)
		return nil
	},
}

func init() {
	flags := remoteCmd.PersistentFlags()
	flags.StringVar(&address, "address", "", "Address of the machine")
	flags.StringVarP(&model, "model", "m", "", "Model of the unit (default: config juju.model)")
	flags.StringVar(&unit, "unit", "", "Unit whose machine to use, e.g. dummy-sink/0")
	flags.StringVar(&series, "series", "", "Series of the machine, looked up from status when empty")

	remoteCmd.AddCommand(remoteRunCmd)
	remoteCmd.AddCommand(remoteCatCmd)
	remoteCmd.AddCommand(remoteCopyCmd)
	remoteCmd.AddCommand(remoteAddressCmd)
}

func remoteConfig() (remote.Config, error) {
	rcfg := remote.Config{
		Timeout:      cfg.SSH.Timeout,
		User:         cfg.SSH.User,
		WinRMCertDir: cfg.CertDir(),
		WinRMSessions: winrm.NewSSLSessionFactory(winrm.Options{
			Port:     cfg.WinRM.Port,
			Insecure: cfg.WinRM.Insecure,
		}),
	}
	if cfg.SSH.Native {
		executor, err := ssh.NewExecutor(cfg.SSH.User, cfg.SSH.KeyFile)
		if err != nil {
			return rcfg, err
		}
		rcfg.Direct = executor
	}
	return rcfg, nil
}

func newRemote(ctx context.Context) (remote.Remote, error) {
	rcfg, err := remoteConfig()
	if err != nil {
		return nil, err
	}
	if address != "" {
		return remote.FromAddress(ctx, address, series, rcfg)
	}
	if unit == "" {
		return nil, fmt.Errorf("%w: either --address or --unit is required", remote.ErrInvalidTarget)
	}
	if model == "" {
		model = cfg.Juju.Model
	}
	client := juju.NewClient(cfg.Juju.Binary, model, nil)
	if err := client.CheckInstalled(); err != nil {
		return nil, err
	}
	return remote.FromUnit(ctx, client, unit, series, nil, rcfg)
}
