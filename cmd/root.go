package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kustii/board/config"
	"github.com/kustii/board/utils"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string

	cfg config.AppConfig
}

// NewRootCommand creates the board command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "board",
		Short:         "Multi-board content server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg = config.LoadFrom(opts.ConfigPath)
			return utils.InitLogger(opts.cfg)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "path to the JSON config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewRepairCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand())

	return cmd
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
