package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/getodk/briefcase-sub006/internal/buildinfo"
	"github.com/getodk/briefcase-sub006/internal/infra/logger"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	debug     bool
	workspace string
}

func newRootCmd() *cobra.Command {
	var (
		flags   rootFlags
		cleanup func() error
	)

	cmd := &cobra.Command{
		Use:          "briefcase",
		Short:        "Briefcase: pull and push ODK forms and submissions",
		Version:      buildinfo.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			wd, err := os.Getwd()
			if err != nil {
				wd = "."
			}
			wd, _ = filepath.Abs(wd)

			logRoot := wd
			if root, rerr := resolveWorkspaceRoot(flags.workspace); rerr == nil && root != "" {
				logRoot = root
			}

			cleanup, _ = logger.Setup(logger.Config{
				Root:  logRoot,
				Debug: flags.debug,
			})
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if cleanup != nil {
				return cleanup()
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable verbose logging to .briefcase/logs/briefcase.log")
	cmd.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace root (optional; autodetected if omitted)")

	cmd.AddCommand(
		initCmd(),
		sourceCmd(),
		formsCmd(&flags),
		pullCmd(&flags),
		pushCmd(&flags),
	)
	return cmd
}
