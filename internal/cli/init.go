package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/getodk/briefcase-sub006/internal/infra/fsworkspace"
	"github.com/getodk/briefcase-sub006/internal/usecase"
)

func initCmd() *cobra.Command {
	var path string
	var storageDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a Briefcase workspace (briefcase.yaml and storage directory)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := path
			if root == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("get working directory: %w", err)
				}
				root = wd
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("invalid workspace path: %w", err)
			}

			uc := usecase.NewInitWorkspace(fsworkspace.NewInitializer(fsworkspace.WithStorageDir(storageDir)))
			if err := uc.Execute(root, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workspace ready at %s\n", root)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Workspace root (default: current directory)")
	cmd.Flags().StringVar(&storageDir, "storage-dir", "", "Storage directory name inside the workspace")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing briefcase.yaml")
	return cmd
}
