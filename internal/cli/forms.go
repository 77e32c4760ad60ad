package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

func formsCmd(flags *rootFlags) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "forms",
		Short: "List forms in the workspace, or offered by the pull source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := loadWorkspace(flags.workspace)
			if err != nil {
				return err
			}
			tr := ws.transfer()

			if !remote {
				forms, err := tr.LocalForms()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workspace: %s\n\n", ws.root)
				printForms(cmd.OutOrStdout(), forms, true)
				return nil
			}

			source, err := rememberedEndpoint(endpointStore(), ports.RolePullSource)
			if err != nil {
				return err
			}
			forms, err := tr.ListForms(cmd.Context(), source)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", source.Describe())
			printForms(cmd.OutOrStdout(), forms, false)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "List the forms offered by the remembered pull source")
	return cmd
}

func printForms(w io.Writer, forms []domain.FormMetadata, local bool) {
	if len(forms) == 0 {
		fmt.Fprintln(w, "(no forms found)")
		return
	}
	for _, f := range forms {
		fmt.Fprintf(w, "- %s  (%s)\n", f.DisplayName(), f.Key)
		if !local {
			continue
		}
		if !f.LastPulledAt.IsZero() {
			fmt.Fprintf(w, "    last pulled: %s", f.LastPulledAt.Format("2006-01-02 15:04"))
			if f.PullSource != nil {
				fmt.Fprintf(w, " from %s", f.PullSource.Describe())
			}
			fmt.Fprintln(w)
		}
		if !f.LastPushedAt.IsZero() {
			fmt.Fprintf(w, "    last pushed: %s\n", f.LastPushedAt.Format("2006-01-02 15:04"))
		}
	}
}
