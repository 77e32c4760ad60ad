package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

func sourceCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "source",
		Short: "Manage the remembered pull source and push target",
	}

	c.AddCommand(sourceSetCmd(), sourceShowCmd(), sourceClearCmd())
	return c
}

type endpointFlags struct {
	url       string
	projectID int
	path      string
	username  string
	token     string
}

func sourceSetCmd() *cobra.Command {
	var f endpointFlags

	cmd := &cobra.Command{
		Use:   "set <pull|push> <aggregate|central|collect_dir|form_file>",
		Short: "Remember an endpoint (password from " + envPassword + ")",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(args[0])
			if err != nil {
				return err
			}
			e, err := buildEndpoint(domain.EndpointType(args[1]), f, os.Getenv(envPassword))
			if err != nil {
				return err
			}
			if role == ports.RolePushTarget && !domain.CanPush(e) {
				return fmt.Errorf("%s cannot be a push target", e.Describe())
			}

			store := endpointStore()
			if err := store.Save(role, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s\n", roleLabel(role), e.Describe())
			return nil
		},
	}

	cmd.Flags().StringVar(&f.url, "url", "", "Server URL (aggregate, central)")
	cmd.Flags().IntVar(&f.projectID, "project", 0, "Central project id")
	cmd.Flags().StringVar(&f.path, "path", "", "Collect directory or form file (collect_dir, form_file)")
	cmd.Flags().StringVar(&f.username, "username", "", "Account username, or email for Central (default $"+envUsername+")")
	cmd.Flags().StringVar(&f.token, "token", "", "Central session token to reuse instead of logging in")
	return cmd
}

func sourceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the remembered endpoints (no secrets)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showEndpoints(cmd.OutOrStdout(), endpointStore())
		},
	}
}

func sourceClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <pull|push>",
		Short: "Forget an endpoint and its credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRole(args[0])
			if err != nil {
				return err
			}
			if err := endpointStore().Clear(role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", roleLabel(role))
			return nil
		},
	}
}

func showEndpoints(w io.Writer, store ports.EndpointStore) error {
	for _, role := range []ports.EndpointRole{ports.RolePullSource, ports.RolePushTarget} {
		e, ok, err := store.Load(role)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(w, "%-12s (not set)\n", roleLabel(role)+":")
			continue
		}
		fmt.Fprintf(w, "%-12s %s%s\n", roleLabel(role)+":", e.Describe(), accountOf(e))
	}
	return nil
}

func accountOf(e domain.Endpoint) string {
	switch v := e.(type) {
	case domain.AggregateServer:
		if v.Credentials != nil && v.Credentials.Username != "" {
			return " as " + v.Credentials.Username
		}
	case domain.CentralServer:
		if v.Credentials.Username != "" {
			return " as " + v.Credentials.Username
		}
	}
	return ""
}

func buildEndpoint(t domain.EndpointType, f endpointFlags, password string) (domain.Endpoint, error) {
	username := strings.TrimSpace(f.username)
	if username == "" {
		username = strings.TrimSpace(os.Getenv(envUsername))
	}

	switch t {
	case domain.EndpointAggregate:
		if f.url == "" {
			return nil, fmt.Errorf("--url is required for %s", t)
		}
		a := domain.AggregateServer{URL: strings.TrimRight(f.url, "/")}
		if username != "" {
			a.Credentials = &domain.Credentials{Username: username, Password: password}
		}
		return a, nil
	case domain.EndpointCentral:
		if f.url == "" || f.projectID <= 0 {
			return nil, fmt.Errorf("--url and --project are required for %s", t)
		}
		return domain.CentralServer{
			URL:         strings.TrimRight(f.url, "/"),
			ProjectID:   f.projectID,
			Credentials: domain.Credentials{Username: username, Password: password},
			Token:       f.token,
		}, nil
	case domain.EndpointCollectDir:
		if f.path == "" {
			return nil, fmt.Errorf("--path is required for %s", t)
		}
		return domain.CollectDirectory{Path: f.path}, nil
	case domain.EndpointFormFile:
		if f.path == "" {
			return nil, fmt.Errorf("--path is required for %s", t)
		}
		return domain.FormFile{Path: f.path}, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected one of %s)", domain.ErrUnknownEndpointType, t, endpointTypeList())
	}
}

func endpointTypeList() string {
	names := make([]string, 0, len(domain.EndpointTypes))
	for _, t := range domain.EndpointTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func parseRole(s string) (ports.EndpointRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pull", "source":
		return ports.RolePullSource, nil
	case "push", "target":
		return ports.RolePushTarget, nil
	default:
		return "", fmt.Errorf("unknown role %q (expected pull|push)", s)
	}
}

func roleArg(role ports.EndpointRole) string {
	if role == ports.RolePushTarget {
		return "push"
	}
	return "pull"
}

func roleLabel(role ports.EndpointRole) string {
	if role == ports.RolePushTarget {
		return "Push target"
	}
	return "Pull source"
}
