package main

import (
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/model"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(newProjectsCreateCmd(), newProjectsGetCmd(), newProjectsServicesCmd())
	return cmd
}

func newProjectsCreateCmd() *cobra.Command {
	var body request.CreateProject

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project on a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body.Name = args[0]
			c, err := newClient()
			if err != nil {
				return err
			}
			var p model.Project
			if err := c.Do(cmd.Context(), http.MethodPost, "/projects", body, &p); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&body.ServerID, "server", "", "Server the project deploys to")
	cmd.Flags().StringVar(&body.TenantSlug, "tenant", "", "Tenant slug (default: the server's tenant)")
	cmd.MarkFlagRequired("server")
	return cmd
}

func newProjectsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var p model.Project
			if err := c.Do(cmd.Context(), http.MethodGet, "/projects/"+args[0], nil, &p); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newProjectsServicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services <project-id>",
		Short: "List the services of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var services []model.Service
			if err := c.Do(cmd.Context(), http.MethodGet, "/projects/"+args[0]+"/services", nil, &services); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tDETAIL")
			for _, s := range services {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Type, serviceDetail(s))
			}
			return tw.Flush()
		},
	}
}

func serviceDetail(s model.Service) string {
	switch {
	case s.Database != nil:
		return s.Database.Type
	case s.Docker != nil:
		return s.Docker.Image
	case s.Provider != nil:
		return s.Provider.RepositoryURL
	}
	return ""
}
