package main

import (
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/remote"
)

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servers",
		Aliases: []string{"server"},
		Short:   "Manage deployment target servers",
	}
	cmd.AddCommand(newServersListCmd(), newServersAddCmd(), newServersGetCmd(), newServersSyncPluginsCmd(), newServersCreateDatabaseCmd())
	return cmd
}

func newServersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var servers []model.Server
			if err := c.Do(cmd.Context(), http.MethodGet, "/servers", nil, &servers); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tHOST\tTENANT\tPLUGINS")
			for _, s := range servers {
				fmt.Fprintf(tw, "%s\t%s\t%s:%d\t%s\t%d\n", s.ID, s.Name, s.Host, s.Port, s.TenantSlug, len(s.Plugins))
			}
			return tw.Flush()
		},
	}
}

func newServersAddCmd() *cobra.Command {
	var body request.CreateServer
	var keyFile string

	cmd := &cobra.Command{
		Use:   "add <host>",
		Short: "Register a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body.Host = args[0]
			if keyFile != "" {
				key, err := remote.LoadKeyFile(keyFile)
				if err != nil {
					return err
				}
				body.PrivateKey = string(key)
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			var srv model.Server
			if err := c.Do(cmd.Context(), http.MethodPost, "/servers", body, &srv); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), srv)
		},
	}
	cmd.Flags().StringVar(&body.Name, "name", "", "Display name")
	cmd.Flags().IntVar(&body.Port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&body.Username, "user", "root", "SSH user")
	cmd.Flags().StringVar(&body.TenantSlug, "tenant", "", "Tenant slug owning the server")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Private key for this server (default: the orchestrator key)")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newServersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <server-id>",
		Short: "Show a server and its installed plugins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var srv model.Server
			if err := c.Do(cmd.Context(), http.MethodGet, "/servers/"+args[0], nil, &srv); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), srv)
		},
	}
}

func newServersSyncPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-plugins <server-id>",
		Short: "Reconcile the datastore plugins installed on a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, http.MethodPost, "/servers/"+args[0]+"/plugins/sync", nil)
		},
	}
}

func newServersCreateDatabaseCmd() *cobra.Command {
	var body request.CreateDatabase

	cmd := &cobra.Command{
		Use:   "create-database <server-id> <name>",
		Short: "Create a database, installing its plugin first if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body.Name = args[1]
			return submit(cmd, http.MethodPost, "/servers/"+args[0]+"/databases", body)
		},
	}
	cmd.Flags().StringVar(&body.Type, "type", "postgres", "Database type")
	cmd.Flags().StringVar(&body.ProjectID, "project", "", "Project the database belongs to")
	cmd.Flags().StringVar(&body.ServiceID, "service", "", "Service record to update with the connection info")
	return cmd
}

// submit sends a job-queueing request and prints the accepted job.
func submit(cmd *cobra.Command, method, path string, body any) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	var sub core.Submitted
	if err := c.Do(cmd.Context(), method, path, body, &sub); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "queued %s on %s\n", sub.JobID, sub.Queue)
	if sub.DeploymentID != "" {
		fmt.Fprintf(out, "deployment %s (follow with: paasctl logs -f %s)\n", sub.DeploymentID, sub.DeploymentID)
	}
	return nil
}
