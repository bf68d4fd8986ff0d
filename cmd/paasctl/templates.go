package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/model"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "List and deploy multi-service templates",
	}
	cmd.AddCommand(newTemplatesListCmd(), newTemplatesDeployCmd())
	return cmd
}

func newTemplatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the template catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var templates []model.Template
			if err := c.Do(cmd.Context(), http.MethodGet, "/templates", nil, &templates); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSERVICES\tDESCRIPTION")
			for _, t := range templates {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", t.Name, len(t.Services), t.Description)
			}
			return tw.Flush()
		},
	}
}

func newTemplatesDeployCmd() *cobra.Command {
	var (
		projectID string
		file      string
	)

	cmd := &cobra.Command{
		Use:   "deploy [template-name]",
		Short: "Deploy a catalog template, or a template file with -f, into a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (len(args) == 0) {
				return fmt.Errorf("give either a template name or --file")
			}
			if len(args) == 1 {
				return submit(cmd, http.MethodPost, "/projects/"+projectID+"/templates/"+args[0], nil)
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read template file: %w", err)
			}
			var t model.Template
			if err := yaml.Unmarshal(data, &t); err != nil {
				return fmt.Errorf("parse template file: %w", err)
			}
			return submit(cmd, http.MethodPost, "/projects/"+projectID+"/template-deployments", request.TemplateDeployment{Services: t.Services})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Target project")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML template file")
	cmd.MarkFlagRequired("project")
	return cmd
}
