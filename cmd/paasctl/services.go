package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edvin/paas/internal/api/request"
	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/model"
)

func newServicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"service", "svc"},
		Short:   "Manage and deploy services",
	}
	cmd.AddCommand(
		newServicesCreateCmd(),
		newServicesGetCmd(),
		newServicesDeployCmd(),
		newServicesDestroyCmd(),
		newServicesVarsCmd(),
		newServicesVolumesCmd(),
		newServicesPortsCmd(),
		newServicesBackupCmd(),
	)
	return cmd
}

func newServicesCreateCmd() *cobra.Command {
	var (
		projectID string
		file      string
		spec      model.ServiceSpec
		repo      string
		image     string
		dbType    string
	)

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a service from flags or a YAML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read service file: %w", err)
				}
				if err := yaml.Unmarshal(data, &spec); err != nil {
					return fmt.Errorf("parse service file: %w", err)
				}
			}
			if len(args) == 1 {
				spec.Name = args[0]
			}
			switch {
			case repo != "":
				spec.Provider = &model.ProviderSettings{RepositoryURL: repo}
			case image != "":
				spec.Docker = &model.DockerDetails{Image: image}
			case dbType != "":
				spec.Database = &model.DatabaseDetails{Type: dbType}
			}

			c, err := newClient()
			if err != nil {
				return err
			}
			var svc model.Service
			body := request.CreateService{ProjectID: projectID, Service: spec}
			if err := c.Do(cmd.Context(), http.MethodPost, "/services", body, &svc); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), svc)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project the service belongs to")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML service definition")
	cmd.Flags().StringVar((*string)(&spec.Type), "type", "", "Service type: app, docker or database")
	cmd.Flags().StringVar(&repo, "repo", "", "Git repository for an app service")
	cmd.Flags().StringVar(&image, "image", "", "Image for a docker service")
	cmd.Flags().StringVar(&dbType, "db-type", "", "Engine for a database service")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newServicesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <service-id>",
		Short: "Show a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var svc model.Service
			if err := c.Do(cmd.Context(), http.MethodGet, "/services/"+args[0], nil, &svc); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), svc)
		},
	}
}

func newServicesDeployCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "deploy <service-id>",
		Short: "Deploy a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var sub core.Submitted
			if err := c.Do(cmd.Context(), http.MethodPost, "/services/"+args[0]+"/deployments", nil, &sub); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", sub.JobID, sub.Queue)
			if !follow || sub.DeploymentID == "" {
				if sub.DeploymentID != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "deployment %s\n", sub.DeploymentID)
				}
				return nil
			}
			return followLogs(cmd.Context(), c, cmd.OutOrStdout(), sub.DeploymentID, true)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream the deployment log")
	return cmd
}

func newServicesDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <service-id>",
		Short: "Destroy a service and its host resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, http.MethodDelete, "/services/"+args[0], nil)
		},
	}
}

func newServicesVarsCmd() *cobra.Command {
	var restart bool

	cmd := &cobra.Command{
		Use:   "vars <service-id> KEY=VALUE...",
		Short: "Replace the environment variables of an app",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVariables(args[1:])
			if err != nil {
				return err
			}
			return submit(cmd, http.MethodPut, "/services/"+args[0]+"/variables", request.Variables{Variables: vars, Restart: restart})
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", true, "Restart the app after the update")
	return cmd
}

func newServicesVolumesCmd() *cobra.Command {
	var restart bool

	cmd := &cobra.Command{
		Use:   "volumes <service-id> HOST:CONTAINER...",
		Short: "Replace the volume mounts of an app",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var vols []request.Volume
			for _, arg := range args[1:] {
				host, container, ok := strings.Cut(arg, ":")
				if !ok {
					return fmt.Errorf("volume %q must be HOST:CONTAINER", arg)
				}
				vols = append(vols, request.Volume{HostPath: host, ContainerPath: container})
			}
			return submit(cmd, http.MethodPut, "/services/"+args[0]+"/volumes", request.Volumes{Volumes: vols, Restart: restart})
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", true, "Restart the app after the update")
	return cmd
}

func newServicesPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports <service-id> PORT...",
		Short: "Expose database ports on the host",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, http.MethodPut, "/services/"+args[0]+"/ports", request.Ports{Ports: args[1:]})
		},
	}
}

func newServicesBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <service-id>",
		Short: "Back up a database service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, http.MethodPost, "/services/"+args[0]+"/backups", nil)
		},
	}
}

func parseVariables(args []string) ([]request.Variable, error) {
	vars := make([]request.Variable, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("variable %q must be KEY=VALUE", arg)
		}
		vars = append(vars, request.Variable{Key: key, Value: value})
	}
	return vars, nil
}
