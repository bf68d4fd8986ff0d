package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/edvin/paas/internal/cli"
	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
)

func newDeploymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deployments",
		Aliases: []string{"deployment"},
		Short:   "Inspect deployments",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <deployment-id>",
		Short: "Show a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var dep model.Deployment
			if err := c.Do(cmd.Context(), http.MethodGet, "/deployments/"+args[0], nil, &dep); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dep)
		},
	})
	return cmd
}

func newLogsCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs <deployment-id>",
		Short: "Print a deployment log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if follow {
				return followLogs(cmd.Context(), c, cmd.OutOrStdout(), args[0], true)
			}

			var body struct {
				Lines []string `json:"lines"`
			}
			if err := c.Do(cmd.Context(), http.MethodGet, "/deployments/"+args[0]+"/logs", nil, &body); err != nil {
				return err
			}
			for _, line := range body.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new lines as they arrive")
	return cmd
}

// followLogs prints log lines of a deployment until a terminal status
// message shows up or the stream closes.
func followLogs(ctx context.Context, c *cli.Client, out io.Writer, deploymentID string, replay bool) error {
	return c.Follow(ctx, deploymentID, replay, func(ev events.Event) error {
		switch ev.Type {
		case events.TypeLog:
			fmt.Fprintln(out, ev.Data)
		case events.TypeMessage:
			fmt.Fprintf(out, "==> %s\n", ev.Data)
			if ev.Data == model.DeploymentSuccess || ev.Data == model.DeploymentFailed {
				return cli.ErrStopFollowing
			}
		}
		return nil
	})
}
