package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newQueuesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queues",
		Aliases: []string{"queue"},
		Short:   "Inspect and flush per-server job queues",
	}
	cmd.AddCommand(newQueuesListCmd(), newQueuesStatsCmd(), newQueuesFlushCmd(), newQueuesJobCmd())
	return cmd
}

func newQueuesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <server-id>",
		Short: "List the queues of a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var names []string
			if err := c.Do(cmd.Context(), http.MethodGet, "/servers/"+args[0]+"/queues", nil, &names); err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

type queueStats struct {
	Name   string `json:"name"`
	Counts struct {
		Waiting   int `json:"waiting"`
		Active    int `json:"active"`
		Completed int `json:"completed"`
		Failed    int `json:"failed"`
	} `json:"counts"`
}

func newQueuesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <server-id>",
		Short: "Show job counts per queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			var stats []queueStats
			if err := c.Do(cmd.Context(), http.MethodGet, "/servers/"+args[0]+"/queues/stats", nil, &stats); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUEUE\tWAITING\tACTIVE\tCOMPLETED\tFAILED")
			for _, s := range stats {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", s.Name, s.Counts.Waiting, s.Counts.Active, s.Counts.Completed, s.Counts.Failed)
			}
			return tw.Flush()
		},
	}
}

func newQueuesFlushCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "flush <queue>",
		Short: "Drop every job of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			path := "/queues/" + args[0]
			if force {
				path += "?force=true"
			}
			if err := c.Do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "flushed %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Flush even while jobs are active")
	return cmd
}

func newQueuesJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <queue> <job-id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			// The payload type depends on the job kind, keep it raw.
			var job map[string]json.RawMessage
			if err := c.Do(cmd.Context(), http.MethodGet, "/queues/"+args[0]+"/jobs/"+args[1], nil, &job); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}
