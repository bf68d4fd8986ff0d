package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edvin/paas/internal/cli"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage saved orchestrator endpoints",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := cli.ListProfiles()
			if err != nil {
				return err
			}
			active, _ := cli.GetActive()
			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				fmt.Fprintln(out, "No profiles. Add one with: paasctl profiles add <name> <api-url>")
				return nil
			}
			for _, p := range profiles {
				marker := "  "
				if p.Name == active {
					marker = "* "
				}
				fmt.Fprintf(out, "%s%s\t%s\n", marker, p.Name, p.APIURL)
			}
			return nil
		},
	})

	var setActive bool
	add := &cobra.Command{
		Use:   "add <name> <api-url>",
		Short: "Save an orchestrator endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cli.SaveProfile(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %q", p.Name)
			if setActive {
				if err := cli.SetActive(p.Name); err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), " (active)")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	add.Flags().BoolVar(&setActive, "set-active", true, "Make this the active profile")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "use <name>",
		Short: "Switch the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.SetActive(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active profile: %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DeleteProfile(args[0])
		},
	})
	return cmd
}
