package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/edvin/paas/internal/cli"
	"github.com/edvin/paas/internal/config"
)

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	// ExitCodeNotFound is returned when the orchestrator answers 404.
	ExitCodeNotFound = 2
	// ExitCodeConflict is returned when the orchestrator answers 409.
	ExitCodeConflict = 3
)

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "paasctl",
	Short: "Drive the PaaS orchestrator",
	Long: `paasctl talks to the orchestrator REST API: register servers, create
projects and services, trigger deployments, inspect queues and follow
deployment logs live.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "paasctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

func getExitCode(err error) int {
	var apiErr *cli.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return ExitCodeNotFound
		case http.StatusConflict:
			return ExitCodeConflict
		}
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Orchestrator base URL (default: $API_URL, then the active profile)")

	rootCmd.AddCommand(
		newServersCmd(),
		newProjectsCmd(),
		newServicesCmd(),
		newTemplatesCmd(),
		newDeploymentsCmd(),
		newLogsCmd(),
		newQueuesCmd(),
		newProfilesCmd(),
		newVersionCmd(),
	)
}

// newClient resolves the endpoint from the flag, API_URL and the active
// profile, in that order.
func newClient() (*cli.Client, error) {
	explicit := apiURL
	if explicit == "" {
		explicit = os.Getenv("API_URL")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.APIURL = cli.ResolveAPIURL(explicit, cfg.APIURL)
	if err := cfg.Validate("paasctl"); err != nil {
		return nil, err
	}
	return cli.NewClient(cfg.APIURL), nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of paasctl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "paasctl version %s\n", rootCmd.Version)
		},
	}
}
