// cmd/upsellctl/root.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "dev"

type globalOptions struct {
	server  string
	token   string
	output  string
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "upsellctl",
		Short: "Query the upsell recommendation API",
		Long: `upsellctl calls the upsell worker manager's HTTP API.

It resolves cart upsells, runs shopper simulations, lists recorded
simulations and prints the ranking metadata.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "json" && opts.output != "yaml" {
				return fmt.Errorf("unsupported output %q (json or yaml)", opts.output)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("UPSELL_API_URL", "http://localhost:8080"), "API base URL")
	flags.StringVar(&opts.token, "token", os.Getenv("UPSELL_API_TOKEN"), "Bearer token for admin commands")
	flags.StringVarP(&opts.output, "output", "o", "json", "Output format: json or yaml")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "Request timeout")

	cmd.AddCommand(newResolveCommand(opts))
	cmd.AddCommand(newSimulateCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newMetadataCommand(opts))

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// render re-encodes a JSON response body in the selected format.
func render(w io.Writer, format string, body []byte) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml":
		data, err = yaml.Marshal(doc)
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	_, err = w.Write(data)
	return err
}
