// cmd/upsellctl/commands.go
package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"upsell-workers/internal/models"
)

func newResolveCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "resolve SKU...",
		Short: "Recommend upsells for a cart",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			skus := args
			if skus == nil {
				skus = []string{}
			}
			body, err := newAPIClient(opts).call(cmd.Context(), "POST", "/api/v1/upsells/resolve", map[string]interface{}{
				"skus":  skus,
				"limit": limit,
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, body)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum recommendations (0 uses the server default)")
	return cmd
}

func newSimulateCommand(opts *globalOptions) *cobra.Command {
	var (
		limit       int
		profileJSON string
		profileFile string
		profile     models.ShopperProfile
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate upsells for a shopper profile and record the result",
		Example: `  upsellctl simulate --category Shirts --budget low
  upsellctl simulate --profile '{"intent":"gift","region":"ca"}'
  upsellctl simulate --profile-file shopper.json -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(profileJSON)
			if profileFile != "" {
				data, err := os.ReadFile(profileFile)
				if err != nil {
					return fmt.Errorf("failed to read profile file: %w", err)
				}
				raw = data
			}
			if len(raw) > 0 {
				var base models.ShopperProfile
				if err := json.Unmarshal(raw, &base); err != nil {
					return fmt.Errorf("invalid profile JSON: %w", err)
				}
				base.PreferredCategories = append(base.PreferredCategories, profile.PreferredCategories...)
				if profile.Budget != "" {
					base.Budget = profile.Budget
				}
				if profile.Intent != "" {
					base.Intent = profile.Intent
				}
				profile = base
			}

			body, err := newAPIClient(opts).call(cmd.Context(), "POST", "/api/v1/upsells/simulations", map[string]interface{}{
				"profile": profile,
				"limit":   limit,
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, body)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&limit, "limit", "n", 0, "Maximum recommendations (0 uses the server default)")
	flags.StringVar(&profileJSON, "profile", "", "Shopper profile as JSON")
	flags.StringVar(&profileFile, "profile-file", "", "Read the shopper profile from a JSON file")
	flags.StringSliceVar(&profile.PreferredCategories, "category", nil, "Preferred category (repeatable)")
	flags.StringVar(&profile.Budget, "budget", "", "Budget: low, mid or high")
	flags.StringVar(&profile.Intent, "intent", "", "Shopping intent, e.g. gift")
	cmd.MarkFlagsMutuallyExclusive("profile", "profile-file")
	return cmd
}

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded simulations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/upsells/simulations"
			if limit > 0 {
				path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
			}
			body, err := newAPIClient(opts).call(cmd.Context(), "GET", path, nil)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, body)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of simulations (server caps at 100)")
	return cmd
}

func newMetadataCommand(opts *globalOptions) *cobra.Command {
	var invalidate bool

	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Print categories and site-wide top sellers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)
			if invalidate {
				if _, err := client.call(cmd.Context(), "POST", "/api/v1/upsells/metadata/invalidate", nil); err != nil {
					return err
				}
			}
			body, err := client.call(cmd.Context(), "GET", "/api/v1/upsells/metadata", nil)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, body)
		},
	}

	cmd.Flags().BoolVar(&invalidate, "invalidate", false, "Drop the cached snapshot first (admin)")
	return cmd
}
