package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"orglogo-scraper/filter"
	"orglogo-scraper/logo"
	"orglogo-scraper/models"
)

type enrichFlags struct {
	in  string
	out string
}

var enrichOpts enrichFlags

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill organization_logo in an opportunities JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opportunities, err := readOpportunities(enrichOpts.in)
		if err != nil {
			return err
		}

		resolver, cleanup, err := newResolver(cfg.Resolver)
		if err != nil {
			return err
		}
		defer cleanup()

		updated := enrichOpportunities(ctx, resolver, filter.NewFilter(&cfg.Filter), opportunities, cfg.Resolver.Workers)
		log.Info().Int("updated", updated).Int("total", len(opportunities)).Msg("opportunities enriched")

		out := enrichOpts.out
		if out == "" {
			out = enrichOpts.in
		}
		if err := writeOpportunities(out, opportunities); err != nil {
			return err
		}
		return ctx.Err()
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichOpts.in, "in", "", "opportunities JSON file")
	enrichCmd.Flags().StringVar(&enrichOpts.out, "out", "", "output file (default overwrites --in)")
	_ = enrichCmd.MarkFlagRequired("in")
}

func readOpportunities(path string) ([]models.Opportunity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read opportunities: %w", err)
	}
	var opportunities []models.Opportunity
	if err := json.Unmarshal(data, &opportunities); err != nil {
		return nil, fmt.Errorf("failed to parse opportunities: %w", err)
	}
	return opportunities, nil
}

func writeOpportunities(path string, opportunities []models.Opportunity) error {
	data, err := json.MarshalIndent(opportunities, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode opportunities: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write opportunities: %w", err)
	}
	return nil
}

// enrichOpportunities resolves each distinct website once and copies the
// logo to every opportunity that names it. Returns the number of
// opportunities that received a logo.
func enrichOpportunities(ctx context.Context, r *logo.Resolver, f *filter.Filter, opportunities []models.Opportunity, workers int) int {
	seen := make(map[string]bool)
	var websites []string
	for _, o := range opportunities {
		if !o.NeedsLogo() || seen[o.OrganizationWebsite] {
			continue
		}
		seen[o.OrganizationWebsite] = true
		if !f.IsOrganizationWebsite(o.OrganizationWebsite) {
			log.Debug().Str("website", o.OrganizationWebsite).Msg("skipping non-organization website")
			continue
		}
		websites = append(websites, o.OrganizationWebsite)
	}
	if len(websites) == 0 {
		return 0
	}

	logos := make(map[string]string, len(websites))
	for _, res := range logo.ResolveAll(ctx, r, websites, workers) {
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("website", res.Website).Msg("resolution failed")
			continue
		}
		if res.Logo != nil {
			logos[res.Website] = res.Logo.URL
		}
	}

	updated := 0
	for i := range opportunities {
		if !opportunities[i].NeedsLogo() {
			continue
		}
		if u, ok := logos[opportunities[i].OrganizationWebsite]; ok {
			opportunities[i].OrganizationLogo = u
			updated++
		}
	}
	return updated
}
