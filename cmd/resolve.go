package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"orglogo-scraper/config"
	"orglogo-scraper/db"
	"orglogo-scraper/filter"
	"orglogo-scraper/logo"
	"orglogo-scraper/models"
	"orglogo-scraper/sheets"
)

type resolveFlags struct {
	input    string
	sheet    bool
	newSheet bool
	save     bool
}

var resolveOpts resolveFlags

var resolveCmd = &cobra.Command{
	Use:   "resolve [website...]",
	Short: "Resolve the logo of one or more organization websites",
	Long: "Resolve the logo of organization websites given as arguments, in a file (--input) " +
		"or on stdin, one per line. One JSON object is printed per website.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		websites := args
		if len(websites) == 0 {
			websites, err = readWebsites(resolveOpts.input)
			if err != nil {
				return err
			}
		}
		return runResolve(ctx, cfg, websites, cmd.OutOrStdout())
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveOpts.input, "input", "i", "", "file with one website per line (default stdin)")
	resolveCmd.Flags().BoolVar(&resolveOpts.sheet, "sheet", false, "append found logos to the configured Google Sheet")
	resolveCmd.Flags().BoolVar(&resolveOpts.newSheet, "new-sheet", false, "with --sheet, write to a new timestamped sheet instead of appending")
	resolveCmd.Flags().BoolVar(&resolveOpts.save, "save", false, "store results in Postgres")
}

// readWebsites reads one website per line from path, or stdin when path is empty
func readWebsites(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var websites []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		websites = append(websites, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return websites, nil
}

func runResolve(ctx context.Context, cfg *config.Config, websites []string, out io.Writer) error {
	f := filter.NewFilter(&cfg.Filter)
	accepted := f.ApplyFilters(websites)
	if skipped := len(websites) - len(accepted); skipped > 0 {
		log.Info().Int("skipped", skipped).Msg("websites rejected by filter")
	}
	if len(accepted) == 0 {
		return fmt.Errorf("no organization websites to resolve")
	}

	resolver, cleanup, err := newResolver(cfg.Resolver)
	if err != nil {
		return err
	}
	defer cleanup()

	var database *db.DB
	if resolveOpts.save {
		database, err = db.NewDB(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer database.Close()
	}

	log.Info().Int("websites", len(accepted)).Int("workers", cfg.Resolver.Workers).Msg("resolving logos")
	results := logo.ResolveAll(ctx, resolver, accepted, cfg.Resolver.Workers)

	orgs := make([]models.Organization, 0, len(results))
	enc := json.NewEncoder(out)
	found := 0
	for _, res := range results {
		org := organizationFromResult(res)
		if org.HasLogo() {
			found++
		}
		if err := enc.Encode(org); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		if database != nil && org.Error == "" {
			if err := database.SaveOrganization(org); err != nil {
				log.Warn().Err(err).Str("website", org.Website).Msg("failed to save organization")
			}
		}
		orgs = append(orgs, org)
	}
	log.Info().Int("found", found).Int("total", len(results)).Msg("resolution finished")

	if resolveOpts.sheet {
		writeSheet(ctx, cfg.Sheets, orgs, resolveOpts.newSheet)
	}
	return ctx.Err()
}

func organizationFromResult(res logo.Result) models.Organization {
	org := models.Organization{
		Website:    res.Website,
		ResolvedAt: time.Now().UTC(),
	}
	if res.Err != nil {
		org.Error = res.Err.Error()
	}
	if res.Logo != nil {
		org.Logo = res.Logo.URL
		org.Confidence = res.Logo.Confidence
		org.Strategy = res.Logo.Strategy
	}
	return org
}

// writeSheet exports organizations with a logo to Google Sheets, appending
// to the configured sheet or creating a new one. Failures are logged, the
// results were already printed.
func writeSheet(ctx context.Context, cfg config.SheetsConfig, orgs []models.Organization, newSheet bool) {
	var withLogo []models.Organization
	for _, org := range orgs {
		if org.HasLogo() {
			withLogo = append(withLogo, org)
		}
	}
	if len(withLogo) == 0 {
		return
	}

	writer, err := newSheetWriter(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize Google Sheets writer")
		return
	}

	if newSheet {
		name := fmt.Sprintf("CLI_%s", time.Now().Format("20060102_150405"))
		_, gid, err := writer.CreateSheetAndWriteOrganizations(ctx, name, withLogo)
		if err != nil {
			log.Warn().Err(err).Msg("failed to write to Google Sheets")
			return
		}
		log.Info().Str("url", sheets.SheetURL(writer.SpreadsheetID(), gid)).Msg("wrote organizations to new sheet")
		return
	}

	if err := writer.AppendOrganizations(ctx, withLogo); err != nil {
		log.Warn().Err(err).Msg("failed to write to Google Sheets")
		return
	}
	log.Info().Int("rows", len(withLogo)).Msg("wrote organizations to Google Sheets")
}

func newSheetWriter(ctx context.Context, cfg config.SheetsConfig) (*sheets.Writer, error) {
	spreadsheetID := sheets.ExtractSpreadsheetID(cfg.SpreadsheetURL)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("could not extract spreadsheet ID from %q", cfg.SpreadsheetURL)
	}
	return sheets.NewWriter(ctx, spreadsheetID, cfg.SheetName, cfg.CredentialsFile)
}
