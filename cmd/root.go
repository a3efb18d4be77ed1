package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"orglogo-scraper/config"
	"orglogo-scraper/fetcher"
	"orglogo-scraper/logo"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "orglogo",
	Short:         "Find the logo of organization websites",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = time.RFC3339
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		if debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(resolveCmd, enrichCmd, botCmd)
}

// loadConfig loads the configuration file or returns defaults when it does not exist
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", cfgFile).Msg("config file not found, using default configuration")
		return config.GetDefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", cfgFile).Msg("config loaded")
	return cfg, nil
}

// newResolver wires the static fetcher, the optional headless renderer and
// the image prober. The returned cleanup closes the browser.
func newResolver(cfg config.ResolverConfig) (*logo.Resolver, func(), error) {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = fetcher.DefaultUserAgent
	}

	static := fetcher.NewCollyFetcher(userAgent, cfg.FetchTimeout, cfg.Parallelism)
	prober := logo.NewHTTPProber(userAgent, cfg.HeadTimeout, cfg.GetTimeout)

	var renderer logo.PageRenderer
	cleanup := func() {}
	if cfg.Dynamic {
		rf := fetcher.NewRodFetcher(fetcher.RodOptions{
			UserAgent:     userAgent,
			NavTimeout:    cfg.NavTimeout,
			StableTimeout: cfg.StableTimeout,
			Settle:        cfg.Settle,
			DataDir:       cfg.BrowserDataDir,
		})
		renderer = rf
		cleanup = func() {
			if err := rf.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close browser")
			}
		}
	}

	r, err := logo.NewResolver(static, renderer, prober, logo.Options{Strategies: cfg.Strategies})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	return r, cleanup, nil
}
