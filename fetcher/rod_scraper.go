package fetcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// RodOptions configure the headless browser
type RodOptions struct {
	UserAgent     string
	NavTimeout    time.Duration
	StableTimeout time.Duration
	Settle        time.Duration
	// DataDir keeps the browser profile on disk instead of a temp dir
	DataDir string
}

// RodFetcher renders pages with a headless Chrome driven by rod. The
// browser is launched on first use and shared by all renders; every render
// gets its own incognito context.
type RodFetcher struct {
	opts RodOptions

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodFetcher creates a RodFetcher. No browser is started until the
// first Render.
func NewRodFetcher(opts RodOptions) *RodFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.StableTimeout <= 0 {
		opts.StableTimeout = 10 * time.Second
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	return &RodFetcher{opts: opts}
}

func (rf *RodFetcher) ensureBrowser() (*rod.Browser, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.browser != nil {
		return rf.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false). // Disable leakless to avoid antivirus issues
		// Additional flags for Linux containers
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-breakpad").
		Set("disable-sync").
		Set("disable-translate").
		Set("mute-audio").
		Set("no-zygote").
		Set("disable-features", "TranslateUI,BlinkGenPropertyTrees")

	if rf.opts.DataDir != "" {
		if err := os.MkdirAll(rf.opts.DataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", rf.opts.DataDir).Msg("failed to create browser data directory")
		} else {
			l = l.UserDataDir(rf.opts.DataDir)
		}
	}
	if bin := chromePath(); bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w\n\nNote: On Linux, you may need to install Chromium:\n  apt-get update && apt-get install -y chromium", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Info().Str("control_url", controlURL).Msg("headless browser started")
	rf.launcher = l
	rf.browser = browser
	return browser, nil
}

// chromePath looks for an installed Chrome/Chromium. Empty means let the
// launcher download one.
func chromePath() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}
	for _, path := range []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if path, ok := launcher.LookPath(); ok {
		return path
	}
	return ""
}

// Render navigates to pageURL in a fresh incognito context, waits for the
// DOM to settle and returns the serialized document
func (rf *RodFetcher) Render(ctx context.Context, pageURL string) (string, error) {
	browser, err := rf.ensureBrowser()
	if err != nil {
		return "", err
	}

	incognito, err := browser.Context(ctx).Incognito()
	if err != nil {
		return "", fmt.Errorf("failed to create browser context: %w", err)
	}
	defer func() {
		if err := incognito.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to dispose browser context")
		}
	}()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: rf.opts.UserAgent}); err != nil {
		log.Debug().Err(err).Msg("failed to set user agent")
	}

	if err := page.Timeout(rf.opts.NavTimeout).Navigate(pageURL); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.Timeout(rf.opts.NavTimeout).WaitLoad(); err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("page did not finish loading, continuing anyway")
	}
	if err := page.Timeout(rf.opts.StableTimeout).WaitStable(500 * time.Millisecond); err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("page did not stabilize within timeout, continuing anyway")
	}

	// Give late scripts time to inject the header
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(rf.opts.Settle):
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	if html == "" {
		return "", fmt.Errorf("failed to render %s: %w", pageURL, ErrEmptyPage)
	}
	return html, nil
}

// Close shuts the browser down
func (rf *RodFetcher) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.browser == nil {
		return nil
	}
	err := rf.browser.Close()
	if rf.launcher != nil {
		rf.launcher.Kill()
	}
	rf.browser = nil
	rf.launcher = nil
	return err
}
