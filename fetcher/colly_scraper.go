package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// CollyFetcher implements Fetcher using colly
type CollyFetcher struct {
	collector *colly.Collector
}

// NewCollyFetcher creates a CollyFetcher. parallelism bounds concurrent
// requests per domain across all fetches.
func NewCollyFetcher(userAgent string, timeout time.Duration, parallelism int) *CollyFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if parallelism <= 0 {
		parallelism = 2
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)

	// Same host gets at most `parallelism` requests in flight
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		RandomDelay: 500 * time.Millisecond,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to set colly limit rule")
	}

	return &CollyFetcher{
		collector: c,
	}
}

// Fetch implements the Fetcher interface. Each call runs on a clone of the
// base collector so concurrent fetches do not share callbacks.
func (cf *CollyFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	c := cf.collector.Clone()
	c.Context = ctx

	var body []byte
	var fetchErr error

	// callbacks are not copied by Clone
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9,fr;q=0.8")
	})

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		log.Debug().Str("url", r.Request.URL.String()).Int("status", r.StatusCode).Int("bytes", len(r.Body)).Msg("page fetched")
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= http.StatusMultipleChoices {
			fetchErr = fmt.Errorf("%w: %d", ErrStatus, r.StatusCode)
			return
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, fetchErr)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, ErrEmptyPage)
	}

	return string(body), nil
}
