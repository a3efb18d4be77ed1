package fetcher

import (
	"context"
	"errors"
)

var (
	// ErrEmptyPage is returned when a page answers without a body
	ErrEmptyPage = errors.New("empty page")
	// ErrStatus is returned for non-2xx responses
	ErrStatus = errors.New("unexpected status")
)

// DefaultUserAgent is a desktop Chrome User-Agent; many organization sites
// serve a stripped page or a 403 to unknown clients
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher downloads the static HTML of a single page
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Renderer returns the DOM of a page after JavaScript has run
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
	Close() error
}

var (
	_ Fetcher  = (*CollyFetcher)(nil)
	_ Renderer = (*RodFetcher)(nil)
)
