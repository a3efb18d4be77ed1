package logo

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const site = "https://example.org"

const (
	plainSVG = `<svg viewBox="0 0 100 40"><path d="M10 10 L90 10 L90 30 L10 30 Z M20 15 L80 15 L80 25 L20 25 Z"></path></svg>`
	logoSVG  = `<svg class="logo" viewBox="0 0 100 40"><path d="M10 10 L90 10 L90 30 L10 30 Z M20 15 L80 15 L80 25 L20 25 Z"></path></svg>`
)

type stubFetcher struct {
	pages map[string]string
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, pageURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	page, ok := f.pages[pageURL]
	if !ok {
		return "", errors.New("not found")
	}
	return page, nil
}

type stubRenderer struct {
	page  string
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, _ string) (string, error) {
	r.calls++
	return r.page, r.err
}

// stubProber answers from a fixed set of reachable images
type stubProber struct {
	mu        sync.Mutex
	images    map[string]bool
	downloads map[string][]byte
	calls     map[string]int
}

func newStubProber(images ...string) *stubProber {
	p := &stubProber{
		images:    make(map[string]bool),
		downloads: make(map[string][]byte),
		calls:     make(map[string]int),
	}
	for _, u := range images {
		p.images[u] = true
	}
	return p
}

func (p *stubProber) IsImage(_ context.Context, u string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[u]++
	return p.images[u]
}

func (p *stubProber) Download(_ context.Context, u string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.downloads[u]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func newTestResolver(t *testing.T, page string, prober ImageProber, renderer PageRenderer, strategies ...string) *Resolver {
	t.Helper()
	fetcher := &stubFetcher{pages: map[string]string{site: page}}
	r, err := NewResolver(fetcher, renderer, prober, Options{Strategies: strategies})
	require.NoError(t, err)
	return r
}

func logoPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			if x < w/2 {
				c = color.NRGBA{R: 10, G: 40, B: 200, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResolvePriority(t *testing.T) {
	page := `<html><body>
		<header>
			<img src="/images/logo-b.png" class="logo">
			<img alt="Acme logo" src="/a.png">
		</header>
	</body></html>`
	prober := newStubProber(site+"/a.png", site+"/images/logo-b.png")
	r := newTestResolver(t, page, prober, nil)

	first, err := r.Resolve(context.Background(), "example.org")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, site+"/a.png", first.URL)
	assert.Equal(t, StrategyAlt, first.Strategy)
	assert.InDelta(t, 0.7, first.Confidence, 1e-9)

	second, err := r.Resolve(context.Background(), "example.org")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveBelowThresholdIsNeverReturned(t *testing.T) {
	page := `<html><body><header><img src="/images/header-graphic.png"></header></body></html>`
	prober := newStubProber(site + "/images/header-graphic.png")
	r := newTestResolver(t, page, prober, nil)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, prober.calls[site+"/images/header-graphic.png"], "low confidence candidates are not probed")
}

func TestResolveRequiresImageExtension(t *testing.T) {
	page := `<html><body><header><img alt="Company logo" src="/brand/mark"></header></body></html>`
	prober := newStubProber(site + "/brand/mark")
	r := newTestResolver(t, page, prober, nil)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveInlineSVG(t *testing.T) {
	page := `<html><body><header>` + logoSVG + `</header></body></html>`
	r := newTestResolver(t, page, newStubProber(), nil)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StrategySVG, got.Strategy)
	require.True(t, strings.HasPrefix(got.URL, svgDataPrefix))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got.URL, svgDataPrefix))
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "<svg")
	assert.Contains(t, string(decoded), "<path")
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestResolveFaviconFallback(t *testing.T) {
	page := `<html><head><link rel="icon" href="/favicon.ico" sizes="64x64"></head><body><p>Welcome</p></body></html>`
	prober := newStubProber(site + "/favicon.ico")
	r := newTestResolver(t, page, prober, nil)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, site+"/favicon.ico", got.URL)
	assert.Equal(t, StrategyFavicon, got.Strategy)
	assert.GreaterOrEqual(t, got.Confidence, MinConfidence)
}

func TestResolveDeclaredFaviconsLargestFirst(t *testing.T) {
	page := `<html><head>
		<link rel="icon" href="/icon-16.png" sizes="16x16">
		<link rel="apple-touch-icon" href="/icon-180.png" sizes="180x180">
	</head><body></body></html>`
	prober := newStubProber(site+"/icon-16.png", site+"/icon-180.png")
	r := newTestResolver(t, page, prober, nil, StrategyFavicon)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, site+"/icon-180.png", got.URL)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9)
}

func TestResolveExcludedImages(t *testing.T) {
	page := `<html><body><header>
		<img src="/icons/menu.png">
		<img src="/images/facebook.png">
	</header></body></html>`
	prober := newStubProber(site+"/icons/menu.png", site+"/images/facebook.png")
	r := newTestResolver(t, page, prober, nil)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, prober.calls[site+"/icons/menu.png"])
	assert.Zero(t, prober.calls[site+"/images/facebook.png"])
}

func TestResolveNothingFound(t *testing.T) {
	renderer := &stubRenderer{page: `<html><body><p>No images here</p></body></html>`}
	r := newTestResolver(t, `<html><body><p>Plain text</p></body></html>`, newStubProber(), renderer)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, renderer.calls)
}

func TestResolveDynamicAfterFetchFailure(t *testing.T) {
	renderer := &stubRenderer{page: `<html><body><header><img alt="Acme logo" src="/static/logo.svg"></header></body></html>`}
	prober := newStubProber(site + "/static/logo.svg")
	r, err := NewResolver(&stubFetcher{err: errors.New("connection reset")}, renderer, prober, Options{})
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StrategyDynamic, got.Strategy)
	assert.Equal(t, site+"/static/logo.svg", got.URL)
}

func TestResolveRerank(t *testing.T) {
	page := `<html><body><header><img src="/assets/brand-logo.png"></header></body></html>`
	u := site + "/assets/brand-logo.png"

	t.Run("visual features lift the candidate", func(t *testing.T) {
		prober := newStubProber(u)
		prober.downloads[u] = logoPNG(t, 200, 80)
		r := newTestResolver(t, page, prober, nil, StrategyFallback, StrategyRerank)

		got, err := r.Resolve(context.Background(), site)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, StrategyRerank, got.Strategy)
		assert.Equal(t, u, got.URL)
		assert.InDelta(t, 0.8, got.Confidence, 1e-9)
	})

	t.Run("url features alone are not enough", func(t *testing.T) {
		r := newTestResolver(t, page, newStubProber(u), nil, StrategyFallback, StrategyRerank)

		got, err := r.Resolve(context.Background(), site)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestResolveProbesEachURLOnce(t *testing.T) {
	page := `<html><body><header><a href="/"><img alt="Acme logo" src="/logo.png"></a></header></body></html>`
	prober := newStubProber()
	r := newTestResolver(t, page, prober, nil)

	got, err := r.Resolve(context.Background(), site)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, prober.calls[site+"/logo.png"])
}

func TestResolveImageSources(t *testing.T) {
	const gif = "data:image/gif;base64,R0lGODlhAQABAAAAACw="
	tests := []struct {
		name string
		img  string
		want string
	}{
		{"data-src", `<img alt="Acme logo" src="` + gif + `" data-src="/uploads/logo.png">`, site + "/uploads/logo.png"},
		{"data-lazy-src", `<img alt="Acme logo" src="` + gif + `" data-lazy-src="/uploads/logo.png">`, site + "/uploads/logo.png"},
		{"srcset", `<img alt="Acme logo" srcset="/uploads/logo.png 1x, /uploads/logo@2x.png 2x">`, site + "/uploads/logo.png"},
		{"inline svg source", `<img alt="Acme logo" src="data:image/svg+xml;base64,PHN2Zz48L3N2Zz4=">`, "data:image/svg+xml;base64,PHN2Zz48L3N2Zz4="},
		{"gif placeholder only", `<img alt="Acme logo" src="` + gif + `">`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `<html><body><header>` + tt.img + `</header></body></html>`
			r := newTestResolver(t, page, newStubProber(site+"/uploads/logo.png"), nil)

			got, err := r.Resolve(context.Background(), site)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.URL)
			assert.Equal(t, StrategyAlt, got.Strategy)
		})
	}
}

func TestResolveEachStrategy(t *testing.T) {
	const mark = "/img/mark.png"
	tests := []struct {
		name     string
		page     string
		want     string // empty for an inline SVG
		strategy string
	}{
		{"alt text", `<header><img alt="Acme logo" src="/img/mark.png"></header>`, mark, StrategyAlt},
		{"tagged svg", `<header>` + logoSVG + `</header>`, "", StrategySVG},
		{"logo container", `<header><div class="site-logo"><img src="/img/mark.png"></div></header>`, mark, StrategyContainer},
		{"file name", `<header><img src="/img/logo.png"></header>`, "/img/logo.png", StrategySrc},
		{"title attribute", `<header><img src="/img/mark.png" title="Acme logo"></header>`, mark, StrategyDataAttr},
		{"home link image", `<header><a href="/"><img src="/img/mark.png"></a></header>`, mark, StrategyContext},
		{"home link svg", `<header><a href="/">` + plainSVG + `</a></header>`, "", StrategyContext},
		{"first header image", `<header><img src="/img/mark.png" width="120" height="40"></header>`, mark, StrategyFallback},
		{"declared favicon", `<head><link rel="icon" href="/img/mark.png" sizes="32x32"></head><p>Welcome</p>`, mark, StrategyFavicon},
		{"image outside the header", `<main><img src="/img/mark.png" alt="Acme company"></main>`, mark, StrategyGlobal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `<html><body>` + tt.page + `</body></html>`
			prober := newStubProber(site + tt.want)
			r := newTestResolver(t, page, prober, nil)

			got, err := r.Resolve(context.Background(), site)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.GreaterOrEqual(t, got.Confidence, MinConfidence)
			if tt.want == "" {
				assert.True(t, strings.HasPrefix(got.URL, svgDataPrefix))
			} else {
				assert.Equal(t, site+tt.want, got.URL)
			}
		})
	}
}

func TestResolveSkipsNavigationAndSocialImages(t *testing.T) {
	header := `<header>
		<img src="/images/menu-burger-icon.png">
		<img src="/images/facebook-share.png">
	</header>`
	menu, share := site+"/images/menu-burger-icon.png", site+"/images/facebook-share.png"

	t.Run("favicon", func(t *testing.T) {
		prober := newStubProber(menu, share, site+"/favicon.ico")
		r := newTestResolver(t, `<html><body>`+header+`</body></html>`, prober, nil)

		got, err := r.Resolve(context.Background(), site)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, StrategyFavicon, got.Strategy)
		assert.Equal(t, site+"/favicon.ico", got.URL)
		assert.Zero(t, prober.calls[menu])
		assert.Zero(t, prober.calls[share])
	})

	t.Run("global", func(t *testing.T) {
		prober := newStubProber(menu, share, site+"/uploads/acme-logo.png")
		page := `<html><body>` + header + `<main><img src="/uploads/acme-logo.png"></main></body></html>`
		r := newTestResolver(t, page, prober, nil)

		got, err := r.Resolve(context.Background(), site)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, StrategyGlobal, got.Strategy)
		assert.Equal(t, site+"/uploads/acme-logo.png", got.URL)
		assert.Zero(t, prober.calls[menu])
		assert.Zero(t, prober.calls[share])
	})

	t.Run("dynamic", func(t *testing.T) {
		prober := newStubProber(menu, share, site+"/static/logo.svg")
		renderer := &stubRenderer{page: `<html><body><header><img alt="Acme logo" src="/static/logo.svg"></header></body></html>`}
		r := newTestResolver(t, `<html><body>`+header+`</body></html>`, prober, renderer)

		got, err := r.Resolve(context.Background(), site)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, StrategyDynamic, got.Strategy)
		assert.Equal(t, site+"/static/logo.svg", got.URL)
		assert.Zero(t, prober.calls[menu])
		assert.Zero(t, prober.calls[share])
	})
}

func TestResolveDynamic(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string // "inline" for an embedded SVG
	}{
		{
			name: "menu icon svg",
			page: `<header><svg class="menu-toggle" viewBox="0 0 24 24"><path d="M3 6h18M3 12h18M3 18h18M3 6h18M3 12h18M3 18h18"></path></svg></header>`,
		},
		{
			name: "logo svg",
			page: `<header><svg id="site-logo" viewBox="0 0 100 40"><path d="M10 10 L90 10 L90 30 L10 30 Z M20 15 L80 15 L80 25 L20 25 Z"></path></svg></header>`,
			want: "inline",
		},
		{
			name: "home link outside the header",
			page: `<main><p>Partners</p></main><footer><a href="/"><img src="/partners/sponsor.png"></a></footer>`,
		},
		{
			name: "home link in the header",
			page: `<header><a href="/"><img src="/assets/mark.png"></a></header>`,
			want: site + "/assets/mark.png",
		},
		{
			name: "image anywhere",
			page: `<main><img src="/assets/acme-logo.png"></main>`,
			want: site + "/assets/acme-logo.png",
		},
		{
			name: "favicon",
			page: `<head><link rel="shortcut icon" href="/assets/icon.png"></head><p>Loading</p>`,
			want: site + "/assets/icon.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &stubRenderer{page: `<html><body>` + tt.page + `</body></html>`}
			prober := newStubProber(site+"/partners/sponsor.png", site+"/assets/mark.png", site+"/assets/acme-logo.png", site+"/assets/icon.png")
			r, err := NewResolver(&stubFetcher{err: errors.New("connection reset")}, renderer, prober, Options{})
			require.NoError(t, err)

			got, err := r.Resolve(context.Background(), site)
			require.NoError(t, err)
			assert.Equal(t, 1, renderer.calls)
			switch tt.want {
			case "":
				assert.Nil(t, got)
			case "inline":
				require.NotNil(t, got)
				assert.Equal(t, StrategyDynamic, got.Strategy)
				assert.True(t, strings.HasPrefix(got.URL, svgDataPrefix))
			default:
				require.NotNil(t, got)
				assert.Equal(t, StrategyDynamic, got.Strategy)
				assert.Equal(t, tt.want, got.URL)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	r := newTestResolver(t, "", newStubProber(), nil)

	_, err := r.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyWebsite)

	_, err = r.Resolve(context.Background(), "http://")
	assert.ErrorIs(t, err, ErrInvalidWebsite)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Resolve(ctx, site)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewResolverRejectsUnknownStrategy(t *testing.T) {
	_, err := NewResolver(&stubFetcher{}, nil, newStubProber(), Options{Strategies: []string{"alt", "magic"}})
	assert.Error(t, err)
}

func TestResolveHTML(t *testing.T) {
	prober := newStubProber("https://acme.test/img/logo.png")
	r, err := NewResolver(&stubFetcher{}, nil, prober, Options{})
	require.NoError(t, err)

	got, err := r.ResolveHTML(context.Background(), "https://acme.test/about/",
		`<header><div class="site-logo"><img src="../img/logo.png"></div></header>`)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StrategyContainer, got.Strategy)
	assert.Equal(t, "https://acme.test/img/logo.png", got.URL)
}

func TestResolveAllKeepsOrder(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]string{
		"https://a.test": `<header><img alt="A logo" src="/a.png"></header>`,
		"https://b.test": `<p>nothing</p>`,
		"https://c.test": `<header><img alt="C logo" src="/c.png"></header>`,
	}}
	prober := newStubProber("https://a.test/a.png", "https://c.test/c.png")
	r, err := NewResolver(fetcher, nil, prober, Options{})
	require.NoError(t, err)

	results := ResolveAll(context.Background(), r, []string{"https://a.test", "https://b.test", "https://c.test", ""}, 2)
	require.Len(t, results, 4)

	assert.Equal(t, "https://a.test/a.png", results[0].Logo.URL)
	assert.Nil(t, results[1].Logo)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, "https://c.test/c.png", results[2].Logo.URL)
	assert.ErrorIs(t, results[3].Err, ErrEmptyWebsite)
}
