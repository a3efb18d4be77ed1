package logo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyWebsite   = errors.New("website is empty")
	ErrInvalidWebsite = errors.New("website is not a valid URL")
)

// PageFetcher downloads the static HTML of a page
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// PageRenderer returns the DOM of a page after its scripts have run
type PageRenderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// Options configure a Resolver
type Options struct {
	// Strategies lists the pipeline stages in order. Empty means DefaultStrategies.
	Strategies []string
}

type strategyFunc func(r *Resolver, sc *scan) *Candidate

type stage struct {
	name string
	run  strategyFunc
	// needsDocument stages are skipped when the static page is unavailable
	needsDocument bool
}

var registry = map[string]stage{
	StrategyAlt:       {StrategyAlt, (*Resolver).findByAlt, true},
	StrategySVG:       {StrategySVG, (*Resolver).findSVG, true},
	StrategyContainer: {StrategyContainer, (*Resolver).findInContainers, true},
	StrategySrc:       {StrategySrc, (*Resolver).findBySrc, true},
	StrategyDataAttr:  {StrategyDataAttr, (*Resolver).findByDataAttributes, true},
	StrategyContext:   {StrategyContext, (*Resolver).findByContext, true},
	StrategyFallback:  {StrategyFallback, (*Resolver).findFallback, true},
	StrategyFavicon:   {StrategyFavicon, (*Resolver).findFavicon, true},
	StrategyGlobal:    {StrategyGlobal, (*Resolver).findGlobal, true},
	StrategyRerank:    {StrategyRerank, (*Resolver).rerank, false},
	StrategyDynamic:   {StrategyDynamic, (*Resolver).findDynamic, false},
}

// Resolver finds the logo of an organization website. It is safe for
// concurrent use; all per-website state lives in the call.
type Resolver struct {
	fetcher  PageFetcher
	renderer PageRenderer
	prober   ImageProber
	stages   []stage
}

// NewResolver builds a Resolver. renderer may be nil, which disables the
// dynamic stage.
func NewResolver(fetcher PageFetcher, renderer PageRenderer, prober ImageProber, opts Options) (*Resolver, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if prober == nil {
		return nil, errors.New("prober is required")
	}

	names := opts.Strategies
	if len(names) == 0 {
		names = DefaultStrategies
	}
	stages := make([]stage, 0, len(names))
	for _, name := range names {
		st, ok := registry[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		stages = append(stages, st)
	}

	return &Resolver{
		fetcher:  fetcher,
		renderer: renderer,
		prober:   prober,
		stages:   stages,
	}, nil
}

// scan is the state of one resolution
type scan struct {
	ctx        context.Context
	website    string
	baseURL    string
	doc        *goquery.Document
	headers    []*goquery.Selection
	candidates *candidateSet
	probed     map[string]bool
	log        zerolog.Logger
}

func (sc *scan) normalize(src string) string {
	return NormalizeURL(src, sc.baseURL)
}

// Resolve fetches website and returns its most likely logo, or nil when no
// candidate clears the bar. Errors are returned only for an unusable
// website or a cancelled context.
func (r *Resolver) Resolve(ctx context.Context, website string) (*Candidate, error) {
	sc, err := r.newScan(ctx, website)
	if err != nil {
		return nil, err
	}

	page, err := r.fetcher.Fetch(ctx, sc.website)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sc.log.Warn().Err(err).Msg("failed to fetch website, skipping static strategies")
	} else {
		sc.parse(page)
	}

	return r.run(sc)
}

// ResolveHTML runs the pipeline on an already downloaded page. website is
// the URL the page was served from.
func (r *Resolver) ResolveHTML(ctx context.Context, website, page string) (*Candidate, error) {
	sc, err := r.newScan(ctx, website)
	if err != nil {
		return nil, err
	}
	sc.parse(page)
	return r.run(sc)
}

func (r *Resolver) newScan(ctx context.Context, website string) (*scan, error) {
	if strings.TrimSpace(website) == "" {
		return nil, ErrEmptyWebsite
	}
	website = EnsureScheme(website)
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWebsite, website)
	}

	return &scan{
		ctx:        ctx,
		website:    website,
		baseURL:    website,
		candidates: newCandidateSet(),
		probed:     make(map[string]bool),
		log: log.With().
			Str("resolution", uuid.NewString()).
			Str("website", website).
			Logger(),
	}, nil
}

func (sc *scan) parse(page string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		sc.log.Warn().Err(err).Msg("failed to parse page")
		return
	}
	sc.doc = doc
	sc.headers = FindHeaderRegions(doc)
	sc.log.Debug().Int("regions", len(sc.headers)).Msg("header regions detected")
}

func (r *Resolver) run(sc *scan) (*Candidate, error) {
	for _, st := range r.stages {
		if err := sc.ctx.Err(); err != nil {
			return nil, err
		}
		if st.needsDocument && sc.doc == nil {
			continue
		}

		c := st.run(r, sc)
		if c == nil {
			continue
		}
		sc.log.Info().
			Str("strategy", c.Strategy).
			Float64("confidence", c.Confidence).
			Str("logo", truncate(c.URL, 100)).
			Msg("logo found")
		return c, nil
	}

	if err := sc.ctx.Err(); err != nil {
		return nil, err
	}
	sc.log.Info().Int("candidates", sc.candidates.len()).Msg("no logo found")
	return nil, nil
}

// accept is the validity gate. A candidate that fails it is kept for the
// rerank stage.
func (r *Resolver) accept(sc *scan, strategy, u string, el *goquery.Selection, boost float64) *Candidate {
	if u == "" {
		return nil
	}
	c := Candidate{
		URL:        u,
		Confidence: Score(signalsFor(u, el, boost)),
		Strategy:   strategy,
	}

	if isDataURI(u) {
		if !isSVGDataURI(u) {
			return nil
		}
	} else if !hasImageExtension(u) {
		sc.candidates.add(c)
		return nil
	}

	if c.Confidence < MinConfidence || !r.reachable(sc, u) {
		sc.candidates.add(c)
		return nil
	}
	return &c
}

// reachable asks the prober once per URL and resolution
func (r *Resolver) reachable(sc *scan, u string) bool {
	if isDataURI(u) {
		return isSVGDataURI(u)
	}
	if ok, seen := sc.probed[u]; seen {
		return ok
	}
	ok := r.prober.IsImage(sc.ctx, u)
	sc.probed[u] = ok
	if !ok {
		sc.log.Debug().Str("url", u).Msg("candidate is not a reachable image")
	}
	return ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
