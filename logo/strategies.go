package logo

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	// srcExcludes disqualify a header <img> src in the src-content strategy
	srcExcludes = []string{"icon", "avatar", "profile"}

	// fallbackExcludes disqualify header images in the fallback strategy
	fallbackExcludes = []string{
		"icon", "arrow", "menu", "search", "close", "burger", "hamburger",
		"facebook", "twitter", "linkedin", "instagram", "youtube", "social",
		"banner", "ad", "advertisement", "avatar", "profile", "user",
	}

	// globalExcludes extends fallbackExcludes for images outside the header
	globalExcludes = append(append([]string{}, fallbackExcludes...),
		"gallery", "photo", "pic", "image", "thumb", "preview",
		"button", "background", "bg", "pattern", "texture",
	)

	dataAttrs = []string{"data-src", "data-original", "title", "aria-label"}

	homeIndicators = []string{"home", "accueil", "homepage", "site", "company", "organization"}

	faviconRels = map[string]bool{
		"icon":                         true,
		"shortcut icon":                true,
		"apple-touch-icon":             true,
		"apple-touch-icon-precomposed": true,
		"mask-icon":                    true,
		"fluid-icon":                   true,
	}
)

// imgSource returns the URL an <img> displays. Lazy-loading placeholders
// (an empty or data: src) yield the lazy attribute or the first srcset
// entry instead.
func imgSource(img *goquery.Selection) string {
	src := strings.TrimSpace(img.AttrOr("src", ""))
	if src == "" || isDataURI(src) {
		for _, attr := range []string{"data-src", "data-original", "data-lazy-src"} {
			if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
				return v
			}
		}
		if v := firstSrcset(img.AttrOr("srcset", "")); v != "" {
			return v
		}
	}
	return src
}

// firstSrcset returns the URL of the first srcset candidate
func firstSrcset(srcset string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(srcset), ",")
	if fields := strings.Fields(first); len(fields) > 0 && !isDataURI(fields[0]) {
		return fields[0]
	}
	return ""
}

// matchesExclusion reports whether s mentions one of the patterns. Patterns
// of three letters or fewer ("ad", "bg", "pic") must match a whole word so
// that paths like /uploads/ or /badges/ are not excluded by accident.
func matchesExclusion(s string, patterns []string) bool {
	s = strings.ToLower(s)
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, p := range patterns {
		if len(p) > 3 {
			if strings.Contains(s, p) {
				return true
			}
			continue
		}
		for _, t := range tokens {
			if t == p {
				return true
			}
		}
	}
	return false
}

// findByAlt looks for header images whose alt text names the brand
func (r *Resolver) findByAlt(sc *scan) *Candidate {
	for _, header := range sc.headers {
		var found *Candidate
		header.Find("img[alt]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			alt := strings.ToLower(img.AttrOr("alt", ""))
			if !containsAny(alt, logoKeywords) {
				return true
			}
			found = r.accept(sc, StrategyAlt, sc.normalize(imgSource(img)), img, boostAlt)
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// findSVG looks for inline SVGs tagged as a logo, directly or through a
// logo container
func (r *Resolver) findSVG(sc *scan) *Candidate {
	for _, header := range sc.headers {
		var svgs []*goquery.Selection
		header.Find("svg").Each(func(_ int, svg *goquery.Selection) {
			if attrContains("class", "logo")(svg) {
				svgs = append(svgs, svg)
			}
		})
		header.Find("svg").Each(func(_ int, svg *goquery.Selection) {
			if attrContains("id", "logo")(svg) {
				svgs = append(svgs, svg)
			}
		})
		header.Find("div, a, span").Each(func(_ int, container *goquery.Selection) {
			if attrContains("class", "logo")(container) {
				if svg := container.Find("svg").First(); svg.Length() > 0 {
					svgs = append(svgs, svg)
				}
			}
		})

		for _, svg := range svgs {
			if c := r.accept(sc, StrategySVG, extractSVG(svg, sc.baseURL), svg, 0); c != nil {
				return c
			}
		}
	}
	return nil
}

var containerMatch = func(s *goquery.Selection) bool {
	return attrContains("class", "logo", "brand")(s) ||
		attrContains("id", "logo", "brand")(s) ||
		hasClass("site-title", "site-logo", "brand-logo", "company-logo")(s)
}

// findInContainers looks for images inside (or being) logo/brand containers
func (r *Resolver) findInContainers(sc *scan) *Candidate {
	for _, header := range sc.headers {
		var found *Candidate
		header.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return containerMatch(s)
		}).EachWithBreak(func(_ int, container *goquery.Selection) bool {
			img := container
			if goquery.NodeName(container) != "img" {
				img = container.Find("img").First()
			}
			if img.Length() == 0 {
				return true
			}
			src := imgSource(img)
			if src == "" {
				return true
			}
			found = r.accept(sc, StrategyContainer, sc.normalize(src), img, boostContainer)
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// findBySrc looks for header images whose file name says logo
func (r *Resolver) findBySrc(sc *scan) *Candidate {
	for _, header := range sc.headers {
		var found *Candidate
		header.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src := imgSource(img)
			lower := strings.ToLower(src)
			if !strings.Contains(lower, "logo") || containsAny(lower, srcExcludes) {
				return true
			}
			found = r.accept(sc, StrategySrc, sc.normalize(src), img, boostSrc)
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// findByDataAttributes looks for header images tagged as logo through
// lazy-loading, title or aria attributes
func (r *Resolver) findByDataAttributes(sc *scan) *Candidate {
	for _, header := range sc.headers {
		var found *Candidate
		header.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			tagged := false
			for _, attr := range dataAttrs {
				if strings.Contains(strings.ToLower(img.AttrOr(attr, "")), "logo") {
					tagged = true
					break
				}
			}
			if !tagged {
				return true
			}
			src := imgSource(img)
			if src == "" {
				return true
			}
			found = r.accept(sc, StrategyDataAttr, sc.normalize(src), img, boostDataAttr)
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func isHomeLink(a *goquery.Selection) bool {
	href := strings.ToLower(strings.TrimSpace(a.AttrOr("href", "")))
	switch href {
	case "/", "#", "", "./":
		return true
	}
	if containsAny(href, []string{"home", "index"}) {
		return true
	}
	text := strings.ToLower(strings.TrimSpace(a.Text()))
	if containsAny(text, homeIndicators) {
		return true
	}
	return attrContains("class", "logo", "brand")(a) || attrContains("id", "logo", "brand")(a)
}

// findByContext looks for images or SVGs wrapped by a link back to the home page
func (r *Resolver) findByContext(sc *scan) *Candidate {
	for _, header := range sc.headers {
		var found *Candidate
		header.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if !isHomeLink(a) {
				return true
			}
			if img := a.Find("img").First(); img.Length() > 0 {
				if src := imgSource(img); src != "" {
					if found = r.accept(sc, StrategyContext, sc.normalize(src), img, boostContext); found != nil {
						return false
					}
				}
			}
			if svg := a.Find("svg").First(); svg.Length() > 0 {
				found = r.accept(sc, StrategyContext, extractSVG(svg, sc.baseURL), svg, 0)
			}
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// findFallback takes the first plausible images of each header region
func (r *Resolver) findFallback(sc *scan) *Candidate {
	for _, header := range sc.headers {
		var found *Candidate
		checked := 0
		header.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src := imgSource(img)
			if src == "" {
				return true
			}
			if checked >= 3 {
				return false
			}
			checked++
			if matchesExclusion(src, fallbackExcludes) || !plausibleLogoSize(img, 0, 0, 10) {
				return true
			}
			found = r.accept(sc, StrategyFallback, sc.normalize(src), img, boostFallback)
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

type favicon struct {
	url   string
	score float64
}

// faviconSizeScore rates a sizes attribute such as "64x64" or "32x32 16x16"
func faviconSizeScore(sizes string) float64 {
	best := 0.1
	for _, size := range strings.Fields(strings.ToLower(sizes)) {
		parts := strings.SplitN(size, "x", 2)
		w, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		h := w
		if len(parts) == 2 {
			if h, err = strconv.Atoi(parts[1]); err != nil {
				continue
			}
		}
		switch {
		case w >= 64 && h >= 64:
			best = maxFloat(best, 0.3)
		case w >= 32 && h >= 32:
			best = maxFloat(best, 0.2)
		}
	}
	return best
}

// findFavicon tries /favicon.ico and then the declared icons, largest first
func (r *Resolver) findFavicon(sc *scan) *Candidate {
	if def := sc.normalize("/favicon.ico"); def != "" && r.reachable(sc, def) {
		return &Candidate{URL: def, Confidence: MinConfidence, Strategy: StrategyFavicon}
	}

	var icons []favicon
	sc.doc.Find("link[rel][href]").Each(func(_ int, link *goquery.Selection) {
		rel := strings.Join(strings.Fields(strings.ToLower(link.AttrOr("rel", ""))), " ")
		if !faviconRels[rel] {
			return
		}
		u := sc.normalize(link.AttrOr("href", ""))
		if u == "" {
			return
		}
		icons = append(icons, favicon{url: u, score: faviconSizeScore(link.AttrOr("sizes", ""))})
	})
	sort.SliceStable(icons, func(i, j int) bool { return icons[i].score > icons[j].score })

	for _, icon := range icons {
		if r.reachable(sc, icon.url) {
			return &Candidate{URL: icon.url, Confidence: icon.score, Strategy: StrategyFavicon}
		}
	}
	return nil
}

// findGlobal scans the first images of the whole document
func (r *Resolver) findGlobal(sc *scan) *Candidate {
	var found *Candidate
	checked := 0
	sc.doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := imgSource(img)
		if src == "" {
			return true
		}
		if checked >= 10 {
			return false
		}
		checked++

		alt := img.AttrOr("alt", "")
		if matchesExclusion(src, globalExcludes) || matchesExclusion(alt, globalExcludes) {
			return true
		}
		if !plausibleLogoSize(img, 800, 400, 8) {
			return true
		}

		boost := boostGlobal
		if containsAny(strings.ToLower(src+" "+alt), logoKeywords) {
			boost = boostGlobalKW
		}
		found = r.accept(sc, StrategyGlobal, sc.normalize(src), img, boost)
		return found == nil
	})
	return found
}

// rerank revisits the best collected candidates with URL and visual features
func (r *Resolver) rerank(sc *scan) *Candidate {
	if sc.candidates.len() == 0 {
		return nil
	}
	for _, c := range sc.candidates.top(rerankTop) {
		urlScore := urlFeatureScore(c.URL)
		visualScore := 0.0
		if !isDataURI(c.URL) && r.prober != nil {
			if data, err := r.prober.Download(sc.ctx, c.URL); err == nil {
				visualScore = visualFeatureScore(data)
			} else {
				sc.log.Debug().Err(err).Str("url", c.URL).Msg("visual analysis skipped")
			}
		}

		total := c.Confidence + urlScore + visualScore
		sc.log.Debug().Str("url", truncate(c.URL, 80)).Float64("score", total).Msg("rerank candidate")
		if total <= rerankThreshold {
			continue
		}
		if isDataURI(c.URL) {
			if !isSVGDataURI(c.URL) {
				continue
			}
		} else if !hasImageExtension(c.URL) || !r.reachable(sc, c.URL) {
			continue
		}
		return &Candidate{URL: c.URL, Confidence: total, Strategy: StrategyRerank}
	}
	return nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
