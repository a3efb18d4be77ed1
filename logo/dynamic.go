package logo

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// boostDynamic credits a logo that only shows up once the page has run its scripts
const boostDynamic = 0.2

// minRenderedSVG is the shortest inner markup of a rendered <svg> worth embedding
const minRenderedSVG = 50

var renderedHeaderMatchers = []func(*goquery.Selection) bool{
	tagIs("header"),
	attrContains("class", "header"),
	attrContains("id", "header"),
	tagIs("nav"),
	attrContains("class", "navbar"),
}

// findDynamic renders the website in a headless browser and runs a reduced
// set of checks on the resulting DOM
func (r *Resolver) findDynamic(sc *scan) *Candidate {
	if r.renderer == nil {
		return nil
	}

	sc.log.Debug().Msg("rendering page")
	page, err := r.renderer.Render(sc.ctx, sc.website)
	if err != nil {
		sc.log.Warn().Err(err).Msg("render failed")
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		sc.log.Warn().Err(err).Msg("failed to parse rendered page")
		return nil
	}

	if c := r.dynamicHeaders(sc, doc); c != nil {
		return c
	}
	if c := r.dynamicGlobal(sc, doc); c != nil {
		return c
	}
	return r.dynamicFavicon(sc, doc)
}

func mentionsLogo(img *goquery.Selection) bool {
	alt := strings.ToLower(img.AttrOr("alt", ""))
	src := strings.ToLower(imgSource(img))
	return strings.Contains(alt, "logo") || strings.Contains(src, "logo")
}

// renderedSVG embeds a rendered <svg> when its inner markup draws something
func renderedSVG(svg *goquery.Selection) string {
	inner, err := svg.Html()
	if err != nil || len(inner) <= minRenderedSVG || !containsAny(inner, svgPrimitives) {
		return ""
	}
	markup, err := goquery.OuterHtml(svg)
	if err != nil {
		return ""
	}
	return svgDataURI(markup)
}

// dynamicHeaders scans each rendered header region for, in order, images
// mentioning logo, SVGs tagged as logo and home or brand links wrapping an
// image or SVG
func (r *Resolver) dynamicHeaders(sc *scan, doc *goquery.Document) *Candidate {
	all := doc.Find("body *")
	for _, match := range renderedHeaderMatchers {
		var found *Candidate
		all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return match(s)
		}).EachWithBreak(func(_ int, region *goquery.Selection) bool {
			found = r.dynamicRegion(sc, region)
			return found == nil
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func (r *Resolver) dynamicRegion(sc *scan, region *goquery.Selection) *Candidate {
	var found *Candidate
	region.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if !mentionsLogo(img) {
			return true
		}
		found = r.accept(sc, StrategyDynamic, sc.normalize(imgSource(img)), img, boostDynamic)
		return found == nil
	})
	if found != nil {
		return found
	}

	region.Find("svg").EachWithBreak(func(_ int, svg *goquery.Selection) bool {
		if !attrContains("class", "logo")(svg) && !attrContains("id", "logo")(svg) {
			return true
		}
		found = r.accept(sc, StrategyDynamic, renderedSVG(svg), svg, boostDynamic)
		return found == nil
	})
	if found != nil {
		return found
	}

	region.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href != "/" && href != "./" && !attrContains("class", "logo", "brand")(a) {
			return true
		}
		if img := a.Find("img").First(); img.Length() > 0 {
			if found = r.accept(sc, StrategyDynamic, sc.normalize(imgSource(img)), img, boostDynamic); found != nil {
				return false
			}
		}
		if svg := a.Find("svg").First(); svg.Length() > 0 {
			found = r.accept(sc, StrategyDynamic, renderedSVG(svg), svg, boostDynamic)
		}
		return found == nil
	})
	return found
}

func (r *Resolver) dynamicGlobal(sc *scan, doc *goquery.Document) *Candidate {
	var found *Candidate
	checked := 0
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if !mentionsLogo(img) {
			return true
		}
		if checked >= 5 {
			return false
		}
		checked++
		found = r.accept(sc, StrategyDynamic, sc.normalize(imgSource(img)), img, boostDynamic)
		return found == nil
	})
	return found
}

func (r *Resolver) dynamicFavicon(sc *scan, doc *goquery.Document) *Candidate {
	var found *Candidate
	doc.Find("link[rel][href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		rel := strings.Join(strings.Fields(strings.ToLower(link.AttrOr("rel", ""))), " ")
		if rel != "icon" && rel != "shortcut icon" && rel != "apple-touch-icon" {
			return true
		}
		found = r.accept(sc, StrategyDynamic, sc.normalize(link.AttrOr("href", "")), nil, boostDynamic)
		return found == nil
	})
	return found
}
