package logo

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// headerMatchers are applied in order; regions matched by an earlier group
// are scanned first by the strategies
var headerMatchers = []func(*goquery.Selection) bool{
	tagIs("header"),
	attrContains("class", "header"),
	attrContains("id", "header"),
	tagIs("nav"),
	attrContains("class", "navbar"),
	attrContains("class", "nav"),
	attrContains("class", "top"),
	attrContains("class", "brand"),
	attrContains("id", "nav", "top", "brand"),
	attrEquals("role", "banner"),
	hasClass("site-header", "main-header", "page-header", "masthead", "header-wrapper",
		"site-branding", "logo-container", "brand-container"),
	attrEquals("id", "masthead"),
	func(s *goquery.Selection) bool {
		return goquery.NodeName(s) == "a" &&
			(attrContains("class", "logo", "brand")(s) || attrContains("id", "logo", "brand")(s))
	},
	func(s *goquery.Selection) bool {
		if goquery.NodeName(s) != "a" {
			return false
		}
		href, ok := s.Attr("href")
		return ok && (href == "/" || href == "./" || href == "#")
	},
}

// bodyDivKeywords flag the leading <body> divs that frequently wrap a header
var bodyDivKeywords = []string{"header", "top", "nav", "logo", "brand", "site"}

// FindHeaderRegions returns the subtrees of doc likely to contain site
// branding, each node at most once. A nil document yields no regions.
func FindHeaderRegions(doc *goquery.Document) []*goquery.Selection {
	if doc == nil {
		return nil
	}

	var regions []*goquery.Selection
	seen := make(map[*html.Node]bool)
	add := func(s *goquery.Selection) {
		for _, n := range s.Nodes {
			if seen[n] {
				continue
			}
			seen[n] = true
			regions = append(regions, s.FilterNodes(n))
		}
	}

	all := doc.Find("body *")
	if all.Length() == 0 {
		all = doc.Find("*")
	}
	for _, match := range headerMatchers {
		add(all.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return match(s)
		}))
	}

	count := 0
	doc.Find("body").First().ChildrenFiltered("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if count >= 5 {
			return false
		}
		count++
		if attrContains("class", bodyDivKeywords...)(div) || attrContains("id", bodyDivKeywords...)(div) {
			add(div)
		}
		return true
	})

	return regions
}

func tagIs(name string) func(*goquery.Selection) bool {
	return func(s *goquery.Selection) bool {
		return goquery.NodeName(s) == name
	}
}

// attrContains matches case-insensitively on any of the words
func attrContains(attr string, words ...string) func(*goquery.Selection) bool {
	return func(s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		if !ok || v == "" {
			return false
		}
		return containsAny(strings.ToLower(v), words)
	}
}

func attrEquals(attr, want string) func(*goquery.Selection) bool {
	return func(s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		return ok && strings.EqualFold(strings.TrimSpace(v), want)
	}
}

// hasClass matches whole class tokens
func hasClass(classes ...string) func(*goquery.Selection) bool {
	return func(s *goquery.Selection) bool {
		v, ok := s.Attr("class")
		if !ok {
			return false
		}
		for _, token := range strings.Fields(strings.ToLower(v)) {
			for _, c := range classes {
				if token == c {
					return true
				}
			}
		}
		return false
	}
}
