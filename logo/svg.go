package logo

import (
	"encoding/base64"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const svgDataPrefix = "data:image/svg+xml;base64,"

// minInlineSVG is the shortest serialized <svg> worth embedding
const minInlineSVG = 100

var svgPrimitives = []string{"path", "circle", "rect"}

// extractSVG turns an inline <svg> into a logo reference: the target of a
// <use href> when it is absolute or root-relative, otherwise the markup
// itself as a base64 data URI when it is long enough and draws something.
func extractSVG(svg *goquery.Selection, baseURL string) string {
	if svg == nil || svg.Length() == 0 {
		return ""
	}

	use := svg.Find("use").First()
	if use.Length() > 0 {
		href := use.AttrOr("href", use.AttrOr("xlink:href", ""))
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
			return href
		case strings.HasPrefix(href, "/"):
			return NormalizeURL(href, baseURL)
		}
	}

	markup, err := goquery.OuterHtml(svg.First())
	if err != nil {
		return ""
	}
	if len(markup) <= minInlineSVG || !containsAny(markup, svgPrimitives) {
		return ""
	}
	return svgDataURI(markup)
}

func svgDataURI(markup string) string {
	return svgDataPrefix + base64.StdEncoding.EncodeToString([]byte(markup))
}
