package logo

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MinConfidence is the acceptance threshold of the validity gate
const MinConfidence = 0.1

// Confidence boosts contributed by the strategies themselves
const (
	boostAlt       = 0.4
	boostContainer = 0.3
	boostSrc       = 0.2
	boostDataAttr  = 0.2
	boostContext   = 0.2
	boostFallback  = 0.0
	boostGlobalKW  = 0.15
	boostGlobal    = 0.05
)

// logoKeywords mark alt text, class lists or URLs that talk about branding
var logoKeywords = []string{"logo", "brand", "company", "organization", "site"}

// Signals are the heuristic observations the gate makes about one candidate
type Signals struct {
	Boost         float64 // contributed by the strategy that found the candidate
	DataURI       bool
	SVG           bool
	Keyword       bool // alt text or class list mentions a logo keyword
	PlausibleSize bool // declared width/height within 50-500 x 20-200
}

// Score sums the confidence of a candidate from its signals
func Score(s Signals) float64 {
	score := s.Boost
	if s.DataURI {
		score += 0.2
	} else if s.SVG {
		score += 0.1
	}
	if s.Keyword {
		score += 0.3
	}
	if s.PlausibleSize {
		score += 0.1
	}
	return score
}

// signalsFor inspects the source element of a candidate. el may be nil.
func signalsFor(u string, el *goquery.Selection, boost float64) Signals {
	s := Signals{
		Boost:   boost,
		DataURI: isDataURI(u),
	}
	if !s.DataURI {
		s.SVG = isSVGURL(u)
	}
	if el == nil || el.Length() == 0 {
		return s
	}

	alt := strings.ToLower(el.AttrOr("alt", ""))
	class := strings.ToLower(el.AttrOr("class", ""))
	s.Keyword = containsAny(alt, logoKeywords) || containsAny(class, logoKeywords)

	if w, h, ok := declaredSize(el); ok {
		s.PlausibleSize = w >= 50 && w <= 500 && h >= 20 && h <= 200
	}
	return s
}

// declaredSize parses the width/height attributes. Both must be integers.
func declaredSize(el *goquery.Selection) (int, int, bool) {
	ws, okW := el.Attr("width")
	hs, okH := el.Attr("height")
	if !okW || !okH {
		return 0, 0, false
	}
	w, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(ws), "px"))
	if err != nil {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(hs), "px"))
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}

// plausibleLogoSize rejects declared sizes that cannot be a logo. Images
// without a usable declared size are given the benefit of the doubt.
// maxW/maxH of 0 disable the upper bounds.
func plausibleLogoSize(el *goquery.Selection, maxW, maxH int, maxAspect float64) bool {
	w, h, ok := declaredSize(el)
	if !ok {
		return true
	}
	if w < 30 || h < 20 {
		return false
	}
	if maxW > 0 && w > maxW {
		return false
	}
	if maxH > 0 && h > maxH {
		return false
	}
	if float64(w)/float64(h) > maxAspect || float64(h)/float64(w) > 3 {
		return false
	}
	return true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
