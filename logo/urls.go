package logo

import (
	"net/url"
	"strings"
)

// imageExtensions are the file extensions a non-data-URI logo must carry
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico"}

// EnsureScheme prepends https:// when the website has no http(s) scheme
func EnsureScheme(website string) string {
	website = strings.TrimSpace(website)
	lower := strings.ToLower(website)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return website
	}
	return "https://" + strings.TrimPrefix(website, "//")
}

// NormalizeURL turns an src/href found on a page into an absolute URL.
// Absolute http(s) URLs and data URIs pass through unchanged, scheme-relative
// URLs take the scheme of baseURL, root-relative URLs are joined with the
// scheme and host of baseURL and anything else is resolved against baseURL.
// Returns "" when src is empty or cannot be resolved.
func NormalizeURL(src, baseURL string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || isDataURI(src) {
		return src
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return ""
	}

	if strings.HasPrefix(src, "//") {
		return base.Scheme + ":" + src
	}
	if strings.HasPrefix(src, "/") {
		return base.Scheme + "://" + base.Host + src
	}

	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func isDataURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "data:")
}

func isDataImageURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "data:image/")
}

// isSVGDataURI reports whether s embeds SVG markup. Other inline images are
// usually lazy-load placeholders and never count as a logo.
func isSVGDataURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "data:image/svg+xml")
}

// hasImageExtension reports whether the URL mentions one of the accepted
// image extensions anywhere (query strings like ?file=logo.png count)
func hasImageExtension(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

func isSVGURL(u string) bool {
	return strings.Contains(strings.ToLower(u), ".svg")
}

func isICOURL(u string) bool {
	lower := strings.ToLower(u)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".ico")
}
