package filter

import (
	"net/url"
	"strings"

	"orglogo-scraper/config"
)

// excludedDomains are hosts that never serve an organization's own site:
// social networks, funding and content platforms, search engines, big
// vendors and business directories. Subdomains are excluded too.
var excludedDomains = []string{
	"facebook.com", "fb.com", "linkedin.com", "twitter.com", "x.com",
	"instagram.com", "youtube.com", "tiktok.com", "snapchat.com",
	"pinterest.com", "reddit.com", "discord.com", "telegram.org",
	"whatsapp.com", "wechat.com", "weibo.com",

	"crunchbase.com", "angel.co", "angellist.com", "gofundme.com",
	"kickstarter.com", "indiegogo.com", "patreon.com", "fundrazr.com",

	"medium.com", "substack.com", "wordpress.com", "blogspot.com",
	"tumblr.com", "github.com", "gitlab.com",

	"google.com", "bing.com", "yahoo.com", "wikipedia.org",
	"wikimedia.org", "wikidata.org",

	"meetup.com", "eventbrite.com", "zoom.us", "teams.microsoft.com",

	"apple.com", "microsoft.com", "amazon.com", "ebay.com",
	"alibaba.com", "paypal.com", "stripe.com",

	"yellowpages.com", "yelp.com", "foursquare.com",
}

var documentExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".zip", ".rar", ".tar", ".gz"}

// Filter decides which websites can be trusted as an organization's own site
type Filter struct {
	excluded []string
}

// NewFilter creates a new Filter instance
func NewFilter(cfg *config.FilterConfig) *Filter {
	f := &Filter{excluded: excludedDomains}
	if cfg != nil {
		for _, d := range cfg.ExcludedDomains {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				f.excluded = append(f.excluded, d)
			}
		}
	}
	return f
}

// IsOrganizationWebsite reports whether website looks like an organization's
// own site rather than a profile on a third-party platform
func (f *Filter) IsOrganizationWebsite(website string) bool {
	website = strings.TrimSpace(website)
	if website == "" {
		return false
	}
	lower := strings.ToLower(website)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		lower = "https://" + lower
	}

	u, err := url.Parse(lower)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")

	for _, d := range f.excluded {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}
	path := strings.TrimRight(u.Path, "/")
	for _, ext := range documentExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	return true
}

// ApplyFilters keeps the websites that pass IsOrganizationWebsite
func (f *Filter) ApplyFilters(websites []string) []string {
	var filtered []string

	for _, w := range websites {
		if f.IsOrganizationWebsite(w) {
			filtered = append(filtered, w)
		}
	}

	return filtered
}
