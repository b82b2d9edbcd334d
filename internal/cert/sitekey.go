package cert

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SiteKeyStrategy is one pure attempt at locating the bot-challenge site
// key in a landing page. It returns "" when the pattern does not match.
type SiteKeyStrategy struct {
	Name    string
	Extract func(markup string) string
}

var (
	reDataSiteKey    = regexp.MustCompile(`data-sitekey=["']([^"']+)["']`)
	reSiteKeyLiteral = regexp.MustCompile(`sitekey\s*:\s*["']([^"']+)["']`)
	reTurnstileCall  = regexp.MustCompile(`turnstile\.render\([^,]+,\s*\{[^}]*sitekey\s*:\s*["']([^"']+)["']`)
)

func firstGroup(re *regexp.Regexp, markup string) string {
	if m := re.FindStringSubmatch(markup); m != nil {
		return m[1]
	}
	return ""
}

// cfTurnstileContainer locates the widget container element and reads its
// data-sitekey attribute. Parsing the DOM copes with attribute orderings
// the regex patterns miss.
func cfTurnstileContainer(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	key, _ := doc.Find("div.cf-turnstile").First().Attr("data-sitekey")
	return key
}

// SiteKeyStrategies is the ordered fallback chain tried against a landing
// page. The first non-empty result wins.
var SiteKeyStrategies = []SiteKeyStrategy{
	{Name: "data_sitekey_attribute", Extract: func(m string) string { return firstGroup(reDataSiteKey, m) }},
	{Name: "sitekey_js_literal", Extract: func(m string) string { return firstGroup(reSiteKeyLiteral, m) }},
	{Name: "turnstile_render_call", Extract: func(m string) string { return firstGroup(reTurnstileCall, m) }},
	{Name: "cf_turnstile_container", Extract: cfTurnstileContainer},
}

// ExtractSiteKey runs the strategy chain over the markup. The returned
// strategy name identifies which pattern matched, for logging.
func ExtractSiteKey(markup string) (key, strategy string) {
	for _, s := range SiteKeyStrategies {
		if k := s.Extract(markup); k != "" {
			return k, s.Name
		}
	}
	return "", ""
}
