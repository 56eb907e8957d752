package portal

import (
	"regexp"

	"github.com/silverline-health/ordersync/internal/model"
)

// Anchored locations checked before falling back to a page-wide scan. The
// detail page has carried the NPI under several labels across portal releases.
var npiAnchorRes = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<span[^>]*id="physician-npi"[^>]*>\s*(\d{10})\s*</span>`),
	regexp.MustCompile(`(?is)<td[^>]*class="npi-value"[^>]*>\s*(\d{10})\s*</td>`),
	regexp.MustCompile(`(?is)data-npi="(\d{10})"`),
	regexp.MustCompile(`(?is)NPI\s*(?:#|:|No\.?)?\s*(?:</[^>]+>\s*<[^>]+>\s*)?(\d{10})\b`),
}

var npiLooseRe = regexp.MustCompile(`\b(\d{10})\b`)

// findNPI extracts a 10-digit NPI from detail-page HTML, preferring the
// anchored locations over a bare 10-digit scan.
func findNPI(pageSource string) string {
	for _, re := range npiAnchorRes {
		if m := re.FindStringSubmatch(pageSource); m != nil && model.ValidNPI(m[1]) {
			return m[1]
		}
	}
	if m := npiLooseRe.FindStringSubmatch(pageSource); m != nil && model.ValidNPI(m[1]) {
		return m[1]
	}
	return ""
}
