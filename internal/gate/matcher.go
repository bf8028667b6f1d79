// Package gate decides whether a navigation to a gated site is intercepted
// and owns the access grant and visit cadence state behind that decision.
package gate

import (
	"strings"

	"github.com/ashureev/preppal/internal/domain"
)

// normalizeHost strips a single leading "www.". Nothing else is normalized:
// no IDN handling, no port stripping, no case folding.
func normalizeHost(host string) string {
	return strings.TrimPrefix(host, "www.")
}

// Matches reports whether hostname belongs to one of sites. A site matches
// when either normalized string contains the other, so "mail.google.com"
// matches "google.com" and "youtube.com" matches "m.youtube.com".
// Disabled sites are skipped unless includeDisabled is set.
func Matches(hostname string, sites []domain.GatedSite, includeDisabled bool) bool {
	_, ok := MatchSite(hostname, sites, includeDisabled)
	return ok
}

// MatchSite is Matches but also returns the first matching site.
func MatchSite(hostname string, sites []domain.GatedSite, includeDisabled bool) (domain.GatedSite, bool) {
	host := normalizeHost(hostname)
	if host == "" {
		return domain.GatedSite{}, false
	}
	for _, site := range sites {
		if !site.Enabled && !includeDisabled {
			continue
		}
		pattern := normalizeHost(site.HostPattern)
		if pattern == "" {
			continue
		}
		if strings.Contains(host, pattern) || strings.Contains(pattern, host) {
			return site, true
		}
	}
	return domain.GatedSite{}, false
}
