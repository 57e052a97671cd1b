package stats

import (
	"net/url"
	"strings"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// TopSourcesLimit is how many publishing domains the dashboard ranks
const TopSourcesLimit = 10

// SourceDomain returns the lowercased host of an http(s) source URL without
// port or a leading "www.", or "" when the URL has no usable host
func SourceDomain(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if !validHost(host) {
		return ""
	}
	return strings.TrimPrefix(host, "www.")
}

// validHost accepts DNS names and IP literals only
func validHost(host string) bool {
	if host == "" {
		return false
	}
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == ':':
		default:
			return false
		}
	}
	return true
}

// TopSourceDomains ranks the domains events were reported from, returning
// at most limit entries. Events without a usable URL are not counted.
func TopSourceDomains(events []model.NormalizedEvent, limit int) []Count {
	counts := make(map[string]int)
	for i := range events {
		if domain := SourceDomain(events[i].SourceURL); domain != "" {
			counts[domain]++
		}
	}

	ranked := sortedCounts(counts)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
