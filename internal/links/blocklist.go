package links

import (
	"net/url"
	"strings"
)

// HasBlockedDomain reports whether the host of rawURL matches one of domains.
// Entries may be bare hosts or full URLs; a match is a substring relation in
// either direction, so "blocked.com" covers "img.blocked.com".
func HasBlockedDomain(rawURL string, domains []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = normalizeDomain(d)
		if d == "" {
			continue
		}
		if strings.Contains(host, d) || strings.Contains(d, host) {
			return true
		}
	}
	return false
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return strings.TrimSuffix(d, "/")
}
