// Package scope implements the Scope Guard (§4.F): the pure predicate that
// decides whether a target is inside an engagement's defined scope, and the
// extractor that recovers a candidate target from a proposed tool call.
package scope

import (
	"net"
	"strings"
)

// InScope reports whether target is covered by scope. An empty scope list
// disables the check entirely (always true) — an engagement with no
// declared scope is treated as unrestricted, per §4.F.
//
// Matching rules, applied in order, first match wins:
//  1. exact string equality (after canonicalization)
//  2. "*.base" wildcard — matches base itself or any "*.base" subdomain
//  3. subdomain-suffix match against a bare parent domain entry
//  4. the entry parses as a CIDR or single IP and contains target's IP
//
// Unparseable scope entries are silently skipped rather than rejected: a
// typo in one scope entry must not make the whole scope unusable.
func InScope(target string, scope []string) bool {
	if len(scope) == 0 {
		return true
	}
	t := canonicalize(target)
	if t == "" {
		return false
	}
	targetIP := net.ParseIP(t)

	for _, raw := range scope {
		entry := canonicalize(raw)
		if entry == "" {
			continue
		}

		if t == entry {
			return true
		}

		if strings.HasPrefix(entry, "*.") {
			base := entry[2:]
			if t == base || strings.HasSuffix(t, "."+base) {
				return true
			}
			continue
		}

		if strings.HasSuffix(t, "."+entry) {
			return true
		}

		if targetIP != nil {
			if _, network, err := net.ParseCIDR(raw); err == nil {
				if network.Contains(targetIP) {
					return true
				}
				continue
			}
			if entryIP := net.ParseIP(entry); entryIP != nil && entryIP.Equal(targetIP) {
				return true
			}
		}
	}
	return false
}

// canonicalize lowercases, strips a leading scheme, strips anything after
// the first "/", and trims a trailing slash, matching the normalization the
// operator's browser-pasted URLs and scan targets both need.
func canonicalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "/")
	// Strip a trailing port (host:port) so "example.com:8080" still matches
	// a scope entry of "example.com".
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	return s
}
