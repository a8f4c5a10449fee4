package appMiddleware

import "strings"

// RouteTable is an enumerable set of exempt route patterns. A pattern matches
// the path equal to it and every path below it on a segment boundary, so
// "/cities" matches "/cities" and "/cities/seoul" but not "/cities-secret".
// The root pattern "/" matches only "/".
type RouteTable struct {
	patterns []string
}

// NewRouteTable normalises patterns (leading slash, no trailing slash).
func NewRouteTable(patterns ...string) RouteTable {
	t := RouteTable{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if len(p) > 1 {
			p = strings.TrimRight(p, "/")
		}
		t.patterns = append(t.patterns, p)
	}
	return t
}

// DefaultPublicRoutes lists the routes reachable without a session.
func DefaultPublicRoutes() RouteTable {
	return NewRouteTable(
		"/",
		"/login",
		"/register",
		"/forgot-password",
		"/reset-password",
		"/cities",
		"/auth",
		"/static",
		"/ping",
		"/swagger",
		"/api/v1/cities",
	)
}

// Matches reports whether path is covered by any pattern in the table.
func (t RouteTable) Matches(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, p := range t.patterns {
		if path == p {
			return true
		}
		if p != "/" && strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the configured patterns.
func (t RouteTable) Patterns() []string {
	return append([]string(nil), t.patterns...)
}
