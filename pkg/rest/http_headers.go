package rest

import (
	"net/http"
	"strings"
)

// Prefer holds preferences from the Prefer header (RFC 7240).
type Prefer struct {
	Count string // "exact" or "none"
}

// parsePrefer parses the Prefer header according to RFC 7240.
// It returns nil if the header is not present.
func parsePrefer(r *http.Request) *Prefer {
	header := r.Header.Get("Prefer")
	if header == "" {
		return nil
	}

	p := &Prefer{}
	parseKeyValPairs(header, func(key, value string) {
		if key == "count" && isValidCount(value) {
			p.Count = strings.ToLower(value)
		}
	})
	return p
}

// parseKeyValPairs parses comma-separated preference directives.
// For each key=value pair found, it calls fn with the key and value.
func parseKeyValPairs(header string, fn func(key, value string)) {
	for pref := range strings.SplitSeq(header, ",") {
		pref = strings.TrimSpace(pref)
		if key, value, found := strings.Cut(pref, "="); found {
			key = strings.TrimSpace(strings.ToLower(key))
			value = strings.Trim(strings.TrimSpace(value), `"`)
			fn(key, value)
		}
	}
}

// isValidCount reports whether s is a count preference the listing engine
// understands.
func isValidCount(s string) bool {
	switch strings.ToLower(s) {
	case "exact", "none":
		return true
	}
	return false
}

// countMode returns the count parameter, falling back to the Prefer header
// when the parameter is absent.
func countMode(r *http.Request, param string) string {
	if param != "" {
		return param
	}
	if p := parsePrefer(r); p != nil {
		return p.Count
	}
	return ""
}

// bearerToken returns the credential of an "Authorization: Bearer <token>"
// or "Authorization: OAuth2 <token>" header.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "bearer", "oauth2":
		return strings.TrimSpace(token)
	}
	return ""
}
