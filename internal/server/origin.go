package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy is the normalised websocket Origin allow-list. It is immutable
// once built; SetConfig swaps in a new one.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	ordered  []string
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			p.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			zap.L().Warn("ignoring invalid origin in configuration", zap.String("origin", origin))
			continue
		}

		if _, dup := p.allowed[normalized]; dup {
			continue
		}
		p.allowed[normalized] = struct{}{}
		p.ordered = append(p.ordered, normalized)
	}

	return p
}

// list returns the normalised origins, with "*" first when any origin is allowed.
func (p originPolicy) list() []string {
	out := make([]string, 0, len(p.ordered)+1)
	if p.allowAll {
		out = append(out, "*")
	}
	return append(out, p.ordered...)
}

func (p originPolicy) allows(originHeader string) bool {
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	if p.allowAll {
		return true
	}

	_, exists := p.allowed[normalized]
	return exists
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
	return normalized, true
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if currentOrigins().allows(origin) {
		return true
	}

	zap.L().Warn("blocked websocket connection from disallowed origin",
		zap.String("origin", origin),
		zap.String("remote", r.RemoteAddr),
	)
	return false
}
