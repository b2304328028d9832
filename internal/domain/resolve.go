package domain

import (
	"log/slog"
	"strings"
)

// ParseRequest splits a route parameter such as "12345, 67890" into ids.
// Blank tokens are dropped and repeated ids keep only their first position.
func ParseRequest(raw string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		ids = append(ids, tok)
	}
	return ids
}

// Resolve maps the raw route parameter onto configured accounts, in request
// order. Unknown ids are logged and skipped; the call only fails when nothing
// resolves or when no registry is loaded.
func Resolve(reg *Registry, raw string, logger *slog.Logger) ([]Account, error) {
	if reg == nil {
		return nil, ErrRegistryUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}

	var resolved []Account
	for _, id := range ParseRequest(raw) {
		acct, ok := reg.Lookup(id)
		if !ok {
			logger.Warn("invalid account requested", "account", id)
			continue
		}
		resolved = append(resolved, acct)
	}
	if len(resolved) == 0 {
		return nil, ErrNoAccountsResolved
	}
	return resolved, nil
}
