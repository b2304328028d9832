package store

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	SavedAccountsCookie = "savedAccounts"
	LastAccountCookie   = "lastAccount"

	MaxRecentAccounts = 10
	cookieMaxAge      = 365 * 24 * time.Hour
)

// CookieStore keeps the recently viewed accounts on the client. Nothing is
// held server-side.
type CookieStore struct {
	logger *slog.Logger
	secure bool
}

func NewCookieStore(secure bool, logger *slog.Logger) *CookieStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CookieStore{logger: logger, secure: secure}
}

// Recent returns the remembered account ids, most recent first. A missing or
// malformed cookie yields an empty list.
func (s *CookieStore) Recent(r *http.Request) []string {
	c, err := r.Cookie(SavedAccountsCookie)
	if err != nil {
		return nil
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		s.logger.Debug("ignoring malformed cookie", "cookie", SavedAccountsCookie, "error", err)
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Debug("ignoring malformed cookie", "cookie", SavedAccountsCookie, "error", err)
		return nil
	}
	return ids
}

// LastAccount returns the route parameter of the last viewed page.
func (s *CookieStore) LastAccount(r *http.Request) (string, bool) {
	c, err := r.Cookie(LastAccountCookie)
	if err != nil {
		return "", false
	}
	v, err := url.QueryUnescape(c.Value)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// Save writes both cookies with a one-year lifetime.
func (s *CookieStore) Save(w http.ResponseWriter, recent []string, requestParam string) {
	if recent == nil {
		recent = []string{}
	}
	payload, err := json.Marshal(recent)
	if err != nil {
		s.logger.Error("encode saved accounts", "error", err)
		return
	}
	http.SetCookie(w, s.cookie(SavedAccountsCookie, string(payload)))
	http.SetCookie(w, s.cookie(LastAccountCookie, requestParam))
}

func (s *CookieStore) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Path:     "/",
		MaxAge:   int(cookieMaxAge / time.Second),
		Expires:  time.Now().Add(cookieMaxAge),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Remember moves each id to the front of recent, in turn, so the last id of a
// multi-account request ends up first. The result holds no duplicates and at
// most MaxRecentAccounts entries. recent is not modified.
func Remember(recent []string, ids []string) []string {
	out := make([]string, 0, len(recent)+len(ids))
	out = append(out, recent...)
	for _, id := range ids {
		filtered := make([]string, 1, len(out)+1)
		filtered[0] = id
		for _, existing := range out {
			if existing != id {
				filtered = append(filtered, existing)
			}
		}
		out = filtered
	}
	out = dedupe(out)
	if len(out) > MaxRecentAccounts {
		out = out[:MaxRecentAccounts]
	}
	return out
}

// dedupe guards against a cookie that already carried repeats.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
