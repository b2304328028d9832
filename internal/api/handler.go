package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/irrigationcal/internal/domain"
	"github.com/punchamoorthee/irrigationcal/internal/models"
	"github.com/punchamoorthee/irrigationcal/internal/render"
	"github.com/punchamoorthee/irrigationcal/internal/store"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigation_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "irrigation_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "endpoint"})
)

const (
	endpointRoot     = "/"
	endpointPage     = "/{acct}"
	endpointCalendar = "/{acct}.ics"
)

// ScheduleFetcher fans out to the upstream for every resolved account.
type ScheduleFetcher interface {
	FetchAll(ctx context.Context, accounts []domain.Account) []models.FetchResult
}

type Handler struct {
	registry  *domain.Registry
	schedules ScheduleFetcher
	cookies   *store.CookieStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewHandler(reg *domain.Registry, schedules ScheduleFetcher, cookies *store.CookieStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:  reg,
		schedules: schedules,
		cookies:   cookies,
		logger:    logger,
		now:       time.Now,
	}
}

// GetCalendar serves /{acct}.ics. Cookies are left untouched.
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", endpointCalendar))
	defer timer.ObserveDuration()

	accounts, ok := h.resolve(w, r, endpointCalendar)
	if !ok {
		return
	}

	results := h.schedules.FetchAll(r.Context(), accounts)
	cal := render.Calendar(results, r.URL.String(), h.now())

	var buf bytes.Buffer
	if err := render.EncodeCalendar(&buf, cal); err != nil {
		h.logger.Error("calendar encoding failed", "error", err)
		h.respondText(w, http.StatusInternalServerError, "Error fetching data", "GET", endpointCalendar)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	h.respondBytes(w, http.StatusOK, buf.Bytes(), "GET", endpointCalendar)
}

// GetPage serves the HTML status page and records the visit in cookies.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", endpointPage))
	defer timer.ObserveDuration()

	accounts, ok := h.resolve(w, r, endpointPage)
	if !ok {
		return
	}
	raw := mux.Vars(r)["acct"]

	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	// The switcher shows the list as the browser sent it; only the cookie
	// written back includes this visit.
	received := h.cookies.Recent(r)
	h.cookies.Save(w, store.Remember(received, ids), raw)

	results := h.schedules.FetchAll(r.Context(), accounts)

	var buf bytes.Buffer
	err := render.Page(&buf, render.PageInput{
		Registry:       h.registry,
		Results:        results,
		Remembered:     received,
		RequestParam:   raw,
		AcceptLanguage: r.Header.Get("Accept-Language"),
	})
	if err != nil {
		h.logger.Error("page rendering failed", "error", err)
		h.respondText(w, http.StatusInternalServerError, "Error fetching data", "GET", endpointPage)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.respondBytes(w, http.StatusOK, buf.Bytes(), "GET", endpointPage)
}

// Root sends returning visitors back to the page they viewed last.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	if last, ok := h.cookies.LastAccount(r); ok {
		httpReqTotal.WithLabelValues("GET", endpointRoot, strconv.Itoa(http.StatusFound)).Inc()
		http.Redirect(w, r, "/"+url.PathEscape(last), http.StatusFound)
		return
	}
	h.respondText(w, http.StatusOK, "Hi.", "GET", endpointRoot)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, endpoint string) ([]domain.Account, bool) {
	accounts, err := domain.Resolve(h.registry, mux.Vars(r)["acct"], h.logger)
	switch {
	case err == nil:
		return accounts, true
	case errors.Is(err, domain.ErrRegistryUnavailable):
		h.logger.Error("missing account configuration")
		h.respondText(w, http.StatusInternalServerError, "Server configuration error", "GET", endpoint)
	case errors.Is(err, domain.ErrNoAccountsResolved):
		h.respondText(w, http.StatusNotFound, "Invalid account", "GET", endpoint)
	default:
		h.logger.Error("account resolution failed", "error", err)
		h.respondText(w, http.StatusInternalServerError, "Something went wrong", "GET", endpoint)
	}
	return nil, false
}

// Helpers
func (h *Handler) respondText(w http.ResponseWriter, code int, msg, method, endpoint string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	h.respondBytes(w, code, []byte(msg), method, endpoint)
}

func (h *Handler) respondBytes(w http.ResponseWriter, code int, body []byte, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}
