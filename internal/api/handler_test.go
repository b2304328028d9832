package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/irrigationcal/internal/domain"
	"github.com/punchamoorthee/irrigationcal/internal/service"
	"github.com/punchamoorthee/irrigationcal/internal/store"
	"github.com/punchamoorthee/irrigationcal/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const quickviewBody = `{
	"id": "X",
	"orderStatus": "Scheduled",
	"irrigationNotice": "Irrigation begins at the scheduled time.",
	"displayFirstAccountScheduleDetail": {"address": "1 Main St"},
	"onDateTime": "2024-05-01T06:00:00",
	"offDateTime": "2024-05-01T07:00:00"
}`

// fakeUpstream answers 12345 and 67890 with a schedule and 503 for 55555.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/schedule/account/12345/quickview", "/schedule/account/67890/quickview":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(quickviewBody))
		case "/schedule/account/55555/quickview":
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, reg *domain.Registry) *mux.Router {
	t.Helper()
	up := fakeUpstream(t)
	client := upstream.NewClient(up.Client(), up.URL, quiet)
	svc := service.NewScheduleService(client, "-07:00", quiet)
	h := NewHandler(reg, svc, store.NewCookieStore(false, quiet), quiet)
	return NewRouter(h, quiet)
}

func testRegistry(t *testing.T) *domain.Registry {
	t.Helper()
	reg, err := domain.NewRegistry([]string{"12345", "67890", "55555"}, []string{"Home", "Farm", "Orchard"})
	require.NoError(t, err)
	return reg
}

func do(t *testing.T, h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetPage(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	rec := do(t, r, "/12345")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	body := rec.Body.String()
	assert.Contains(t, body, "Home")
	assert.Contains(t, body, "Scheduled")
	assert.Contains(t, body, "1 Main St")
	assert.Contains(t, body, `href="/12345.ics"`)
	assert.NotContains(t, body, `id="account-select"`, "first visit has nothing to switch to")

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, store.SavedAccountsCookie)
	require.Contains(t, cookies, store.LastAccountCookie)
	saved, _ := url.QueryUnescape(cookies[store.SavedAccountsCookie].Value)
	assert.Equal(t, `["12345"]`, saved)
	assert.Equal(t, "12345", cookies[store.LastAccountCookie].Value)
	assert.Equal(t, 365*24*60*60, cookies[store.LastAccountCookie].MaxAge)
}

func TestGetPageUpdatesRememberedAccounts(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	prior := &http.Cookie{Name: store.SavedAccountsCookie, Value: url.QueryEscape(`["67890","12345"]`)}
	rec := do(t, r, "/12345", prior)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == store.SavedAccountsCookie {
			saved, _ := url.QueryUnescape(c.Value)
			assert.Equal(t, `["12345","67890"]`, saved)
		}
	}
	assert.Contains(t, rec.Body.String(), "View All")
}

func TestGetPageSwitcherListsReceivedAccounts(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	prior := &http.Cookie{Name: store.SavedAccountsCookie, Value: url.QueryEscape(`["67890"]`)}
	rec := do(t, r, "/12345", prior)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `id="account-select"`)
	assert.NotContains(t, body, "View All")
	assert.Contains(t, body, `<option value="67890">Farm</option>`)
	assert.NotContains(t, body, `<option value="12345"`)

	var saved string
	for _, c := range rec.Result().Cookies() {
		if c.Name == store.SavedAccountsCookie {
			saved, _ = url.QueryUnescape(c.Value)
		}
	}
	assert.Equal(t, `["12345","67890"]`, saved)
}

func TestGetPagePartialAccounts(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	rec := do(t, r, "/12345,99999")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, `class="schedule-section`))
	assert.Contains(t, body, "Home")
	assert.NotContains(t, body, "99999.ics")
}

func TestGetPageUpstreamFailure(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	rec := do(t, r, "/12345,55555,67890")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Equal(t, 3, strings.Count(body, `class="schedule-section`))
	assert.Equal(t, 1, strings.Count(body, "Unable to fetch irrigation data"))
	assert.Contains(t, body, `href="/12345.ics"`)
	assert.Contains(t, body, `href="/67890.ics"`)
	assert.NotContains(t, body, `href="/55555.ics"`)

	iHome := strings.Index(body, "<h2>Home</h2>")
	iOrchard := strings.Index(body, "<h2>Orchard</h2>")
	iFarm := strings.Index(body, "<h2>Farm</h2>")
	assert.True(t, iHome < iOrchard && iOrchard < iFarm, "sections follow request order")
}

func TestGetCalendar(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	rec := do(t, r, "/12345.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Result().Cookies(), "calendar feed never sets cookies")

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "UID:X-12345")
	assert.Contains(t, body, "SUMMARY:Irrigation - Home: Scheduled")
	assert.Contains(t, body, "X-WR-CALNAME:Irrigation Home")
	assert.Contains(t, body, "DTSTART:20240501T130000Z")
	assert.Contains(t, body, "DTEND:20240501T140000Z")
	assert.Contains(t, body, "TRIGGER;VALUE=DATE-TIME:20240501T140000Z")
}

func TestGetCalendarOmitsFailedAccounts(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	rec := do(t, r, "/12345,55555.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
	assert.NotContains(t, body, "-55555")
	assert.Contains(t, body, "X-WR-CALNAME:Irrigation - Multiple Accounts")
}

func TestGetCalendarAllFetchesFailed(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	rec := do(t, r, "/55555.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(body, "END:VCALENDAR\r\n"))
	assert.NotContains(t, body, "BEGIN:VEVENT")
	assert.Contains(t, body, "X-WR-CALNAME:Irrigation Orchard")
}

func TestUnknownAccount(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	for _, path := range []string{"/99999", "/99999.ics", "/99999,88888"} {
		rec := do(t, r, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "Invalid account", rec.Body.String(), path)
		assert.Empty(t, rec.Result().Cookies(), path)
	}
}

func TestMissingRegistry(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(t, r, "/12345")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server configuration error", rec.Body.String())
}

func TestRoot(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	rec := do(t, r, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hi.", rec.Body.String())

	rec = do(t, r, "/", &http.Cookie{Name: store.LastAccountCookie, Value: "12345"})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/12345", rec.Header().Get("Location"))

	rec = do(t, r, "/", &http.Cookie{Name: store.LastAccountCookie, Value: url.QueryEscape("12345,67890")})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/12345%2C67890", rec.Header().Get("Location"))
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	rec := do(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	do(t, r, "/12345")
	rec = do(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "irrigation_http_requests_total")
	assert.Contains(t, rec.Body.String(), "irrigation_upstream_requests_total")
}

func TestPanicRecovery(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))
	r.HandleFunc("/debug/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := do(t, r, "/debug/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Something went wrong", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

func TestRequestIDPropagation(t *testing.T) {
	r := newTestRouter(t, testRegistry(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
