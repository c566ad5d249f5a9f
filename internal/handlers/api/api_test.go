package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"leadrelay/internal/botcheck"
	"leadrelay/internal/db"
	"leadrelay/internal/feed"
	"leadrelay/internal/models"
	"leadrelay/internal/quotes"
)

// memStore implements every storage interface the API handlers use.
type memStore struct {
	mu       sync.Mutex
	quotes   map[uuid.UUID]*models.QuoteSubmission
	audits   []*models.AuditEvent
	signals  []*models.StoredSignal
	failNext error
}

func newMemStore() *memStore {
	return &memStore{quotes: make(map[uuid.UUID]*models.QuoteSubmission)}
}

func (s *memStore) InsertQuote(_ context.Context, q *models.QuoteSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		return s.failNext
	}
	q.ID = uuid.New()
	q.Status = models.QuoteStatusNew
	q.CreatedAt = time.Now()
	s.quotes[q.ID] = q
	return nil
}

func (s *memStore) InsertAuditEvent(_ context.Context, e *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, e)
	return nil
}

func (s *memStore) GetQuote(_ context.Context, table string, id uuid.UUID) (*models.QuoteSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok || q.Table != table {
		return nil, db.ErrQuoteNotFound
	}
	return q, nil
}

func (s *memStore) ListQuotes(_ context.Context, table, status string, limit int) ([]models.QuoteSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QuoteSubmission
	for _, q := range s.quotes {
		if q.Table == table && (status == "" || q.Status == status) && len(out) < limit {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (s *memStore) UpdateQuoteStatus(_ context.Context, table string, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[id]
	if !ok || q.Table != table {
		return db.ErrQuoteNotFound
	}
	q.Status = status
	return nil
}

func (s *memStore) ListAuditEvents(_ context.Context, eventType string, limit int) ([]models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditEvent
	for _, e := range s.audits {
		if (eventType == "" || e.EventType == eventType) && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *memStore) InsertSignalEvent(_ context.Context, sig *models.StoredSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		return s.failNext
	}
	sig.ID = uuid.New()
	s.signals = append(s.signals, sig)
	return nil
}

func (s *memStore) ListSignalEvents(_ context.Context, label string, limit int) ([]models.StoredSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StoredSignal
	for _, sig := range s.signals {
		if (label == "" || sig.Label == label) && len(out) < limit {
			out = append(out, *sig)
		}
	}
	return out, nil
}

func (s *memStore) Ping(context.Context) error { return s.failNext }

type stubVerifier struct{ err error }

func (v stubVerifier) Verify(context.Context, string, string) error { return v.err }

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Referer", "https://agency.example/quote/auto")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	raw, _ := io.ReadAll(resp.Body)

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, env
}

func newQuoteApp(store *memStore, verifyErr error) *fiber.App {
	router := quotes.NewRouter(nil)
	guard := quotes.NewDuplicateGuard(nil, 0)
	relay := quotes.NewRelay(router, store, stubVerifier{err: verifyErr}, guard, nil,
		quotes.Options{PhoneRegion: "US", HoneypotField: "website"})

	app := fiber.New()
	h := NewQuoteHandler(relay)
	app.Post("/api/quotes", h.Submit)
	return app
}

func TestQuoteHandler_Submit(t *testing.T) {
	store := newMemStore()
	app := newQuoteApp(store, nil)

	resp, env := doRequest(t, app, http.MethodPost, "/api/quotes",
		`{"quoteType":"home","formData":{"fullName":"Jane Doe","email":"jane@example.com","ssn":"123-45-6789"}}`)

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, error = %q", resp.StatusCode, env.Error)
	}

	var got models.QuoteSubmitResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID == nil || !got.Accepted || got.Table != "homeowners_quotes" || got.QuoteType != "homeowners" {
		t.Errorf("response = %+v", got)
	}

	q := store.quotes[*got.ID]
	if q == nil {
		t.Fatal("quote not stored")
	}
	if _, ok := q.Payload["ssn"]; ok {
		t.Error("ssn stored")
	}
	if q.Metadata["source_page"] != "/quote/auto" {
		t.Errorf("source_page = %v", q.Metadata["source_page"])
	}
	if q.FirstName == nil || *q.FirstName != "Jane" {
		t.Errorf("FirstName = %v", q.FirstName)
	}
}

func TestQuoteHandler_Submit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		verifyErr  error
		storeErr   error
		wantStatus int
		wantError  string
	}{
		{"malformed body", `{`, nil, nil, fiber.StatusBadRequest, "invalid request body"},
		{"unknown type", `{"quote_type":"pet","email":"a@example.com"}`, nil, nil, fiber.StatusBadRequest, "unsupported quote type"},
		{"missing contact", `{"quote_type":"auto","first_name":"Jane"}`, nil, nil, fiber.StatusBadRequest, "email or phone is required"},
		{"captcha missing", `{"quote_type":"auto","email":"a@example.com"}`, botcheck.ErrTokenMissing, nil, fiber.StatusBadRequest, "captcha token is required"},
		{"captcha rejected", `{"quote_type":"auto","email":"a@example.com"}`, botcheck.ErrVerificationFailed, nil, fiber.StatusForbidden, "captcha verification failed"},
		{"captcha down", `{"quote_type":"auto","email":"a@example.com"}`, botcheck.ErrUnavailable, nil, fiber.StatusServiceUnavailable, "captcha verification unavailable"},
		{"store failure", `{"quote_type":"auto","email":"a@example.com"}`, nil, errors.New("boom"), fiber.StatusInternalServerError, "failed to store submission"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.failNext = tt.storeErr
			app := newQuoteApp(store, tt.verifyErr)

			resp, env := doRequest(t, app, http.MethodPost, "/api/quotes", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if env.Status != "error" || env.Error != tt.wantError {
				t.Errorf("envelope = %+v, want error %q", env, tt.wantError)
			}
		})
	}
}

func TestQuoteHandler_Submit_Honeypot(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"top-level form", `{"quote_type":"auto","email":"bot@example.com","website":"spam"}`},
		{"honeypot beside form object", `{"quote_type":"auto","website":"spam","formData":{"email":"bot@example.com"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			app := newQuoteApp(store, nil)

			resp, env := doRequest(t, app, http.MethodPost, "/api/quotes", tt.body)

			if resp.StatusCode != fiber.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var got models.QuoteSubmitResponse
			_ = json.Unmarshal(env.Data, &got)
			if !got.Accepted || got.ID != nil {
				t.Errorf("response = %+v", got)
			}
			if len(store.quotes) != 0 {
				t.Error("honeypot submission stored")
			}
		})
	}
}

func newSignalApp(store *memStore) *fiber.App {
	app := fiber.New()
	h := NewSignalHandler(store)
	app.Post("/api/signals/classify", h.Classify)
	app.Get("/api/admin/signals", h.List)
	return app
}

func TestSignalHandler_Classify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLabel  string
	}{
		{"call click", `{"event_type":"Call_Click"}`, fiber.StatusOK, models.ReadinessCallNow},
		{"form with phone", `{"event_type":"form_submit","has_phone":true}`, fiber.StatusOK, models.ReadinessCallNow},
		{"quote page email", `{"event_type":"page_view","page":"/quote/life","has_email":true}`, fiber.StatusOK, models.ReadinessFollowUp},
		{"blog", `{"event_type":"blog_read"}`, fiber.StatusOK, models.ReadinessNurture},
		{"bounce", `{"event_type":"page_view"}`, fiber.StatusOK, models.ReadinessLowIntent},
		{"missing type", `{"page":"/"}`, fiber.StatusBadRequest, ""},
		{"negative count", `{"event_type":"page_view","session_count":-1}`, fiber.StatusBadRequest, ""},
		{"malformed", `nope`, fiber.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			resp, env := doRequest(t, newSignalApp(store), http.MethodPost, "/api/signals/classify", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, env.Error)
			}
			if tt.wantLabel == "" {
				return
			}
			var got models.ClassifyResponse
			_ = json.Unmarshal(env.Data, &got)
			if got.Label != tt.wantLabel {
				t.Errorf("label = %q, want %q", got.Label, tt.wantLabel)
			}
			if len(store.signals) != 1 || store.signals[0].Label != tt.wantLabel {
				t.Errorf("stored signals = %+v", store.signals)
			}
		})
	}
}

func TestSignalHandler_Classify_StoreFailureStillAnswers(t *testing.T) {
	store := newMemStore()
	store.failNext = errors.New("db down")

	resp, env := doRequest(t, newSignalApp(store), http.MethodPost, "/api/signals/classify", `{"event_type":"call_click"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got models.ClassifyResponse
	_ = json.Unmarshal(env.Data, &got)
	if got.Label != models.ReadinessCallNow {
		t.Errorf("label = %q", got.Label)
	}
}

func TestSignalHandler_List(t *testing.T) {
	store := newMemStore()
	app := newSignalApp(store)
	doRequest(t, app, http.MethodPost, "/api/signals/classify", `{"event_type":"call_click"}`)
	doRequest(t, app, http.MethodPost, "/api/signals/classify", `{"event_type":"blog_read"}`)

	resp, env := doRequest(t, app, http.MethodGet, "/api/admin/signals?label=nurture", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got []models.StoredSignal
	_ = json.Unmarshal(env.Data, &got)
	if len(got) != 1 || got[0].Label != models.ReadinessNurture {
		t.Errorf("signals = %+v", got)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/api/admin/signals?label=hot", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("unknown label status = %d", resp.StatusCode)
	}
}

func TestFeedHandler_Get(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer upstream.Close()
	u, _ := url.Parse(upstream.URL)

	proxy := feed.NewProxy(feed.Config{
		DefaultURL:   upstream.URL + "/feed",
		AllowedHosts: []string{u.Hostname()},
	}, nil)
	app := fiber.New()
	app.Get("/api/rss", NewFeedHandler(proxy).Get)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"default feed", "/api/rss", fiber.StatusOK},
		{"explicit allowed url", "/api/rss?url=" + url.QueryEscape(upstream.URL+"/feed"), fiber.StatusOK},
		{"other host", "/api/rss?url=" + url.QueryEscape("https://evil.example/feed"), fiber.StatusForbidden},
		{"bad scheme", "/api/rss?url=" + url.QueryEscape("javascript:alert(1)"), fiber.StatusBadRequest},
		{"upstream 404", "/api/rss?url=" + url.QueryEscape(upstream.URL+"/missing"), fiber.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodGet, tt.target, "")
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, env.Error)
			}
			if tt.wantStatus != fiber.StatusOK {
				return
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/rss+xml" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=300" {
				t.Errorf("Cache-Control = %q", cc)
			}
		})
	}
}

func newAdminApp(store *memStore) *fiber.App {
	app := fiber.New()
	h := NewAdminHandler(store, quotes.NewRouter(nil))
	app.Use(func(c fiber.Ctx) error {
		c.Locals("staff_email", "agent@agency.example")
		return c.Next()
	})
	app.Get("/api/admin/quotes", h.ListQuotes)
	app.Get("/api/admin/quotes/:type/:id", h.GetQuote)
	app.Patch("/api/admin/quotes/:type/:id/status", h.UpdateStatus)
	app.Get("/api/admin/audit", h.ListAudit)
	return app
}

func seedQuote(t *testing.T, store *memStore, table, quoteType string) uuid.UUID {
	t.Helper()
	email := "jane@example.com"
	q := &models.QuoteSubmission{Table: table, QuoteType: quoteType, Email: &email}
	if err := store.InsertQuote(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	return q.ID
}

func TestAdminHandler_Quotes(t *testing.T) {
	store := newMemStore()
	app := newAdminApp(store)
	id := seedQuote(t, store, "auto_quotes", "auto")
	seedQuote(t, store, "life_quotes", "life")

	resp, env := doRequest(t, app, http.MethodGet, "/api/admin/quotes?type=car", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list []models.QuoteSubmission
	_ = json.Unmarshal(env.Data, &list)
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("list = %+v", list)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/api/admin/quotes/auto/"+id.String(), "")
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/api/admin/quotes/life/"+id.String(), "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("get from wrong table status = %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/api/admin/quotes/auto/not-a-uuid", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad id status = %d", resp.StatusCode)
	}
}

func TestAdminHandler_UpdateStatus(t *testing.T) {
	store := newMemStore()
	app := newAdminApp(store)
	id := seedQuote(t, store, "auto_quotes", "auto")

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{"valid", "/api/admin/quotes/auto/" + id.String() + "/status", `{"status":"contacted"}`, fiber.StatusOK},
		{"unknown status", "/api/admin/quotes/auto/" + id.String() + "/status", `{"status":"won"}`, fiber.StatusBadRequest},
		{"missing status", "/api/admin/quotes/auto/" + id.String() + "/status", `{}`, fiber.StatusBadRequest},
		{"not found", "/api/admin/quotes/auto/" + uuid.NewString() + "/status", `{"status":"quoted"}`, fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := doRequest(t, app, http.MethodPatch, tt.target, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, env.Error)
			}
		})
	}

	if store.quotes[id].Status != models.QuoteStatusContacted {
		t.Errorf("stored status = %q", store.quotes[id].Status)
	}

	resp, env := doRequest(t, app, http.MethodGet, "/api/admin/audit?event_type="+models.AuditQuoteStatusChanged, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("audit status = %d", resp.StatusCode)
	}
	var events []models.AuditEvent
	_ = json.Unmarshal(env.Data, &events)
	if len(events) != 1 || events[0].Actor != "agent@agency.example" {
		t.Errorf("audit events = %+v", events)
	}
}

func TestHealthHandler(t *testing.T) {
	store := newMemStore()
	app := fiber.New()
	app.Get("/healthz", NewHealthHandler(store).Healthz)

	resp, env := doRequest(t, app, http.MethodGet, "/healthz", "")
	if resp.StatusCode != fiber.StatusOK || env.Status != "ok" {
		t.Errorf("healthy: status = %d, env = %+v", resp.StatusCode, env)
	}

	store.failNext = errors.New("down")
	resp, _ = doRequest(t, app, http.MethodGet, "/healthz", "")
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d", resp.StatusCode)
	}
}

func TestQueryLimit(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(queryLimit(c))
	})

	tests := map[string]string{
		"/":            "50",
		"/?limit=10":   "10",
		"/?limit=0":    "50",
		"/?limit=abc":  "50",
		"/?limit=9999": "200",
	}
	for target, want := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != want {
			t.Errorf("queryLimit(%s) = %s, want %s", target, body, want)
		}
	}
}
