package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"alphagate/entity"
	"alphagate/impl/auth"
	"alphagate/impl/captcha"
	"alphagate/impl/core"
	"alphagate/impl/registry"
	"alphagate/internal/captchastore"
	"alphagate/internal/config"
	"alphagate/internal/database"
	"alphagate/internal/export"
	"alphagate/lib/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answerStore remembers every issued answer so tests can solve challenges.
type answerStore struct {
	*captchastore.Memory
	mu      sync.Mutex
	answers map[string]string
}

func (s *answerStore) Put(ctx context.Context, ch *entity.CaptchaChallenge, ttl time.Duration) error {
	s.mu.Lock()
	s.answers[ch.ID] = ch.Text
	s.mu.Unlock()
	return s.Memory.Put(ctx, ch, ttl)
}

func (s *answerStore) answer(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[id]
}

type env struct {
	router http.Handler
	db     *database.Memory
	store  *answerStore
	clock  *clock.Fake
}

func newEnv(t *testing.T, rateLimit bool) *env {
	t.Helper()
	conf := &config.Config{}
	conf.RateLimit.Enabled = rateLimit
	return newEnvWithConfig(t, conf)
}

func newEnvWithConfig(t *testing.T, conf *config.Config) *env {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFake(time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC))
	db := database.NewMemory()
	store := &answerStore{Memory: captchastore.NewMemory(), answers: make(map[string]string)}

	issuer := captcha.New(store, clk, captcha.Config{Length: 5, TTL: 300 * time.Second, Grace: 2 * time.Second}, log)
	reg := registry.New(db, clk, "alpha@", log)
	authService := auth.New(db, "test-secret", 8*time.Hour, clk, log)
	require.NoError(t, authService.EnsureAdmin(context.Background(), "root@alpha.io", "s3cret", "Root"))

	handler := core.New(db, issuer, reg, authService, clk, log)
	handler.SetExporter(export.New(db, t.TempDir(), clk, log))
	handler.SetBookingCode("ALPHA-2025")
	t.Cleanup(func() { handler.Drain(context.Background()) })

	return &env{router: NewRouter(conf, log, handler), db: db, store: store, clock: clk}
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doFrom(t, "192.0.2.1:1234", "", method, path, token, body)
}

// doFrom sends a request from peer with an optional X-Forwarded-For value.
func (e *env) doFrom(t *testing.T, peer, forwarded, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = peer
	req.Header.Set("Content-Type", "application/json")
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// captcha issues a challenge over HTTP and reads its answer back from the store.
func (e *env) captcha(t *testing.T) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/captcha", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[entity.CaptchaView](t, rec)
	assert.Equal(t, 300, view.ExpiresInSeconds)
	assert.True(t, strings.HasPrefix(view.SvgData, "data:image/svg+xml;base64,"))

	text := e.store.answer(view.ID)
	require.NotEmpty(t, text)
	return view.ID, text
}

func (e *env) adminToken(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/admin/login", "", map[string]string{"username": "Root@alpha.io", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[entity.TokenResponse](t, rec).Token
}

func loginBody(code, captchaId, answer string) map[string]string {
	return map[string]string{
		"name":          "Jane",
		"countryCode":   "+91",
		"mobile":        "9876543210",
		"email":         "jane@example.com",
		"city":          "Pune",
		"alphaCode":     code,
		"captchaId":     captchaId,
		"captchaAnswer": answer,
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t, false)
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]any](t, rec)["success"].(bool))
}

func TestNotFound(t *testing.T) {
	e := newEnv(t, false)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/nope", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, e.do(t, http.MethodDelete, "/login", "", nil).Code)
}

func TestGenerateAndLogin(t *testing.T) {
	e := newEnv(t, false)
	token := e.adminToken(t)

	rec := e.do(t, http.MethodPost, "/admin/generate-code", token, map[string]any{"expiresInDays": 1, "note": "press"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code := decode[entity.CodeResponse](t, rec)
	assert.True(t, code.Success)
	assert.True(t, strings.HasPrefix(code.Code, "alpha@"))

	id, text := e.captcha(t)
	rec = e.do(t, http.MethodPost, "/login", "", loginBody(code.Code, id, strings.ToLower(text)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[entity.LoginResult](t, rec)
	assert.True(t, result.Success)
	assert.True(t, result.AlphaAccepted)
	assert.Equal(t, entity.MessageCodeAccepted, result.Message)

	id, text = e.captcha(t)
	rec = e.do(t, http.MethodPost, "/login", "", loginBody(code.Code, id, text))
	require.Equal(t, http.StatusOK, rec.Code)
	result = decode[entity.LoginResult](t, rec)
	assert.False(t, result.AlphaAccepted)
	assert.Equal(t, entity.MessageCodeRejected, result.Message)

	rec = e.do(t, http.MethodGet, "/admin/logins", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]entity.LoginRecord](t, rec)
	require.Len(t, records, 2)
	assert.False(t, records[0].Accepted)
	assert.True(t, records[1].Accepted)
}

func TestLoginCaptchaFailures(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodPost, "/login", "", loginBody("alpha@x", "unknown", "AAAAA"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Captcha expired", decode[map[string]any](t, rec)["message"])

	id, _ := e.captcha(t)
	rec = e.do(t, http.MethodPost, "/login", "", loginBody("alpha@x", id, "wrong"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Captcha invalid", decode[map[string]any](t, rec)["message"])

	// consumed by the failed attempt
	rec = e.do(t, http.MethodPost, "/login", "", loginBody("alpha@x", id, "wrong"))
	assert.Equal(t, "Captcha expired", decode[map[string]any](t, rec)["message"])

	id, text := e.captcha(t)
	e.clock.Advance(301 * time.Second)
	rec = e.do(t, http.MethodPost, "/login", "", loginBody("alpha@x", id, text))
	assert.Equal(t, "Captcha expired", decode[map[string]any](t, rec)["message"])

	records, err := e.db.ListLoginRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoginMissingFields(t *testing.T) {
	e := newEnv(t, false)
	id, text := e.captcha(t)
	body := loginBody("alpha@x", id, text)
	delete(body, "city")

	rec := e.do(t, http.MethodPost, "/login", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 1, e.store.Len(), "captcha must survive a rejected body")
}

func TestRequestPassAndApprove(t *testing.T) {
	e := newEnv(t, false)
	token := e.adminToken(t)

	questions := map[string]string{}
	for i := 1; i <= 10; i++ {
		questions[fmt.Sprintf("q%d", i)] = "answer"
	}
	body := map[string]any{
		"name":        "Jane",
		"countryCode": "+91",
		"mobile":      "9876543210",
		"email":       "jane@example.com",
		"city":        "Pune",
		"questions":   questions,
	}
	rec := e.do(t, http.MethodPost, "/request-pass", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Request saved", decode[map[string]any](t, rec)["message"])

	rec = e.do(t, http.MethodGet, "/admin/requests", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	requests := decode[[]entity.AccessRequest](t, rec)
	require.Len(t, requests, 1)
	assert.False(t, requests[0].Approved)

	path := "/admin/approve-request/" + requests[0].ID.Hex()
	rec = e.do(t, http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code := decode[entity.CodeResponse](t, rec)
	assert.True(t, code.Success)

	stored, err := e.db.GetAccessCode(context.Background(), code.Code)
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", stored.IssuedToMobile)
	assert.Equal(t, "root@alpha.io", stored.IssuedBy)

	rec = e.do(t, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/admin/approve-request/000000000000000000000000", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestPassRequiresAnswers(t *testing.T) {
	e := newEnv(t, false)
	rec := e.do(t, http.MethodPost, "/request-pass", "", map[string]any{
		"name":        "Jane",
		"countryCode": "+91",
		"mobile":      "9876543210",
		"email":       "jane@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	e := newEnv(t, false)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/admin/requests"},
		{http.MethodGet, "/admin/logins"},
		{http.MethodGet, "/admin/export"},
		{http.MethodPost, "/admin/generate-code"},
		{http.MethodPost, "/admin/approve-request/000000000000000000000000"},
	} {
		rec := e.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
		rec = e.do(t, route.method, route.path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}

	rec := e.do(t, http.MethodPost, "/admin/login", "", map[string]string{"email": "root@alpha.io", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExport(t *testing.T) {
	e := newEnv(t, false)
	token := e.adminToken(t)

	rec := e.do(t, http.MethodGet, "/admin/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="alpha_export.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestBooking(t *testing.T) {
	e := newEnv(t, false)
	body := map[string]string{
		"name":        "Jane",
		"countryCode": "+91",
		"mobile":      "9876543210",
		"email":       "jane@example.com",
		"bookingCode": "wrong",
		"bookingDate": "2025-05-01",
	}
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/booking", "", body).Code)

	body["bookingCode"] = "ALPHA-2025"
	rec := e.do(t, http.MethodPost, "/booking", "", body)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	delete(body, "bookingDate")
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/booking", "", body).Code)
}

func TestRateLimitedLogin(t *testing.T) {
	e := newEnv(t, true)
	var last int
	for i := 0; i < 6; i++ {
		last = e.do(t, http.MethodPost, "/login", "", map[string]string{}).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", "", nil).Code)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	e := newEnv(t, true)
	var last int
	for i := 0; i < 6; i++ {
		forwarded := fmt.Sprintf("198.51.100.%d", i+1)
		last = e.doFrom(t, "192.0.2.7:5000", forwarded, http.MethodPost, "/login", "", map[string]string{}).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestLoginRecordIPBehindTrustedProxy(t *testing.T) {
	conf := &config.Config{}
	conf.Listen.TrustedProxies = []string{"192.0.2.0/24"}
	e := newEnvWithConfig(t, conf)

	id, text := e.captcha(t)
	rec := e.doFrom(t, "192.0.2.10:443", "203.0.113.9, 192.0.2.11", http.MethodPost, "/login", "", loginBody("alpha@none", id, text))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	id, text = e.captcha(t)
	rec = e.doFrom(t, "198.51.100.3:443", "203.0.113.9", http.MethodPost, "/login", "", loginBody("alpha@none", id, text))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	records, err := e.db.ListLoginRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	ips := []string{records[0].IP, records[1].IP}
	assert.ElementsMatch(t, []string{"203.0.113.9", "198.51.100.3"}, ips)
}
