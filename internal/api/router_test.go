package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/bizdesk/crm-api/internal/api/handler"
	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/service"
	"github.com/bizdesk/crm-api/internal/infrastructure/db/memory"
	rediscache "github.com/bizdesk/crm-api/internal/infrastructure/db/redis"
	"github.com/bizdesk/crm-api/internal/infrastructure/hashing"
)

type testServer struct {
	e      *echo.Echo
	store  *memory.Store
	tokens *service.TokenService
	redis  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := rediscache.Connect(context.Background(), rediscache.Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("redis connect: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	store := memory.NewStore()
	hasher := hashing.NewBcrypt(bcrypt.MinCost)
	creds := service.NewCredentialStore(store.Credentials, hasher, log)
	tokens := service.NewTokenService("test-secret", "crm", time.Hour)
	throttle := rediscache.NewLoginThrottle(rdb, 3, time.Minute)
	cache := rediscache.NewStatsCache(rdb, time.Minute)

	e := NewRouter(Dependencies{
		Log:         log,
		Auth:        service.NewAuthService(creds, tokens, throttle, log),
		Credentials: creds,
		Tokens:      tokens,
		Clients:     service.NewRecordService[domain.Client, *domain.Client]("client", store.Clients, cache, log),
		Employees:   service.NewRecordService[domain.Employee, *domain.Employee]("employee", store.Employees, cache, log),
		Projects:    service.NewRecordService[domain.Project, *domain.Project]("project", store.Projects, cache, log),
		Revenue:     service.NewRecordService[domain.Revenue, *domain.Revenue]("revenue", store.Revenue, cache, log),
		Dashboard:   service.NewDashboardService(store, cache, log),
		Ready: map[string]handler.PingFunc{
			"redis": rediscache.Pinger(rdb),
		},
	})
	return &testServer{e: e, store: store, tokens: tokens, redis: mr}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: invalid json %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (s *testServer) register(t *testing.T, email, role string) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/auth/register", "",
		`{"email":"`+email+`","password":"pw123","name":"Test","role":"`+role+`"}`)
	if code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d %v", email, code, body)
	}
	return body["token"].(string)
}

func TestAuthScenario(t *testing.T) {
	s := newTestServer(t)

	// Register.
	code, body := s.do(t, http.MethodPost, "/auth/register", "",
		`{"email":"alice@x.com","password":"pw123","name":"Alice"}`)
	if code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %v", code, body)
	}
	regToken, _ := body["token"].(string)
	user, _ := body["user"].(map[string]any)
	if regToken == "" || user == nil {
		t.Fatalf("register: missing token or user: %v", body)
	}
	aliceID, _ := user["id"].(string)
	if user["role"] != "employee" {
		t.Fatalf("expected default role employee, got %v", user["role"])
	}

	stored, err := s.store.Credentials.FindByEmail(context.Background(), "alice@x.com")
	if err != nil {
		t.Fatalf("stored credential: %v", err)
	}
	if stored.PasswordHash == "pw123" || strings.Contains(stored.PasswordHash, "pw123") {
		t.Fatalf("plaintext password stored")
	}

	// Wrong password.
	code, body = s.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@x.com","password":"nope"}`)
	if code != http.StatusUnauthorized || body["message"] != domain.ErrInvalidCredentials.Error() {
		t.Fatalf("wrong password: expected 401 invalid credentials, got %d %v", code, body)
	}

	// Unknown email yields the same response.
	code2, body2 := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"ghost@x.com","password":"pw123"}`)
	if code2 != code || body2["message"] != body["message"] {
		t.Fatalf("unknown email response differs: %d %v vs %d %v", code2, body2, code, body)
	}

	// Correct password, case-insensitive email.
	code, body = s.do(t, http.MethodPost, "/auth/login", "", `{"email":"ALICE@x.com","password":"pw123"}`)
	if code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d %v", code, body)
	}
	token, _ := body["token"].(string)
	sub, err := s.tokens.Parse(token)
	if err != nil || sub != aliceID {
		t.Fatalf("token subject %q (err %v), want %q", sub, err, aliceID)
	}

	// Profile.
	code, body = s.do(t, http.MethodGet, "/auth/me", token, "")
	if code != http.StatusOK || body["id"] != aliceID || body["email"] != "alice@x.com" {
		t.Fatalf("me: unexpected %d %v", code, body)
	}
	for key := range body {
		if strings.Contains(strings.ToLower(key), "password") {
			t.Fatalf("me leaked %q", key)
		}
	}

	// Disallowed update.
	code, body = s.do(t, http.MethodPut, "/auth/me", token, `{"admin":true}`)
	if code != http.StatusBadRequest {
		t.Fatalf("invalid field: expected 400, got %d %v", code, body)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, domain.ErrInvalidField.Error()) {
		t.Fatalf("invalid field: unexpected message %q", msg)
	}

	// Allowed update.
	code, body = s.do(t, http.MethodPut, "/auth/me", token, `{"name":"Alice B","password":"pw456"}`)
	if code != http.StatusOK || body["name"] != "Alice B" {
		t.Fatalf("update: unexpected %d %v", code, body)
	}
	code, _ = s.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@x.com","password":"pw456"}`)
	if code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", code)
	}
}

func TestAuth_DuplicateRegistration(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "bob@x.com", "")

	code, body := s.do(t, http.MethodPost, "/auth/register", "",
		`{"email":"BOB@x.com","password":"other","name":"Bob 2"}`)
	if code != http.StatusBadRequest || body["message"] != domain.ErrDuplicateEmail.Error() {
		t.Fatalf("expected 400 duplicate, got %d %v", code, body)
	}
}

func TestAuth_TokenRejections(t *testing.T) {
	s := newTestServer(t)
	foreign, _, _ := service.NewTokenService("other", "crm", time.Hour).Issue("x")
	ghost, _, _ := s.tokens.Issue("no-such-user")

	cases := map[string]struct {
		header string
		want   string
	}{
		"missing":   {"", domain.ErrMissingToken.Error()},
		"scheme":    {"Basic abc", domain.ErrInvalidToken.Error()},
		"foreign":   {"Bearer " + foreign, domain.ErrInvalidToken.Error()},
		"no-user":   {"Bearer " + ghost, domain.ErrUserNotFound.Error()},
		"malformed": {"Bearer a.b.c", domain.ErrInvalidToken.Error()},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if tc.header != "" {
			req.Header.Set(echo.HeaderAuthorization, tc.header)
		}
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
		var body map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body["message"] != tc.want {
			t.Fatalf("%s: expected message %q, got %q", name, tc.want, body["message"])
		}
	}
}

func TestAuth_LoginThrottle(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol@x.com", "")

	for i := 0; i < 3; i++ {
		code, _ := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"carol@x.com","password":"bad"}`)
		if code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, code)
		}
	}
	code, body := s.do(t, http.MethodPost, "/auth/login", "", `{"email":"carol@x.com","password":"pw123"}`)
	if code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d %v", code, body)
	}

	s.redis.FastForward(2 * time.Minute)
	code, _ = s.do(t, http.MethodPost, "/auth/login", "", `{"email":"carol@x.com","password":"pw123"}`)
	if code != http.StatusOK {
		t.Fatalf("expected login after window, got %d", code)
	}
}

func TestAuth_LoginThrottle_ConcurrentGuesses(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "dora@x.com", "")

	const n = 30
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/auth/login",
				strings.NewReader(`{"email":"dora@x.com","password":"bad"}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			s.e.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for code := range codes {
		counts[code]++
	}
	if counts[http.StatusUnauthorized] != 3 || counts[http.StatusTooManyRequests] != n-3 {
		t.Fatalf("expected 3 password checks and %d throttled, got %v", n-3, counts)
	}
}

func TestRecords_RoleBasedAccess(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@x.com", "admin")
	manager := s.register(t, "manager@x.com", "manager")
	employee := s.register(t, "staff@x.com", "employee")

	client := `{"name":"Acme","email":"Ops@Acme.com","phone":"555","company":"Acme"}`

	code, _ := s.do(t, http.MethodPost, "/v1/clients", employee, client)
	if code != http.StatusForbidden {
		t.Fatalf("employee create: expected 403, got %d", code)
	}

	code, body := s.do(t, http.MethodPost, "/v1/clients", manager, client)
	if code != http.StatusCreated {
		t.Fatalf("manager create: expected 201, got %d %v", code, body)
	}
	id, _ := body["id"].(string)
	if id == "" || body["email"] != "ops@acme.com" || body["status"] != "prospect" {
		t.Fatalf("unexpected created client: %v", body)
	}

	code, body = s.do(t, http.MethodGet, "/v1/clients/"+id, employee, "")
	if code != http.StatusOK || body["name"] != "Acme" {
		t.Fatalf("employee read: unexpected %d %v", code, body)
	}

	code, body = s.do(t, http.MethodGet, "/v1/clients?status=prospect&limit=5", employee, "")
	if code != http.StatusOK || body["total"] != float64(1) || body["limit"] != float64(5) {
		t.Fatalf("list: unexpected %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodPut, "/v1/clients/"+id, manager,
		`{"name":"Acme Corp","email":"ops@acme.com","phone":"555","company":"Acme","status":"active"}`)
	if code != http.StatusOK {
		t.Fatalf("manager update: expected 200, got %d", code)
	}

	code, _ = s.do(t, http.MethodDelete, "/v1/clients/"+id, manager, "")
	if code != http.StatusForbidden {
		t.Fatalf("manager delete: expected 403, got %d", code)
	}
	code, _ = s.do(t, http.MethodDelete, "/v1/clients/"+id, admin, "")
	if code != http.StatusNoContent {
		t.Fatalf("admin delete: expected 204, got %d", code)
	}
	code, body = s.do(t, http.MethodGet, "/v1/clients/"+id, admin, "")
	if code != http.StatusNotFound {
		t.Fatalf("deleted record: expected 404, got %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodGet, "/v1/clients", "", "")
	if code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: expected 401, got %d", code)
	}
}

func TestRecords_Validation(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@x.com", "admin")

	code, body := s.do(t, http.MethodPost, "/v1/projects", admin,
		`{"name":"Site","description":"d","client_id":"c1","start_date":"2025-03-01T00:00:00Z","end_date":"2025-02-01T00:00:00Z"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodPost, "/v1/revenue", admin, `{"client_id":"c1","amount":0,"description":"x"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", code)
	}
}

func TestDashboard_StatsCacheInvalidatedOnWrite(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(t, "admin@x.com", "admin")

	code, body := s.do(t, http.MethodGet, "/v1/dashboard/stats", admin, "")
	if code != http.StatusOK || body["clients"] != float64(0) {
		t.Fatalf("stats: unexpected %d %v", code, body)
	}
	if !s.redis.Exists("dashboard:stats") {
		t.Fatalf("expected stats to be cached")
	}

	code, _ = s.do(t, http.MethodPost, "/v1/revenue", admin,
		`{"client_id":"c1","amount":250.5,"description":"retainer","type":"retainer"}`)
	if code != http.StatusCreated {
		t.Fatalf("create revenue: expected 201, got %d", code)
	}
	if s.redis.Exists("dashboard:stats") {
		t.Fatalf("expected cache invalidated after write")
	}

	code, body = s.do(t, http.MethodGet, "/v1/dashboard/stats", admin, "")
	if code != http.StatusOK || body["revenue"] != 250.5 {
		t.Fatalf("stats after write: unexpected %d %v", code, body)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodGet, "/health", "", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("liveness: unexpected %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodGet, "/health/ready", "", "")
	if code != http.StatusOK {
		t.Fatalf("readiness: expected 200, got %d", code)
	}

	s.redis.Close()
	code, body = s.do(t, http.MethodGet, "/health/ready", "", "")
	if code != http.StatusServiceUnavailable || body["status"] != "degraded" {
		t.Fatalf("readiness with redis down: unexpected %d %v", code, body)
	}
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.Nop())
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("mongo: connection string contains password=hunter2")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["message"] != "internal server error" {
		t.Fatalf("unexpected message %q", body["message"])
	}
}
