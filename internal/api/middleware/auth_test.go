package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/service"
)

type stubResolver struct {
	users map[string]*domain.User
	err   error
}

func (s *stubResolver) FindByID(_ context.Context, id string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func newAuthFixture() (*service.TokenService, *stubResolver) {
	tokens := service.NewTokenService("secret", "crm", time.Hour)
	resolver := &stubResolver{users: map[string]*domain.User{
		"user-1": {ID: "user-1", Email: "alice@x.com", Name: "Alice", Role: domain.RoleAdmin},
	}}
	return tokens, resolver
}

func runAuth(t *testing.T, header string, tokens *service.TokenService, resolver *stubResolver) (bool, *domain.User, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var (
		called bool
		user   *domain.User
	)
	handler := Auth(tokens, resolver)(func(c echo.Context) error {
		called = true
		user = CurrentUser(c)
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	return called, user, err
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tokens, resolver := newAuthFixture()
	signed, _, err := tokens.Issue("user-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	called, user, err := runAuth(t, "Bearer "+signed, tokens, resolver)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if user == nil || user.ID != "user-1" || user.Email != "alice@x.com" {
		t.Fatalf("unexpected user in context: %+v", user)
	}
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	tokens, resolver := newAuthFixture()
	signed, _, _ := tokens.Issue("user-1")

	if called, _, err := runAuth(t, "bearer "+signed, tokens, resolver); err != nil || !called {
		t.Fatalf("expected lower-case scheme to pass, err=%v", err)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tokens, resolver := newAuthFixture()
	expired := service.NewTokenService("secret", "crm", time.Nanosecond)
	expiredToken, _, _ := expired.Issue("user-1")
	time.Sleep(time.Millisecond)
	foreign, _, _ := service.NewTokenService("other", "crm", time.Hour).Issue("user-1")
	ghost, _, _ := tokens.Issue("user-404")

	cases := []struct {
		name   string
		header string
		want   error
	}{
		{"missing header", "", domain.ErrMissingToken},
		{"basic scheme", "Basic abc", domain.ErrInvalidToken},
		{"no token", "Bearer", domain.ErrInvalidToken},
		{"blank token", "Bearer   ", domain.ErrInvalidToken},
		{"garbage", "Bearer not-a-token", domain.ErrInvalidToken},
		{"expired", "Bearer " + expiredToken, domain.ErrInvalidToken},
		{"wrong key", "Bearer " + foreign, domain.ErrInvalidToken},
		{"unknown subject", "Bearer " + ghost, domain.ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called, _, err := runAuth(t, tc.header, tokens, resolver)
			if called {
				t.Fatalf("should not reach next")
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthMiddleware_ResolverFailure(t *testing.T) {
	tokens, resolver := newAuthFixture()
	signed, _, _ := tokens.Issue("user-1")
	boom := errors.New("db down")
	resolver.err = boom

	called, _, err := runAuth(t, "Bearer "+signed, tokens, resolver)
	if called {
		t.Fatalf("should not reach next")
	}
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected wrapped infrastructure error, got %v", err)
	}
}

func TestCurrentUser_Unset(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if CurrentUser(c) != nil {
		t.Fatalf("expected nil user")
	}
}
