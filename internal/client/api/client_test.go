package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

func TestClient_LoginAndMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "alice@x.com", body["email"])
			_ = json.NewEncoder(w).Encode(AuthResult{Token: "tok", User: &domain.User{ID: "u1", Email: "alice@x.com"}})
		case "/auth/me":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(domain.User{ID: "u1", Name: "Alice"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	res, err := c.Login(context.Background(), "alice@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "u1", res.User.ID)

	me, err := c.Me(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", me.Name)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid token"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"field cannot be updated: admin"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)

	_, err := c.Me(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid token", apiErr.Message)

	_, err = c.UpdateMe(context.Background(), "tok", map[string]any{"admin": true})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestClient_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).DashboardStats(context.Background(), "tok")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}
