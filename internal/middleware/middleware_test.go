package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"stowage/internal/auth"
	"stowage/internal/domain"
	"stowage/internal/httputil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

type stubVerifier struct{}

func (stubVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, domain.ErrUnauthorized
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}}, nil
}

func (stubVerifier) Close() error { return nil }

var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, httputil.GetUserID(r))
})

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(stubVerifier{}, discard())(echoUser)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{name: "valid token", path: "/api/folders", header: "Bearer good", status: http.StatusOK, body: "alice"},
		{name: "lowercase scheme", path: "/api/folders", header: "bearer good", status: http.StatusOK, body: "alice"},
		{name: "bad token", path: "/api/folders", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "missing header", path: "/api/folders", status: http.StatusUnauthorized},
		{name: "basic scheme", path: "/api/folders", header: "Basic good", status: http.StatusUnauthorized},
		{name: "public health", path: "/health", status: http.StatusOK, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestHeaderAuthMiddleware(t *testing.T) {
	h := HeaderAuthMiddleware()(echoUser)

	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	req.Header.Set(OwnerHeader, "bob")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/folders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecovery(t *testing.T) {
	h := Recovery(discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/folders", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRequestLoggerKeepsStatus(t *testing.T) {
	h := RequestLogger(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
