package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/pkg/auth"
	"github.com/xymail/xymail-backend/pkg/auth/session"
	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token, _ := mintTestToken(t, enums.RoleKnight)
	handler := Auth(testJWT, stubSessionVerifier{ok: false}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSessionStoreFailureIsDependencyError(t *testing.T) {
	token, _ := mintTestToken(t, enums.RoleKnight)
	handler := Auth(testJWT, stubSessionVerifier{err: errors.New("redis down")}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	token, userID := mintTestToken(t, enums.RoleDuke)

	var captured struct {
		user     string
		role     enums.Role
		accessID string
	}
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.accessID = AccessIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID.String() {
		t.Fatalf("expected user %s in context, got %q", userID, captured.user)
	}
	if captured.role != enums.RoleDuke {
		t.Fatalf("expected role duke got %s", captured.role)
	}
	if captured.accessID == "" {
		t.Fatal("expected access id in context")
	}
}

func mintTestToken(t *testing.T, role enums.Role) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, userID
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}
