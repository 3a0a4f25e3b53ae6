package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	biotopes "aquatracking/internal/biotopes/domain"
	"aquatracking/internal/biotopes/infrastructure/memory"
)

func TestAuthMiddleware_NoUser(t *testing.T) {
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/biotopes/b1/measurements", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_UserInContext(t *testing.T) {
	policy := NewDefaultPolicy(nil, nil)
	mw := NewMiddleware(policy)
	var seen string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/biotopes/b1/measurements", nil)
	req.Header.Set(UserHeader, " user-1 ")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if seen != "user-1" {
		t.Fatalf("expected user-1 in context, got %q", seen)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/debug/"})
	mw := NewMiddleware(policy)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/metrics", "/debug/vars"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestBiotopeChecker(t *testing.T) {
	directory := memory.NewDirectory()
	directory.Put(biotopes.Biotope{ID: "b1", OwnerID: "user-1", Name: "Récif"}, "owner@example.com")
	checker := NewBiotopeChecker(directory)
	ctx := context.Background()

	if err := checker.EnsureBiotopeOwner(ctx, "user-1", "b1"); err != nil {
		t.Fatalf("expected owner access, got %v", err)
	}
	if err := checker.EnsureBiotopeOwner(ctx, "user-2", "b1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := checker.EnsureBiotopeOwner(ctx, "user-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := checker.EnsureBiotopeOwner(ctx, "", "b1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
