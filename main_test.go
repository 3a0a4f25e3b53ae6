package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"aquatracking/internal/alerts/cooldown"
	"aquatracking/internal/alerts/notify"
	"aquatracking/internal/auth"
	"aquatracking/internal/config"
	"aquatracking/internal/measurements/catalog"
)

type capturingDispatcher struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (d *capturingDispatcher) Send(_ context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return nil
}

func (d *capturingDispatcher) sent() []notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Message(nil), d.messages...)
}

func newMemoryApp(t *testing.T) (http.Handler, *capturingDispatcher) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	cfg := config.Config{
		Storage: config.StorageConfig{
			Driver: config.DriverMemory,
			Biotopes: []config.BiotopeSeed{
				{ID: "b1", OwnerID: "user-1", OwnerEmail: "owner@example.com", Name: "Récif", Kind: "Aquarium"},
			},
		},
		Alerts: config.AlertsConfig{Cooldown: time.Hour, SweepInterval: time.Minute},
	}
	types, err := catalog.Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	st, err := openStorage(context.Background(), cfg, types, logger)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	dispatcher := &capturingDispatcher{}
	handler, err := buildHandler(cfg, st, cooldown.NewTracker(), dispatcher, logger)
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	return handler, dispatcher
}

func request(h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set(auth.UserHeader, user)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestMemoryDriverServesSeededBiotope(t *testing.T) {
	h, dispatcher := newMemoryApp(t)

	resp := request(h, http.MethodPost, "/api/v1/biotopes/b1/subscriptions", "user-1",
		`{"measurement_type_code":"PH","min":6.5,"max":7.5}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create subscription: expected 201, got %d %s", resp.Code, resp.Body.String())
	}

	resp = request(h, http.MethodPost, "/api/v1/biotopes/b1/measurements", "user-1",
		`{"measurement_type_code":"PH","value":8.1}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("record: expected 201, got %d %s", resp.Code, resp.Body.String())
	}

	sent := dispatcher.sent()
	if len(sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(sent))
	}
	if sent[0].To != "owner@example.com" || !strings.Contains(sent[0].Body, "Récif") {
		t.Fatalf("unexpected alert %+v", sent[0])
	}
}

func TestMemoryDriverGuardsBiotopes(t *testing.T) {
	h, _ := newMemoryApp(t)

	body := `{"measurement_type_code":"PH","value":7}`
	if resp := request(h, http.MethodPost, "/api/v1/biotopes/b1/measurements", "user-2", body); resp.Code != http.StatusForbidden {
		t.Fatalf("foreign user: expected 403, got %d", resp.Code)
	}
	if resp := request(h, http.MethodPost, "/api/v1/biotopes/b9/measurements", "user-1", body); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown biotope: expected 404, got %d", resp.Code)
	}
	if resp := request(h, http.MethodPost, "/api/v1/biotopes/b1/measurements", "", body); resp.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", resp.Code)
	}
	if resp := request(h, http.MethodGet, "/healthz", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.Code)
	}
}
