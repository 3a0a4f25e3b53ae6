package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"aquatracking/internal/alerts/cooldown"
	"aquatracking/internal/alerts/notify"
	"aquatracking/internal/auth"
	biotopes "aquatracking/internal/biotopes/domain"
	biotopememory "aquatracking/internal/biotopes/infrastructure/memory"
	"aquatracking/internal/measurements/application"
	measurements "aquatracking/internal/measurements/domain"
	"aquatracking/internal/measurements/infrastructure/memory"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (r *recordingDispatcher) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	return nil
}

func (r *recordingDispatcher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func newTestServer(t *testing.T) (http.Handler, *recordingDispatcher) {
	t.Helper()
	store := memory.NewStore(
		measurements.MetricType{Code: "TEMPERATURE", Name: "Température", Unit: "°C"},
		measurements.MetricType{Code: "PH", Name: "pH"},
	)
	directory := biotopememory.NewDirectory()
	directory.Put(biotopes.Biotope{ID: "b1", OwnerID: "user-1", Name: "Récif", Kind: biotopes.KindAquarium}, "owner@example.com")
	dispatcher := &recordingDispatcher{}
	logger := log.New(io.Discard, "", 0)

	ingestion, err := application.NewIngestionService(
		store.Measurements(), store.Subscriptions(), store.MetricTypes(),
		directory, cooldown.NewTracker(), dispatcher,
		application.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new ingestion service: %v", err)
	}
	subs, err := application.NewSubscriptionService(store.Subscriptions(), store.Measurements(), store.MetricTypes())
	if err != nil {
		t.Fatalf("new subscription service: %v", err)
	}
	handler, err := NewHandler(ingestion, subs, store.MetricTypes(), auth.NewBiotopeChecker(directory), logger)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	router := chi.NewRouter()
	router.Use(auth.NewMiddleware(auth.NewDefaultPolicy([]string{"/healthz"}, nil)).Wrap)
	handler.Register(router)
	return router, dispatcher
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
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

func TestRecordAndAlertFlow(t *testing.T) {
	h, dispatcher := newTestServer(t)

	resp := do(t, h, http.MethodPost, "/api/v1/biotopes/b1/subscriptions", "user-1",
		`{"measurement_type_code":"temperature","min":24,"max":28}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create subscription: expected 201, got %d %s", resp.Code, resp.Body.String())
	}

	resp = do(t, h, http.MethodPost, "/api/v1/biotopes/b1/measurements", "user-1",
		`{"measurement_type_code":"TEMPERATURE","value":29.5}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("record: expected 201, got %d %s", resp.Code, resp.Body.String())
	}
	var m measurements.Measurement
	if err := json.Unmarshal(resp.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode measurement: %v", err)
	}
	if m.ID == "" || m.Value != 29.5 {
		t.Fatalf("unexpected measurement %+v", m)
	}
	if dispatcher.Count() != 1 {
		t.Fatalf("expected one alert, got %d", dispatcher.Count())
	}

	resp = do(t, h, http.MethodGet, "/api/v1/biotopes/b1/measurements/last?type=TEMPERATURE", "user-1", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("last: expected 200, got %d", resp.Code)
	}

	resp = do(t, h, http.MethodGet, "/api/v1/biotopes/b1/subscriptions", "user-1", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list subscriptions: expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"last_measurement"`) || !strings.Contains(resp.Body.String(), m.ID) {
		t.Fatalf("expected last measurement in listing, got %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/api/v1/biotopes/b1/measurements/"+m.ID, "user-1", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), m.ID) {
		t.Fatalf("get: expected 200 with measurement, got %d %s", resp.Code, resp.Body.String())
	}

	resp = do(t, h, http.MethodDelete, "/api/v1/biotopes/b1/measurements/"+m.ID, "user-1", "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}

	resp = do(t, h, http.MethodGet, "/api/v1/biotopes/b1/measurements/"+m.ID, "user-1", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.Code)
	}
}

func TestRecordErrors(t *testing.T) {
	h, _ := newTestServer(t)
	cases := []struct {
		name string
		user string
		path string
		body string
		want int
	}{
		{"no identity", "", "/api/v1/biotopes/b1/measurements", `{"measurement_type_code":"PH","value":7}`, http.StatusUnauthorized},
		{"other owner", "user-2", "/api/v1/biotopes/b1/measurements", `{"measurement_type_code":"PH","value":7}`, http.StatusForbidden},
		{"unknown biotope", "user-1", "/api/v1/biotopes/nope/measurements", `{"measurement_type_code":"PH","value":7}`, http.StatusNotFound},
		{"unknown metric", "user-1", "/api/v1/biotopes/b1/measurements", `{"measurement_type_code":"CO2","value":7}`, http.StatusNotFound},
		{"missing value", "user-1", "/api/v1/biotopes/b1/measurements", `{"measurement_type_code":"PH"}`, http.StatusBadRequest},
		{"bad json", "user-1", "/api/v1/biotopes/b1/measurements", `{`, http.StatusBadRequest},
		{"bad time", "user-1", "/api/v1/biotopes/b1/measurements", `{"measurement_type_code":"PH","value":7,"measured_at":"yesterday"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := do(t, h, http.MethodPost, tc.path, tc.user, tc.body)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d %s", tc.name, tc.want, resp.Code, resp.Body.String())
		}
	}
}

func TestSubscriptionPatchAndConflict(t *testing.T) {
	h, _ := newTestServer(t)
	body := `{"measurement_type_code":"PH","min":6.5,"max":7.5}`
	if resp := do(t, h, http.MethodPost, "/api/v1/biotopes/b1/subscriptions", "user-1", body); resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.Code)
	}
	if resp := do(t, h, http.MethodPost, "/api/v1/biotopes/b1/subscriptions", "user-1", body); resp.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.Code)
	}

	resp := do(t, h, http.MethodPatch, "/api/v1/biotopes/b1/subscriptions/PH", "user-1", `{"min":null,"order":3}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d %s", resp.Code, resp.Body.String())
	}
	var sub measurements.Subscription
	if err := json.Unmarshal(resp.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub.Min != nil || sub.Max == nil || *sub.Max != 7.5 || sub.Order != 3 {
		t.Fatalf("unexpected patched subscription %+v", sub)
	}

	if resp := do(t, h, http.MethodPatch, "/api/v1/biotopes/b1/subscriptions/PH", "user-1", `{"max":"high"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad patch: expected 400, got %d", resp.Code)
	}
	if resp := do(t, h, http.MethodPatch, "/api/v1/biotopes/b1/subscriptions/PH", "user-1", `{"min":9}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("inverted bounds: expected 400, got %d", resp.Code)
	}
	if resp := do(t, h, http.MethodDelete, "/api/v1/biotopes/b1/subscriptions/PH", "user-1", ""); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}
	if resp := do(t, h, http.MethodDelete, "/api/v1/biotopes/b1/subscriptions/PH", "user-1", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.Code)
	}
}

func TestExportAndMetricTypes(t *testing.T) {
	h, _ := newTestServer(t)
	if resp := do(t, h, http.MethodPost, "/api/v1/biotopes/b1/measurements", "user-1", `{"measurement_type_code":"PH","value":7.2}`); resp.Code != http.StatusCreated {
		t.Fatalf("record: expected 201, got %d", resp.Code)
	}

	resp := do(t, h, http.MethodGet, "/api/v1/biotopes/b1/measurements/export.pdf", "user-1", "")
	if resp.Code != http.StatusOK || resp.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf export: got %d %s", resp.Code, resp.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf payload")
	}

	resp = do(t, h, http.MethodGet, "/api/v1/biotopes/b1/measurements/export.xlsx?types=PH", "user-1", "")
	if resp.Code != http.StatusOK || resp.Body.Len() == 0 {
		t.Fatalf("xlsx export: got %d", resp.Code)
	}

	resp = do(t, h, http.MethodGet, "/api/v1/biotopes/b1/measurements?from=bad", "user-1", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad range: expected 400, got %d", resp.Code)
	}

	resp = do(t, h, http.MethodGet, "/api/v1/metric-types", "user-1", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("metric types: expected 200, got %d", resp.Code)
	}
	var types []measurements.MetricType
	if err := json.Unmarshal(resp.Body.Bytes(), &types); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("expected 2 metric types, got %d", len(types))
	}
}
