package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSampleStaysWithinAmplitude(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 48; i++ {
		v := sample(25, 1.5, start.Add(time.Duration(i)*30*time.Minute))
		if v < 23.5 || v > 26.5 {
			t.Fatalf("sample %d out of range: %v", i, v)
		}
	}
}

func TestPostMeasurementsSendsHeaderAndPayload(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/api/v1/biotopes/b1/measurements" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-User-ID") != "u1" {
			t.Errorf("missing user header")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["measurement_type_code"] != "PH" {
			t.Errorf("unexpected metric %v", body["measurement_type_code"])
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cfg := config{baseURL: srv.URL + "/", userID: "u1", biotopeID: "b1", metric: "PH", base: 7, amplitude: 0.3, count: 3, step: time.Hour}
	sent, err := postMeasurements(context.Background(), cfg, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if sent != 3 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 posts, sent=%d calls=%d", sent, calls)
	}
}

func TestPostMeasurementsStopsOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config{baseURL: srv.URL, userID: "u1", biotopeID: "b1", metric: "PH", count: 5, step: time.Hour}
	sent, err := postMeasurements(context.Background(), cfg, time.Now().UTC())
	if err == nil {
		t.Fatalf("expected error")
	}
	if sent != 0 {
		t.Fatalf("expected 0 sent, got %d", sent)
	}
}
