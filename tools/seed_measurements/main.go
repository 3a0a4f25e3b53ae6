package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	baseURL   string
	userID    string
	biotopeID string
	metric    string
	base      float64
	amplitude float64
	count     int
	step      time.Duration
	startDate string
}

func main() {
	cfg := parseConfig()
	if cfg.baseURL == "" {
		log.Fatal("base-url is required")
	}
	if cfg.userID == "" || cfg.biotopeID == "" {
		log.Fatal("user-id and biotope-id are required")
	}
	if cfg.count <= 0 {
		log.Fatal("count must be > 0")
	}
	if cfg.step <= 0 {
		log.Fatal("step must be > 0")
	}

	start, err := parseStartDate(cfg.startDate, cfg.step, cfg.count)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}

	ctx := context.Background()
	log.Printf("seeding measurements: biotope=%s metric=%s count=%d step=%s", cfg.biotopeID, cfg.metric, cfg.count, cfg.step)
	sent, err := postMeasurements(ctx, cfg, start)
	if err != nil {
		log.Fatalf("seed measurements after %d: %v", sent, err)
	}
	log.Printf("seeded %d measurements", sent)
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.userID, "user-id", envOrDefault("SEED_USER_ID", ""), "owner user id sent in X-User-ID")
	flag.StringVar(&cfg.biotopeID, "biotope-id", envOrDefault("SEED_BIOTOPE_ID", ""), "target biotope id")
	flag.StringVar(&cfg.metric, "metric", envOrDefault("SEED_METRIC", "TEMPERATURE"), "metric type code")
	flag.Float64Var(&cfg.base, "base", envOrFloat("SEED_BASE", 25), "center value")
	flag.Float64Var(&cfg.amplitude, "amplitude", envOrFloat("SEED_AMPLITUDE", 1.5), "daily swing around the center value")
	flag.IntVar(&cfg.count, "count", envOrInt("SEED_COUNT", 48), "number of measurements")
	flag.DurationVar(&cfg.step, "step", envOrDuration("SEED_STEP", time.Hour), "time between measurements")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("START_DATE", ""), "first timestamp (YYYY-MM-DD or RFC3339), defaults to count*step ago")
	flag.Parse()
	cfg.metric = strings.ToUpper(strings.TrimSpace(cfg.metric))
	return cfg
}

func parseStartDate(value string, step time.Duration, count int) (time.Time, error) {
	if value == "" {
		return time.Now().UTC().Add(-step * time.Duration(count)).Truncate(time.Minute), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// sample follows a daily sine curve so thresholds near the edges get crossed.
func sample(base, amplitude float64, at time.Time) float64 {
	hour := float64(at.Hour()) + float64(at.Minute())/60
	value := base + amplitude*math.Sin(2*math.Pi*hour/24)
	return math.Round(value*100) / 100
}

func postMeasurements(ctx context.Context, cfg config, start time.Time) (int, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	url := strings.TrimRight(cfg.baseURL, "/") + "/api/v1/biotopes/" + cfg.biotopeID + "/measurements"
	sent := 0
	for i := 0; i < cfg.count; i++ {
		at := start.Add(cfg.step * time.Duration(i))
		body := map[string]any{
			"measurement_type_code": cfg.metric,
			"value":                 sample(cfg.base, cfg.amplitude, at),
			"measured_at":           at.Format(time.RFC3339),
		}
		payload, _ := json.Marshal(body)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return sent, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", cfg.userID)
		resp, err := client.Do(req)
		if err != nil {
			return sent, err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			return sent, fmt.Errorf("record measurement at %s: http %d", at.Format(time.RFC3339), resp.StatusCode)
		}
		sent++
	}
	return sent, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
