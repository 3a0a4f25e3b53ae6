package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	measurements "aquatracking/internal/measurements/domain"
)

//go:embed metric_types.yaml
var defaultCatalog []byte

type document struct {
	MetricTypes []measurements.MetricType `yaml:"metric_types"`
}

// Default returns the built-in metric types.
func Default() ([]measurements.MetricType, error) {
	return Parse(defaultCatalog)
}

// Load reads metric types from path, or the built-in catalog when path is empty.
func Load(path string) ([]measurements.MetricType, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. Codes are upper-cased and must be unique.
func Parse(data []byte) ([]measurements.MetricType, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(doc.MetricTypes) == 0 {
		return nil, errors.New("catalog: no metric types")
	}
	seen := make(map[string]struct{}, len(doc.MetricTypes))
	out := make([]measurements.MetricType, 0, len(doc.MetricTypes))
	for _, t := range doc.MetricTypes {
		t.Code = strings.ToUpper(strings.TrimSpace(t.Code))
		t.Name = strings.TrimSpace(t.Name)
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, dup := seen[t.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate code %s", t.Code)
		}
		seen[t.Code] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// Saver persists metric types.
type Saver interface {
	Save(ctx context.Context, metricType *measurements.MetricType) error
}

// Seed upserts every metric type into the repository.
func Seed(ctx context.Context, repo Saver, types []measurements.MetricType) error {
	if repo == nil {
		return errors.New("catalog: nil repository")
	}
	for i := range types {
		if err := repo.Save(ctx, &types[i]); err != nil {
			return fmt.Errorf("catalog: seed %s: %w", types[i].Code, err)
		}
	}
	return nil
}
