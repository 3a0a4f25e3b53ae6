package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"aquatracking/internal/auth"
	"aquatracking/internal/measurements/application"
	measurements "aquatracking/internal/measurements/domain"
	"aquatracking/internal/measurements/interfaces/export"
)

const timeLayout = time.RFC3339

// Handler provides measurement and subscription HTTP endpoints.
type Handler struct {
	ingestion     *application.IngestionService
	subscriptions *application.SubscriptionService
	catalog       measurements.MetricTypeCatalog
	owners        auth.BiotopeOwnerChecker
	logger        *log.Logger
}

// NewHandler constructs a handler. A nil owner checker disables ownership checks.
func NewHandler(ingestion *application.IngestionService, subscriptions *application.SubscriptionService, catalog measurements.MetricTypeCatalog, owners auth.BiotopeOwnerChecker, logger *log.Logger) (*Handler, error) {
	if ingestion == nil || subscriptions == nil {
		return nil, errors.New("measurements handler: nil service")
	}
	if catalog == nil {
		return nil, errors.New("measurements handler: nil metric catalog")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		ingestion:     ingestion,
		subscriptions: subscriptions,
		catalog:       catalog,
		owners:        owners,
		logger:        logger,
	}, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/v1/metric-types", h.handleListMetricTypes)
	r.Route("/api/v1/biotopes/{biotopeID}", func(r chi.Router) {
		r.Use(h.requireOwner)
		r.Route("/measurements", func(r chi.Router) {
			r.Post("/", h.handleRecord)
			r.Get("/", h.handleList)
			r.Get("/last", h.handleLast)
			r.Get("/export.xlsx", h.handleExport)
			r.Get("/export.pdf", h.handleExport)
			r.Get("/{measurementID}", h.handleGetMeasurement)
			r.Delete("/{measurementID}", h.handleDeleteMeasurement)
		})
		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", h.handleListSubscriptions)
			r.Post("/", h.handleCreateSubscription)
			r.Get("/{code}", h.handleGetSubscription)
			r.Patch("/{code}", h.handleUpdateSubscription)
			r.Delete("/{code}", h.handleDeleteSubscription)
		})
	})
}

func (h *Handler) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.owners != nil {
			userID := auth.UserIDFromContext(r.Context())
			if err := h.owners.EnsureBiotopeOwner(r.Context(), userID, chi.URLParam(r, "biotopeID")); err != nil {
				h.respondError(w, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type recordRequest struct {
	MetricCode string   `json:"measurement_type_code"`
	Value      *float64 `json:"value"`
	MeasuredAt string   `json:"measured_at"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.MetricCode == "" || req.Value == nil {
		http.Error(w, "measurement_type_code and value are required", http.StatusBadRequest)
		return
	}
	cmd := application.RecordCommand{
		BiotopeID:  chi.URLParam(r, "biotopeID"),
		MetricCode: normalizeCode(req.MetricCode),
		Value:      *req.Value,
	}
	if req.MeasuredAt != "" {
		at, err := time.Parse(timeLayout, req.MeasuredAt)
		if err != nil {
			http.Error(w, "invalid measured_at", http.StatusBadRequest)
			return
		}
		cmd.MeasuredAt = at
	}
	m, err := h.ingestion.RecordMeasurement(r.Context(), cmd)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query, err := parseMeasurementQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.ingestion.ListMeasurements(r.Context(), query)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleLast(w http.ResponseWriter, r *http.Request) {
	code := normalizeCode(r.URL.Query().Get("type"))
	if code == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}
	m, err := h.ingestion.LastMeasurement(r.Context(), chi.URLParam(r, "biotopeID"), code)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if m == nil {
		http.Error(w, "no measurement", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	query, err := parseMeasurementQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if query, err = query.Normalize(time.Now().UTC()); err != nil {
		h.respondError(w, err)
		return
	}
	list, err := h.ingestion.ListMeasurements(r.Context(), query)
	if err != nil {
		h.respondError(w, err)
		return
	}
	types, err := h.catalog.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	report := export.Report{
		BiotopeID:    query.BiotopeID,
		From:         query.From,
		To:           query.To,
		MetricTypes:  make(map[string]measurements.MetricType, len(types)),
		Measurements: list,
	}
	for _, t := range types {
		report.MetricTypes[t.Code] = t
	}

	var (
		payload     []byte
		contentType string
		ext         string
	)
	if strings.HasSuffix(r.URL.Path, ".pdf") {
		payload, err = export.BuildPDF(report)
		contentType = "application/pdf"
		ext = "pdf"
	} else {
		payload, err = export.BuildXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		ext = "xlsx"
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=measurements-%s.%s", query.BiotopeID, ext))
	_, _ = w.Write(payload)
}

func (h *Handler) handleGetMeasurement(w http.ResponseWriter, r *http.Request) {
	m, err := h.ingestion.GetMeasurement(r.Context(), chi.URLParam(r, "biotopeID"), chi.URLParam(r, "measurementID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	err := h.ingestion.DeleteMeasurement(r.Context(), chi.URLParam(r, "biotopeID"), chi.URLParam(r, "measurementID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMetricTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.catalog.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	views, err := h.subscriptions.ListWithLastMeasurement(r.Context(), chi.URLParam(r, "biotopeID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

type createSubscriptionRequest struct {
	MetricCode string   `json:"measurement_type_code"`
	Order      *int     `json:"order"`
	Min        *float64 `json:"min"`
	Max        *float64 `json:"max"`
}

func (h *Handler) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.MetricCode == "" {
		http.Error(w, "measurement_type_code is required", http.StatusBadRequest)
		return
	}
	sub, err := h.subscriptions.Create(r.Context(), application.CreateSubscriptionCommand{
		BiotopeID:  chi.URLParam(r, "biotopeID"),
		MetricCode: normalizeCode(req.MetricCode),
		Order:      req.Order,
		Min:        req.Min,
		Max:        req.Max,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptions.Get(r.Context(), chi.URLParam(r, "biotopeID"), normalizeCode(chi.URLParam(r, "code")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sub, err := h.subscriptions.Update(r.Context(), chi.URLParam(r, "biotopeID"), normalizeCode(chi.URLParam(r, "code")), patch)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptions.Delete(r.Context(), chi.URLParam(r, "biotopeID"), normalizeCode(chi.URLParam(r, "code"))); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodePatch tells an absent field (unchanged) from an explicit null (cleared).
func decodePatch(r *http.Request) (measurements.SubscriptionPatch, error) {
	var patch measurements.SubscriptionPatch
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return patch, errors.New("invalid json")
	}
	if raw, ok := fields["order"]; ok {
		var order int
		if err := json.Unmarshal(raw, &order); err != nil {
			return patch, errors.New("order must be an integer")
		}
		patch.Order = &order
	}
	for name, target := range map[string]*measurements.ThresholdPatch{"min": &patch.Min, "max": &patch.Max} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var value *float64
		if err := json.Unmarshal(raw, &value); err != nil {
			return patch, fmt.Errorf("%s must be a number or null", name)
		}
		*target = measurements.ThresholdPatch{Set: true, Value: value}
	}
	return patch, nil
}

func parseMeasurementQuery(r *http.Request) (measurements.MeasurementQuery, error) {
	query := measurements.MeasurementQuery{BiotopeID: chi.URLParam(r, "biotopeID")}
	values := r.URL.Query()
	if raw := values.Get("types"); raw != "" {
		for _, code := range strings.Split(raw, ",") {
			if code = normalizeCode(code); code != "" {
				query.MetricCodes = append(query.MetricCodes, code)
			}
		}
	}
	var err error
	if query.From, err = parseTimeQuery(values.Get("from"), "from"); err != nil {
		return query, err
	}
	if query.To, err = parseTimeQuery(values.Get("to"), "to"); err != nil {
		return query, err
	}
	return query, nil
}

func parseTimeQuery(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	value, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s", name)
	}
	return value.UTC(), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, auth.ErrNotFound):
		http.Error(w, "biotope not found", http.StatusNotFound)
	case errors.Is(err, measurements.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, measurements.ErrConflict), errors.Is(err, measurements.ErrMetricTypeInUse):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, measurements.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Printf("measurements handler: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
