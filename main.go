package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aquatracking/internal/alerts/cooldown"
	"aquatracking/internal/alerts/notify"
	"aquatracking/internal/auth"
	biotopes "aquatracking/internal/biotopes/domain"
	biotopememory "aquatracking/internal/biotopes/infrastructure/memory"
	biotoperepo "aquatracking/internal/biotopes/infrastructure/postgres"
	"aquatracking/internal/config"
	"aquatracking/internal/measurements/application"
	"aquatracking/internal/measurements/catalog"
	measurements "aquatracking/internal/measurements/domain"
	measurementmemory "aquatracking/internal/measurements/infrastructure/memory"
	measurementrepo "aquatracking/internal/measurements/infrastructure/postgres"
	measurementhttp "aquatracking/internal/measurements/interfaces/http"
	"aquatracking/internal/observability/logging"
	"aquatracking/internal/observability/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, logCloser := logging.New(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	types, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		logger.Fatalf("metric catalog error: %v", err)
	}

	st, err := openStorage(ctx, cfg, types, logger)
	if err != nil {
		logger.Fatalf("storage error: %v", err)
	}
	defer st.Close()

	if err := catalog.Seed(ctx, st.metricTypes, types); err != nil {
		logger.Fatalf("metric catalog seed error: %v", err)
	}

	tracker := cooldown.NewTracker()
	metrics.Init(st.db, logger, func() float64 { return float64(tracker.Len()) })
	go tracker.Run(ctx, cfg.Alerts.SweepInterval)

	dispatcher, err := buildDispatcher(cfg, logger)
	if err != nil {
		logger.Fatalf("notification error: %v", err)
	}
	handler, err := buildHandler(cfg, st, tracker, dispatcher, logger)
	if err != nil {
		logger.Fatalf("http wiring error: %v", err)
	}

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s (storage=%s)", cfg.HTTP.Addr, cfg.Storage.Driver)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http server error: %v", err)
		}
	case <-ctx.Done():
		logger.Printf("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Printf("notification drain error: %v", err)
	}
}

// buildHandler assembles the services and the routed, authenticated handler.
func buildHandler(cfg config.Config, st *storage, tracker *cooldown.Tracker, dispatcher notify.Dispatcher, logger *log.Logger) (http.Handler, error) {
	composer, err := notify.NewComposer(notify.WithSettingsURL(cfg.Alerts.SettingsURL))
	if err != nil {
		return nil, err
	}

	ingestion, err := application.NewIngestionService(
		st.measurements,
		st.subscriptions,
		st.metricTypes,
		st.owners,
		tracker,
		dispatcher,
		application.WithCooldownTTL(cfg.Alerts.Cooldown),
		application.WithComposer(composer),
		application.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	subscriptions, err := application.NewSubscriptionService(st.subscriptions, st.measurements, st.metricTypes)
	if err != nil {
		return nil, err
	}
	handler, err := measurementhttp.NewHandler(ingestion, subscriptions, st.metricTypes, auth.NewBiotopeChecker(st.biotopes), logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	handler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware(policy)
	return loggingMiddleware(authMiddleware.Wrap(router), logger), nil
}

type storage struct {
	db            *sql.DB
	measurements  measurements.MeasurementRepository
	subscriptions measurements.SubscriptionRepository
	metricTypes   measurements.MetricTypeRepository
	biotopes      biotopes.Repository
	owners        biotopes.OwnerDirectory
}

func (s *storage) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func openStorage(ctx context.Context, cfg config.Config, types []measurements.MetricType, logger *log.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Printf("storage: using in-memory repositories, data is lost on exit")
		store := measurementmemory.NewStore(types...)
		directory := biotopememory.NewDirectory()
		for _, seed := range cfg.Storage.Biotopes {
			kind := biotopes.Kind(strings.ToLower(seed.Kind))
			if kind == "" {
				kind = biotopes.KindAquarium
			}
			directory.Put(biotopes.Biotope{
				ID:        seed.ID,
				OwnerID:   seed.OwnerID,
				Name:      seed.Name,
				Kind:      kind,
				CreatedAt: time.Now().UTC(),
			}, seed.OwnerEmail)
		}
		logger.Printf("storage: registered %d in-memory biotopes", len(cfg.Storage.Biotopes))
		return &storage{
			measurements:  store.Measurements(),
			subscriptions: store.Subscriptions(),
			metricTypes:   store.MetricTypes(),
			biotopes:      directory,
			owners:        directory,
		}, nil
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	biotopeRepo := biotoperepo.NewBiotopeRepository(db)
	return &storage{
		db:            db,
		measurements:  measurementrepo.NewMeasurementRepository(db),
		subscriptions: measurementrepo.NewSubscriptionRepository(db),
		metricTypes:   measurementrepo.NewMetricTypeRepository(db),
		biotopes:      biotopeRepo,
		owners:        biotopeRepo,
	}, nil
}

func buildDispatcher(cfg config.Config, logger *log.Logger) (*notify.AsyncDispatcher, error) {
	var channels []notify.NamedDispatcher
	if cfg.Mail.Host != "" {
		mailChannel, err := notify.NewMailChannel(notify.MailConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			SSL:      cfg.Mail.SSL,
			From:     cfg.Mail.From,
		})
		if err != nil {
			return nil, err
		}
		channels = append(channels, notify.NamedDispatcher{Name: "mail", Dispatcher: mailChannel})
	} else {
		channels = append(channels, notify.NamedDispatcher{Name: "log", Dispatcher: notify.NewLogChannel(logger)})
	}
	if cfg.Alerts.WebhookURL != "" {
		webhook, err := notify.NewWebhookChannel(cfg.Alerts.WebhookURL)
		if err != nil {
			return nil, err
		}
		channels = append(channels, notify.NamedDispatcher{Name: "webhook", Dispatcher: webhook})
	}
	return notify.NewAsyncDispatcher(
		notify.NewMultiDispatcher(logger, channels...),
		notify.WithSendTimeout(cfg.Alerts.SendTimeout),
		notify.WithLogger(logger),
	)
}

func shutdownTimeout(cfg config.Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}
	return 10 * time.Second
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
