package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	apihttp "iot-collector/internal/api/http"
	"iot-collector/internal/audit"
	"iot-collector/internal/auth"
	"iot-collector/internal/eventing"
	"iot-collector/internal/eventing/eventbus"
	eventingrepo "iot-collector/internal/eventing/infrastructure/postgres"
	"iot-collector/internal/mapping"
	"iot-collector/internal/observability/metrics"
	"iot-collector/internal/telemetry/application"
	"iot-collector/internal/telemetry/application/events"
	telemetrypostgres "iot-collector/internal/telemetry/infrastructure/postgres"
	ingesthttp "iot-collector/internal/telemetry/interfaces/http"
	mqttsource "iot-collector/internal/telemetry/interfaces/mqtt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	var table *mapping.Table
	if cfg.MappingFile != "" {
		table, err = mapping.LoadTable(cfg.MappingFile)
		if err != nil {
			logger.Fatalf("mapping table error: %v", err)
		}
	}
	resolver := mapping.NewResolver(table)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.MessageReceived{})
	registry.Register(events.PointsDecoded{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, baseBus)

	messageRepo := telemetrypostgres.NewMessageRepository(db)
	pointRepo := telemetrypostgres.NewPointRepository(db)
	pointQuery := telemetrypostgres.NewPointQuery(db)

	decoder, err := application.NewDecodeService(resolver, pointRepo, publisher, logger,
		application.WithEquipmentType(cfg.EquipmentType))
	if err != nil {
		logger.Fatalf("decode service error: %v", err)
	}
	ingestService, err := application.NewIngestService(messageRepo, decoder, publisher, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}

	eventing.Subscribe(baseBus, eventbus.EventTypeOf[events.PointsDecoded](), "collector.log", func(ctx context.Context, event any) error {
		evt, ok := event.(events.PointsDecoded)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("points decoded: station=%s message=%s points=%d", evt.StationID, evt.MessageID, evt.Points)
		return nil
	}, processedStore)

	ingestHandler, err := ingesthttp.NewIngestHandler(ingestService, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	var sources []*mqttsource.Source
	if cfg.SourcesConfig != "" {
		sourceConfigs, err := mqttsource.LoadSources(cfg.SourcesConfig)
		if err != nil {
			logger.Fatalf("sources config error: %v", err)
		}
		for _, sourceCfg := range sourceConfigs {
			source, err := mqttsource.NewSource(sourceCfg, ingestService, logger)
			if err != nil {
				logger.Fatalf("mqtt source error: %v", err)
			}
			if err := source.Start(); err != nil {
				logger.Fatalf("mqtt start error: %v", err)
			}
			sources = append(sources, source)
		}
	}
	defer func() {
		for _, source := range sources {
			source.Stop()
		}
	}()

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/iot/message", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/points/latest", apihttp.NewPointsHandler(pointQuery))
	mux.Handle("/api/v1/stations", apihttp.NewStationsHandler(pointQuery))
	mux.Handle("/api/v1/exports/points.xlsx", apihttp.NewExportPointsXLSXHandler(pointQuery, auditRepo))
	mux.Handle("/api/v1/exports/points.pdf", apihttp.NewExportPointsPDFHandler(pointQuery, auditRepo))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		for _, source := range sources {
			source.Stop()
		}
		_ = server.Close()
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	EquipmentType     string
	MappingFile       string
	SourcesConfig     string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		EquipmentType:     getenvDefault("EQUIPMENT_TYPE", "battery"),
		MappingFile:       getenvDefault("MAPPING_CONFIG", ""),
		SourcesConfig:     getenvDefault("SOURCES_CONFIG", ""),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
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
