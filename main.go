package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"oee-cloud/internal/audit"
	"oee-cloud/internal/auth"
	oeeapp "oee-cloud/internal/oee/application"
	oee "oee-cloud/internal/oee/domain"
	oeerepo "oee-cloud/internal/oee/infrastructure/postgres"
	oeehttp "oee-cloud/internal/oee/interfaces/http"
	oeekafka "oee-cloud/internal/oee/interfaces/kafka"
	"oee-cloud/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	engineCfg, err := oeeapp.LoadConfig()
	if err != nil {
		logger.Fatalf("oee config error: %v", err)
	}
	loc, err := engineCfg.Location()
	if err != nil {
		logger.Fatalf("oee timezone error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo, err := audit.NewRepository(db)
	if err != nil {
		logger.Fatalf("audit repo error: %v", err)
	}
	store := oeerepo.NewStore(db, loc)

	metricsService, err := oeeapp.NewMetricsService(store, engineCfg, oee.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("oee metrics service error: %v", err)
	}
	ingestService, err := oeeapp.NewIngestService(store, logger)
	if err != nil {
		logger.Fatalf("oee ingest service error: %v", err)
	}

	metricsHandler, err := oeehttp.NewMetricsHandler(metricsService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("oee handler error: %v", err)
	}
	deviceIngest, err := oeehttp.NewIngestHandler(ingestService, "http", nil, logger)
	if err != nil {
		logger.Fatalf("oee ingest handler error: %v", err)
	}
	backfillIngest, err := oeehttp.NewIngestHandler(ingestService, "backfill", auditRepo, logger)
	if err != nil {
		logger.Fatalf("oee backfill handler error: %v", err)
	}
	auditHandler, err := oeehttp.NewAuditHandler(auditRepo, logger)
	if err != nil {
		logger.Fatalf("oee audit handler error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.KafkaBrokers) > 0 {
		reader, err := oeekafka.NewReader(oeekafka.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		})
		if err != nil {
			logger.Fatalf("kafka reader error: %v", err)
		}
		consumer, err := oeekafka.NewConsumer(reader, ingestService, cfg.KafkaMaxRetry, logger)
		if err != nil {
			logger.Fatalf("kafka consumer error: %v", err)
		}
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Printf("kafka consumer stopped: %v", err)
			}
		}()
		logger.Printf("kafka consuming topic=%s group=%s", cfg.KafkaTopic, cfg.KafkaGroupID)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, cfg.PlantID)
	gatewayKeys, err := auth.ParseGatewayKeys(cfg.IngestGatewayKeys)
	if err != nil {
		logger.Fatalf("ingest gateway keys error: %v", err)
	}
	if cfg.IngestSecret != "" {
		gatewayKeys["default"] = []byte(cfg.IngestSecret)
	}
	ingestAuth := auth.NewIngestAuthMiddleware(gatewayKeys, time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/state-events", ingestAuth.Wrap(deviceIngest))
	mux.Handle("/api/v1/oee", metricsHandler)
	mux.Handle("/api/v1/oee/", metricsHandler)
	mux.Handle("/api/v1/oee/state-events", backfillIngest)
	mux.Handle("/api/v1/oee/audit", auditHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s timezone=%s", cfg.HTTPAddr, loc)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

type config struct {
	DatabaseURL       string
	DBMaxOpenConns    int
	HTTPAddr          string
	JWTSecret         string
	PlantID           string
	IngestSecret      string
	IngestGatewayKeys string
	IngestSkewSeconds int
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	KafkaMaxRetry     time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		DBMaxOpenConns:    getenvIntDefault("DB_MAX_OPEN_CONNS", 20),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		PlantID:           getenvDefault("PLANT_ID", ""),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestGatewayKeys: getenvDefault("INGEST_GATEWAY_KEYS", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		KafkaBrokers:      splitList(getenvDefault("KAFKA_BROKERS", "")),
		KafkaTopic:        getenvDefault("KAFKA_STATE_TOPIC", "oee.state-events"),
		KafkaGroupID:      getenvDefault("KAFKA_GROUP_ID", "oee-cloud"),
		KafkaMaxRetry:     getenvDuration("KAFKA_MAX_RETRY", time.Minute),
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
