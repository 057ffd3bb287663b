package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/lostfound/internal/api"
	"github.com/your-org/lostfound/internal/api/handlers"
	"github.com/your-org/lostfound/internal/api/ws"
	"github.com/your-org/lostfound/internal/config"
	"github.com/your-org/lostfound/internal/finder"
	"github.com/your-org/lostfound/internal/match"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/observability"
	"github.com/your-org/lostfound/internal/queue"
	"github.com/your-org/lostfound/internal/similarity"
	"github.com/your-org/lostfound/internal/storage"
	"github.com/your-org/lostfound/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting lost & found API",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"matcher", cfg.Matcher.URL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Report store
	store, err := storage.OpenReportStore(ctx, cfg)
	if err != nil {
		slog.Error("open report store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub fed from the REPORTS stream
	hub := ws.NewHub()
	go hub.Run(ctx)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create report consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeReportEvents(ctx, "api-ws", func(ctx context.Context, msg jetstream.Msg) error {
		var evt models.ReportEvent
		if err := json.Unmarshal(msg.Data(), &evt); err != nil {
			slog.Error("unmarshal report event", "error", err)
			return nil // Don't retry on unmarshal errors
		}
		hub.BroadcastEvent(dto.NewWSEvent(&evt))
		return nil
	})
	if err != nil {
		slog.Warn("start report consumer", "error", err)
	}

	// Match flow
	correlator, err := match.NewCorrelator(match.PrefixResolver(cfg.Server.PublicBaseURL))
	if err != nil {
		slog.Error("create correlator", "error", err)
		os.Exit(1)
	}
	svc, err := finder.New(similarity.NewClient(cfg.Matcher), store, correlator, producer,
		finder.WithSessionLimits(cfg.Server.MaxSessions, cfg.Server.SessionTTL))
	if err != nil {
		slog.Error("create finder", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		APIKey:        cfg.Server.APIKey,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Store:         store,
		Objects:       minioStore,
		Publisher:     producer,
		Finder:        svc,
		Hub:           hub,
		Checks: map[string]handlers.Pinger{
			string(cfg.Store.Driver): store,
			"minio":                  minioStore,
			"nats":                   producer,
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Matcher.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
