package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/lostfound/internal/api"
	"github.com/your-org/lostfound/internal/api/handlers"
	"github.com/your-org/lostfound/internal/config"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/observability"
	"github.com/your-org/lostfound/internal/queue"
	"github.com/your-org/lostfound/internal/storage"
	"github.com/your-org/lostfound/internal/vision"
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

	slog.Info("starting image matcher",
		"port", cfg.Vision.Port,
		"index", cfg.Vision.Index,
		"workers", cfg.Vision.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	modelPath := filepath.Join(cfg.Vision.ModelsDir, cfg.Vision.ModelFile)
	slog.Info("loading embedding model", "path", modelPath)
	embedder, err := vision.NewEmbedder(modelPath, nil)
	if err != nil {
		slog.Error("load embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	checks := map[string]handlers.Pinger{}

	// Embedding index
	var index vision.Index
	switch cfg.Vision.Index {
	case config.IndexPgvector:
		db, err := storage.NewPostgresStore(cfg.Database)
		if err != nil {
			slog.Error("connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("migrate postgres", "error", err)
			os.Exit(1)
		}
		index = vision.NewPgvectorIndex(db)
		checks["postgres"] = db
	default:
		index = vision.NewMemoryIndex()
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}
	checks["minio"] = minioStore

	matcher := vision.NewMatcher(embedder, index, minioStore, cfg.Vision)

	go func() {
		start := time.Now()
		added, err := matcher.Backfill(ctx)
		if err != nil {
			slog.Error("backfill index", "error", err)
			return
		}
		slog.Info("index backfill done", "added", added, "duration", time.Since(start).String())
	}()

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	checks["nats"] = producer

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	// Index new uploads
	err = consumer.ConsumeImages(ctx, "matcher-indexer", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.ImageUploaded
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal image task", "error", err)
			return nil // Don't retry on unmarshal errors
		}
		if err := matcher.IndexKey(ctx, task.Key, "queue"); err != nil {
			if errors.Is(err, vision.ErrUndecodable) || errors.Is(err, storage.ErrNotFound) {
				slog.Warn("skipping image", "key", task.Key, "error", err)
				return nil
			}
			return err
		}
		return nil
	}, cfg.Vision.WorkerCount)
	if err != nil {
		slog.Error("start image consumer", "error", err)
		os.Exit(1)
	}

	// Drop embeddings of deleted reports
	err = consumer.ConsumeReportEvents(ctx, "matcher-reports", func(ctx context.Context, msg jetstream.Msg) error {
		var evt models.ReportEvent
		if err := json.Unmarshal(msg.Data(), &evt); err != nil {
			return nil
		}
		if evt.Type != models.ReportDeleted || evt.Report == nil {
			return nil
		}
		var keys []string
		for _, ref := range evt.Report.ImageRefs {
			if key, ok := storage.KeyFromURL(cfg.Server.PublicBaseURL, ref); ok && strings.HasPrefix(key, storage.ImagePrefix) {
				keys = append(keys, key)
			}
		}
		return matcher.Forget(ctx, keys)
	})
	if err != nil {
		slog.Warn("start report consumer", "error", err)
	}

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.ImageQueueDepth(ctx)
				if err == nil {
					observability.ImageQueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.LoggingMiddleware())

	systemH := handlers.NewSystemHandler(checks)
	router.GET("/healthz", systemH.Healthz)
	router.GET("/readyz", systemH.Readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/match_image", vision.MatchHandler(matcher))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Vision.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("matcher listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down matcher...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("matcher stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
