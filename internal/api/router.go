package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/lostfound/internal/api/handlers"
	"github.com/your-org/lostfound/internal/api/ws"
	"github.com/your-org/lostfound/internal/auth"
	"github.com/your-org/lostfound/internal/match"
	"github.com/your-org/lostfound/internal/storage"
)

// Publisher is the NATS side of the API.
type Publisher interface {
	handlers.EventPublisher
	handlers.ImagePublisher
}

type RouterConfig struct {
	APIKey string
	// PublicBaseURL prefixes stored object keys to form media URLs.
	PublicBaseURL string
	Store         match.RecordStore
	Objects       handlers.ObjectStore
	Publisher     Publisher
	Finder        handlers.Finder
	Hub           *ws.Hub
	// Checks are pinged by /readyz.
	Checks map[string]handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(corsConfig()))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Media is public so stored references resolve in any browser.
	var images handlers.ImagePublisher
	var events handlers.EventPublisher
	if cfg.Publisher != nil {
		images, events = cfg.Publisher, cfg.Publisher
	}
	mediaH := handlers.NewMediaHandler(cfg.Objects, images, cfg.PublicBaseURL)
	r.GET("/"+storage.ImagePrefix+"*key", mediaH.Serve(storage.ImagePrefix))
	r.GET("/"+storage.AudioPrefix+"*key", mediaH.Serve(storage.AudioPrefix))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	reportH := handlers.NewReportHandler(cfg.Store, cfg.Objects, events, cfg.PublicBaseURL)
	v1.POST("/reports", reportH.Create)
	v1.GET("/reports", reportH.List)
	v1.GET("/reports/:id", reportH.Get)
	v1.PUT("/reports/:id", reportH.Update)
	v1.DELETE("/reports/:id", reportH.Delete)
	v1.POST("/reports/:id/favorite", reportH.SetFavorite)
	v1.POST("/reports/:id/finish", reportH.SetFinished)

	v1.POST("/uploads", mediaH.Upload)

	searchH := handlers.NewSearchHandler(cfg.Finder)
	v1.POST("/search", searchH.Search)
	v1.GET("/search/latest", searchH.Latest)
	v1.POST("/favorites", searchH.SaveFavorites)

	return r
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AddAllowHeaders("Authorization", "X-API-Key", handlers.SessionHeader)
	return cfg
}
