package api

import (
	"context"
	"fmt"
	"net/http"

	"facewatch-go/config"
	"facewatch-go/internal/api/handlers"
	"facewatch-go/internal/api/middleware"
	"facewatch-go/internal/db/repository"
	"facewatch-go/internal/integrations/mqtt"
	"facewatch-go/internal/server/sse"
	"facewatch-go/internal/watcher"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Server is the HTTP front: the JSON API, and the dashboard when the
// UI is enabled.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	httpServer *http.Server
}

// NewServer wires the router. repo and mqttClient may be nil when the
// corresponding feature is disabled.
func NewServer(cfg *config.Config, registry *watcher.Registry, faces handlers.FaceDirectory, repo repository.Repository, mqttClient *mqtt.Client, hub *sse.Hub) (*Server, error) {
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())

	apiGroup := engine.Group("/api")
	apiGroup.Use(cors.Default())
	handlers.NewAPIHandler(cfg, registry, faces, repo, mqttClient).RegisterRoutes(apiGroup)

	if cfg.UI.Enabled {
		translator, err := middleware.NewTranslator(cfg.Server.LocalesDir, cfg.UI.DefaultLanguage)
		if err != nil {
			return nil, fmt.Errorf("failed to load locales: %w", err)
		}

		webHandler, err := handlers.NewWebHandler(cfg, registry, repo, hub, translator)
		if err != nil {
			return nil, err
		}

		web := engine.Group("/")
		// The session only carries the language choice, so a fresh
		// secret per start costs nothing but a reset preference.
		web.Use(sessions.Sessions("facewatch", cookie.NewStore([]byte(uuid.NewString()))))
		web.Use(middleware.I18n(translator))
		webHandler.RegisterRoutes(web)

		if cfg.Save.Folder != "" {
			engine.Static("/snapshots", cfg.Save.Folder)
		}
	}

	return &Server{cfg: cfg, engine: engine}, nil
}

// Start listens until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	log.Infof("Starting server on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
