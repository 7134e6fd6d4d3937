package handlers

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"facewatch-go/config"
	"facewatch-go/internal/api/middleware"
	"facewatch-go/internal/db/repository"
	"facewatch-go/internal/server/sse"
	"facewatch-go/internal/util/sysinfo"
	"facewatch-go/internal/util/timezone"
	"facewatch-go/internal/watcher"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// WebHandler serves the dashboard.
type WebHandler struct {
	cfg        *config.Config
	registry   *watcher.Registry
	repo       repository.Repository
	sseHub     *sse.Hub
	translator *middleware.Translator

	// One parsed template set per language, so the t function is a
	// plain closure and rendering needs no shared mutable state.
	templates map[string]*template.Template
}

// NewWebHandler creates a new web handler and parses the templates
// once per available language.
func NewWebHandler(cfg *config.Config, registry *watcher.Registry, repo repository.Repository, sseHub *sse.Hub, translator *middleware.Translator) (*WebHandler, error) {
	h := &WebHandler{
		cfg:        cfg,
		registry:   registry,
		repo:       repo,
		sseHub:     sseHub,
		translator: translator,
		templates:  make(map[string]*template.Template),
	}

	if err := h.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return h, nil
}

// loadTemplates parses the HTML templates with one function map per
// language.
func (h *WebHandler) loadTemplates() error {
	pattern := filepath.Join(h.cfg.Server.TemplateDir, "*.html")
	log.Infof("Loading templates from %s", h.cfg.Server.TemplateDir)

	for _, lang := range h.translator.Languages() {
		lang := lang
		funcMap := template.FuncMap{
			"t": func(key string) string {
				return h.translator.T(lang, key)
			},
			"formatTime": func(t time.Time) string {
				return t.Format("2006-01-02 15:04:05")
			},
			"formatConfidence": func(c float64) string {
				return fmt.Sprintf("%.1f%%", c)
			},
			"formatBytes": sysinfo.FormatBytes,
		}

		templates, err := template.New("").Funcs(funcMap).ParseGlob(pattern)
		if err != nil {
			return fmt.Errorf("failed to parse templates for %s: %w", lang, err)
		}
		h.templates[lang] = templates
	}

	log.Infof("Loaded templates for %d language(s)", len(h.templates))
	return nil
}

// renderTemplate renders a template in the request language.
func (h *WebHandler) renderTemplate(c *gin.Context, name string, data gin.H) {
	lang := c.GetString("language")
	templates, ok := h.templates[lang]
	if !ok {
		templates = h.templates[h.cfg.UI.DefaultLanguage]
	}
	if templates == nil || templates.Lookup(name) == nil {
		log.Errorf("Template %s not found", name)
		c.String(http.StatusInternalServerError, "Template not found")
		return
	}

	if _, exists := data["Title"]; !exists {
		data["Title"] = "FaceWatch"
	}
	data["Language"] = lang
	data["Languages"] = h.translator.Languages()

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		log.Errorf("Template execution error: %v", err)
	}
}

// RegisterRoutes registers all web routes.
func (h *WebHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/", h.handleIndex)
	router.GET("/events/stream", h.handleSSE)
	router.GET("/system/stats", h.handleSystemStats)
}

// handleIndex renders the dashboard with the current watcher states
// and the most recent detections.
func (h *WebHandler) handleIndex(c *gin.Context) {
	states := []watcher.State{}
	for _, w := range h.registry.All() {
		states = append(states, w.State())
	}

	data := gin.H{
		"Watchers":       states,
		"HistoryEnabled": h.repo != nil,
		"SaveEnabled":    h.cfg.Save.Folder != "",
		"DetectOnly":     h.cfg.DeepStack.DetectOnly,
	}

	if h.repo != nil {
		events, err := h.repo.RecentDetections(12)
		if err != nil {
			log.WithError(err).Error("Failed to fetch recent detections")
		}
		data["Events"] = events

		now := timezone.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if count, err := h.repo.CountSince(midnight); err == nil {
			data["EventsToday"] = count
		}
	}

	h.renderTemplate(c, "index.html", data)
}

// handleSSE streams watcher updates to the browser.
func (h *WebHandler) handleSSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 10) // buffer for 10 messages

	h.sseHub.Register(client)
	defer h.sseHub.Unregister(client)

	c.Stream(func(w io.Writer) bool {
		msg, ok := <-client
		if !ok {
			return false
		}
		c.SSEvent("message", string(msg))
		return true
	})
}

// handleSystemStats returns current process statistics as JSON.
func (h *WebHandler) handleSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, sysinfo.Collect())
}
