package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"facewatch-go/config"
	"facewatch-go/internal/core/models"
	"facewatch-go/internal/db/repository"
	"facewatch-go/internal/integrations/mqtt"
	"facewatch-go/internal/util/sysinfo"
	"facewatch-go/internal/util/timezone"
	"facewatch-go/internal/version"
	"facewatch-go/internal/watcher"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// FaceDirectory is the slice of the face API the handlers need beyond
// what the watchers already cover.
type FaceDirectory interface {
	Register(ctx context.Context, name string, image io.Reader) error
	ListFaces(ctx context.Context) ([]string, error)
	DeleteFace(ctx context.Context, name string) error
}

// APIHandler serves the JSON API.
type APIHandler struct {
	cfg      *config.Config
	registry *watcher.Registry
	faces    FaceDirectory
	repo     repository.Repository
	mqtt     *mqtt.Client
}

// NewAPIHandler creates a new API handler. repo may be nil when the
// history store is disabled, mqtt may be nil when MQTT is disabled.
func NewAPIHandler(cfg *config.Config, registry *watcher.Registry, faces FaceDirectory, repo repository.Repository, mqttClient *mqtt.Client) *APIHandler {
	return &APIHandler{
		cfg:      cfg,
		registry: registry,
		faces:    faces,
		repo:     repo,
		mqtt:     mqttClient,
	}
}

// RegisterRoutes registers all API routes.
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Watcher endpoints
	router.GET("/watchers", h.ListWatchers)
	router.GET("/watchers/:id", h.GetWatcher)
	router.POST("/watchers/:id/process", h.ProcessFrame)

	// Face registry endpoints
	router.POST("/teach", h.Teach)
	router.POST("/teach/upload", h.TeachUpload)
	router.GET("/faces", h.ListFaces)
	router.DELETE("/faces/:name", h.DeleteFace)

	// History endpoints
	router.GET("/events", h.ListEvents)

	// System endpoints
	router.GET("/status", h.GetStatus)
}

// ListWatchers returns the current state of every watcher.
func (h *APIHandler) ListWatchers(c *gin.Context) {
	states := []watcher.State{}
	for _, w := range h.registry.All() {
		states = append(states, w.State())
	}
	c.JSON(http.StatusOK, states)
}

// GetWatcher returns the state of a single watcher.
func (h *APIHandler) GetWatcher(c *gin.Context) {
	w, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Watcher not found"})
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// ProcessFrame runs an uploaded image through a watcher and returns
// the resulting state. The image arrives either as a multipart
// "image" field or as the raw request body.
func (h *APIHandler) ProcessFrame(c *gin.Context) {
	w, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Watcher not found"})
		return
	}

	image, err := readFrame(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w.Process(c.Request.Context(), image)
	c.JSON(http.StatusOK, w.State())
}

func readFrame(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, err := c.Request.FormFile("image")
		if err != nil {
			return nil, errNoImage
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	image, err := io.ReadAll(c.Request.Body)
	if err != nil || len(image) == 0 {
		return nil, errNoImage
	}
	return image, nil
}

var errNoImage = errors.New("no image data in request")

// teachRequest is the JSON body of the teach endpoint. An empty
// entity_id list addresses every watcher; ids that match nothing
// teach nothing.
type teachRequest struct {
	Name     string   `json:"name" binding:"required"`
	FilePath string   `json:"file_path" binding:"required"`
	EntityID []string `json:"entity_id"`
}

// Teach registers a face image from a server-local file under the
// given name. Paths outside the configured allow-list are ignored
// without error, as are entity ids no watcher answers to.
func (h *APIHandler) Teach(c *gin.Context) {
	var req teachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and file_path are required"})
		return
	}

	for _, w := range h.registry.Select(req.EntityID) {
		if err := w.Teach(c.Request.Context(), req.Name, req.FilePath); err != nil {
			log.WithError(err).Errorf("Teach failed for watcher %s", w.ID())
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Face teaching completed", "name": req.Name})
}

// TeachUpload registers an uploaded face image under the given name.
// Unlike Teach this takes the image over the wire, so no path
// allow-list applies. Optional entity_id fields route the
// registration through the named watchers instead of registering
// directly.
func (h *APIHandler) TeachUpload(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded or invalid form data"})
		return
	}
	defer file.Close()

	targets := c.PostFormArray("entity_id")
	if len(targets) == 0 {
		if err := h.faces.Register(c.Request.Context(), name, file); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		log.Infof("Registered uploaded face image for %s", name)
		c.JSON(http.StatusOK, gin.H{"message": "Face registered successfully", "name": name})
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	for _, w := range h.registry.Select(targets) {
		if err := w.TeachImage(c.Request.Context(), name, image); err != nil {
			log.WithError(err).Errorf("Teach failed for watcher %s", w.ID())
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Face registered successfully", "name": name})
}

// ListFaces returns the names known to the face service.
func (h *APIHandler) ListFaces(c *gin.Context) {
	names, err := h.faces.ListFaces(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"faces": names})
}

// DeleteFace removes a name and its images from the face service.
func (h *APIHandler) DeleteFace(c *gin.Context) {
	name := c.Param("name")
	if err := h.faces.DeleteFace(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Face deleted successfully", "name": name})
}

// ListEvents returns recent detections from the history store, newest
// first. An optional watcher query parameter narrows the result.
func (h *APIHandler) ListEvents(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History store is disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	var detections []models.Detection
	var err error
	if watcherID := c.Query("watcher"); watcherID != "" {
		detections, err = h.repo.DetectionsForWatcher(watcherID, limit)
	} else {
		detections, err = h.repo.RecentDetections(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": detections})
}

// GetStatus returns the overall system status.
func (h *APIHandler) GetStatus(c *gin.Context) {
	status := gin.H{
		"status":    "ok",
		"version":   version.Version,
		"timestamp": timezone.Now(),
		"watchers":  len(h.registry.All()),
		"mqtt": gin.H{
			"enabled":   h.cfg.MQTT.Enabled,
			"connected": h.mqtt != nil && h.mqtt.IsConnected(),
		},
		"system": sysinfo.Collect(),
	}

	// A face list round-trip doubles as the reachability probe
	faceStatus := gin.H{"url": h.cfg.DeepStack.BaseURL()}
	names, err := h.faces.ListFaces(c.Request.Context())
	if err != nil {
		faceStatus["reachable"] = false
		faceStatus["error"] = err.Error()
	} else {
		faceStatus["reachable"] = true
		faceStatus["registered_faces"] = len(names)
	}
	status["deepstack"] = faceStatus

	c.JSON(http.StatusOK, status)
}
