// Package history persists detection events for the API and the
// dashboard.
package history

import (
	"encoding/json"

	"facewatch-go/internal/core/models"
	"facewatch-go/internal/db/repository"
	"facewatch-go/internal/watcher"

	log "github.com/sirupsen/logrus"
)

// Recorder stores detection events in the history repository. It
// implements watcher.EventSink; store failures are logged and never
// reach the processing cycle.
type Recorder struct {
	repo repository.Repository
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo repository.Repository) *Recorder {
	return &Recorder{repo: repo}
}

// StateChanged is a no-op; history only keeps detections.
func (r *Recorder) StateChanged(s watcher.State) {}

// FacesDetected stores the event.
func (r *Recorder) FacesDetected(e watcher.Event) {
	faces, err := json.Marshal(e.Faces)
	if err != nil {
		log.WithError(err).Errorf("Failed to marshal faces for event %s", e.ID)
		return
	}
	matched, err := json.Marshal(e.Matched)
	if err != nil {
		log.WithError(err).Errorf("Failed to marshal match tally for event %s", e.ID)
		return
	}

	detection := &models.Detection{
		EventID:    e.ID,
		WatcherID:  e.EntityID,
		Camera:     e.Camera,
		TotalFaces: e.TotalFaces,
		Faces:      faces,
		Matched:    matched,
		DurationMS: e.DurationMS,
		DetectedAt: e.At,
	}
	if err := r.repo.SaveDetection(detection); err != nil {
		log.WithError(err).Errorf("Failed to store detection event %s", e.ID)
	}
}
