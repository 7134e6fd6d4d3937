package watcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"facewatch-go/config"
	"facewatch-go/internal/integrations/deepstack"
	"facewatch-go/internal/util/filename"
	"facewatch-go/internal/util/timezone"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// FaceService is the slice of the face API a watcher needs.
type FaceService interface {
	Detect(ctx context.Context, image []byte) ([]deepstack.Prediction, error)
	Recognize(ctx context.Context, image []byte) ([]deepstack.Prediction, error)
	Register(ctx context.Context, name string, image io.Reader) error
}

// State is a snapshot of a watcher's published state. TotalFaces is
// nil until a frame with at least one face has been processed and
// after any frame without faces.
type State struct {
	ID            string             `json:"id"`
	Camera        string             `json:"camera"`
	Name          string             `json:"name"`
	DetectOnly    bool               `json:"detect_only"`
	TotalFaces    *int               `json:"total_faces"`
	Matched       map[string]float64 `json:"matched_faces"`
	LastDetection string             `json:"last_detection,omitempty"`
}

// Attributes shapes the snapshot into the attribute map published
// alongside the state: the detect-only flag when that mode is on,
// the match tally and its size otherwise, and the last detection
// timestamp once one exists.
func (s State) Attributes() map[string]any {
	attr := map[string]any{}
	if s.DetectOnly {
		attr["detect_only"] = true
	} else {
		attr["matched_faces"] = s.Matched
		attr["total_matched_faces"] = len(s.Matched)
	}
	if s.LastDetection != "" {
		attr["last_target_detection"] = s.LastDetection
	}
	return attr
}

// Event is one detection occurrence: a processed frame that
// contained at least one face. Matched and At ride along for sinks
// and stay out of the serialized payload.
type Event struct {
	ID            string             `json:"id"`
	EntityID      string             `json:"entity_id"`
	Camera        string             `json:"camera"`
	Faces         []deepstack.Face   `json:"faces"`
	TotalFaces    int                `json:"total_faces"`
	LastDetection string             `json:"last_detection"`
	DurationMS    float64            `json:"duration_ms"`
	Matched       map[string]float64 `json:"-"`
	At            time.Time          `json:"-"`
}

// EventSink receives watcher updates. Sinks get value snapshots and
// must not block for long; everything they are handed is theirs to
// keep.
type EventSink interface {
	StateChanged(s State)
	FacesDetected(e Event)
}

// MultiSink fans out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) StateChanged(s State) {
	for _, sink := range m {
		sink.StateChanged(s)
	}
}

func (m MultiSink) FacesDetected(e Event) {
	for _, sink := range m {
		sink.FacesDetected(e)
	}
}

// Watcher processes the frames of one camera source.
type Watcher struct {
	id           string
	camera       string
	name         string
	detectOnly   bool
	frameTopic   string
	snapshotURL  string
	scanInterval time.Duration
	save         config.SaveConfig
	allowedPaths []string
	service      FaceService
	sink         EventSink

	mu            sync.Mutex
	faces         []deepstack.Prediction
	matched       map[string]float64
	totalFaces    *int
	lastDetection string
}

// New builds a watcher for one camera source. The watcher id is the
// sanitized lowercased camera name; the display name defaults to
// "facewatch <camera>".
func New(wc config.WatcherConfig, cfg *config.Config, service FaceService, sink EventSink) *Watcher {
	name := wc.Name
	if name == "" {
		name = "facewatch " + wc.Camera
	}
	return &Watcher{
		id:           strings.ToLower(filename.Valid(wc.Camera)),
		camera:       wc.Camera,
		name:         name,
		detectOnly:   cfg.DeepStack.DetectOnly,
		frameTopic:   wc.Topic,
		snapshotURL:  wc.SnapshotURL,
		scanInterval: time.Duration(wc.ScanInterval) * time.Second,
		save:         cfg.Save,
		allowedPaths: cfg.Teach.AllowedPaths,
		service:      service,
		sink:         sink,
		matched:      map[string]float64{},
	}
}

// ID returns the watcher id used in topics, URLs and teach targets.
func (w *Watcher) ID() string { return w.id }

// Camera returns the configured camera name.
func (w *Watcher) Camera() string { return w.camera }

// Name returns the display name.
func (w *Watcher) Name() string { return w.name }

// FrameTopic returns the MQTT topic frames arrive on, if configured.
func (w *Watcher) FrameTopic() string { return w.frameTopic }

// Snapshot returns the configured snapshot source, if any.
func (w *Watcher) Snapshot() (url string, interval time.Duration) {
	return w.snapshotURL, w.scanInterval
}

// State returns a snapshot of the current state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Watcher) stateLocked() State {
	s := State{
		ID:            w.id,
		Camera:        w.camera,
		Name:          w.name,
		DetectOnly:    w.detectOnly,
		LastDetection: w.lastDetection,
	}
	if w.totalFaces != nil {
		n := *w.totalFaces
		s.TotalFaces = &n
	}
	s.Matched = make(map[string]float64, len(w.matched))
	for k, v := range w.matched {
		s.Matched[k] = v
	}
	return s
}

// Process runs one frame through the face service and republishes
// the watcher state. Frames for the same watcher are handled
// strictly one at a time; a frame arriving mid-cycle waits here. A
// service failure is logged and leaves the cycle with zero faces.
func (w *Watcher) Process(ctx context.Context, image []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.faces = nil
	w.matched = map[string]float64{}
	w.totalFaces = nil

	var (
		preds []deepstack.Prediction
		err   error
	)
	start := time.Now()
	if w.detectOnly {
		preds, err = w.service.Detect(ctx, image)
	} else {
		preds, err = w.service.Recognize(ctx, image)
	}
	if err != nil {
		log.WithError(err).Errorf("DeepStack error for watcher %s", w.id)
		w.sink.StateChanged(w.stateLocked())
		return
	}
	duration := time.Since(start)

	w.faces = append([]deepstack.Prediction(nil), preds...)

	if len(w.faces) > 0 {
		now := timezone.Now()
		w.lastDetection = now.Format(timezone.Stamp)
		total := len(w.faces)
		w.totalFaces = &total
		w.matched = deepstack.RecognizedFaces(w.faces)

		w.sink.FacesDetected(Event{
			ID:            uuid.NewString(),
			EntityID:      w.id,
			Camera:        w.camera,
			Faces:         deepstack.ParseFaces(w.faces),
			TotalFaces:    total,
			LastDetection: w.lastDetection,
			DurationMS:    float64(duration.Milliseconds()),
			Matched:       w.matched,
			At:            now,
		})

		if w.save.Folder != "" {
			w.saveImage(image)
		}
	}

	log.Debugf("Watcher %s processed frame in %s (%d faces)", w.id, duration, len(w.faces))
	w.sink.StateChanged(w.stateLocked())
}

// Teach registers a face image from a local file with the service
// under the given name. Paths outside the configured allow-list are
// silently ignored.
func (w *Watcher) Teach(ctx context.Context, name, filePath string) error {
	if !pathAllowed(filePath, w.allowedPaths) {
		return nil
	}
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	if err := w.service.Register(ctx, name, f); err != nil {
		return err
	}
	log.Infof("Watcher %s taught face name: %s", w.id, name)
	return nil
}

// TeachImage registers already-loaded image bytes under the given
// name. Used for uploads, where no local path is involved.
func (w *Watcher) TeachImage(ctx context.Context, name string, image []byte) error {
	if err := w.service.Register(ctx, name, bytes.NewReader(image)); err != nil {
		return err
	}
	log.Infof("Watcher %s taught face name: %s", w.id, name)
	return nil
}

// pathAllowed reports whether p lies inside one of the allowed
// directories.
func pathAllowed(p string, allowed []string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, dir := range allowed {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absDir, abs)
		if err != nil {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			continue
		}
		return true
	}
	return false
}
