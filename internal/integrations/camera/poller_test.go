package camera

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"facewatch-go/config"
	"facewatch-go/internal/integrations/deepstack"
	"facewatch-go/internal/watcher"
)

type fakeService struct {
	calls  int
	images [][]byte
}

func (f *fakeService) Detect(ctx context.Context, image []byte) ([]deepstack.Prediction, error) {
	f.calls++
	f.images = append(f.images, image)
	return nil, nil
}

func (f *fakeService) Recognize(ctx context.Context, image []byte) ([]deepstack.Prediction, error) {
	return f.Detect(ctx, image)
}

func (f *fakeService) Register(ctx context.Context, name string, image io.Reader) error {
	return nil
}

type nopSink struct{}

func (nopSink) StateChanged(watcher.State) {}
func (nopSink) FacesDetected(watcher.Event) {}

func newRegistry(t *testing.T, wc config.WatcherConfig, service watcher.FaceService) *watcher.Registry {
	t.Helper()
	cfg := &config.Config{}
	registry := watcher.NewRegistry()
	registry.Add(watcher.New(wc, cfg, service, nopSink{}))
	return registry
}

func TestNewPollerSkipsWatchersWithoutSnapshotSource(t *testing.T) {
	registry := newRegistry(t, config.WatcherConfig{Camera: "front_door"}, &fakeService{})

	p := NewPoller(registry)
	if p.Targets() != 0 {
		t.Errorf("Targets() = %d, want 0", p.Targets())
	}
}

func TestNewPollerPicksUpSnapshotWatchers(t *testing.T) {
	registry := newRegistry(t, config.WatcherConfig{
		Camera:       "front_door",
		SnapshotURL:  "http://cam.local/snapshot.jpg",
		ScanInterval: 5,
	}, &fakeService{})

	p := NewPoller(registry)
	if p.Targets() != 1 {
		t.Errorf("Targets() = %d, want 1", p.Targets())
	}
}

func TestPollFetchesSnapshotAndProcessesIt(t *testing.T) {
	image := []byte("jpeg-bytes")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(image)
	}))
	defer ts.Close()

	service := &fakeService{}
	registry := newRegistry(t, config.WatcherConfig{
		Camera:       "front_door",
		SnapshotURL:  ts.URL,
		ScanInterval: 5,
	}, service)

	p := NewPoller(registry)
	p.poll(context.Background(), p.targets[0])

	if service.calls != 1 {
		t.Fatalf("service calls = %d, want 1", service.calls)
	}
	if !bytes.Equal(service.images[0], image) {
		t.Errorf("processed image = %q, want %q", service.images[0], image)
	}
}

func TestPollSkipsFailedDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no snapshot", http.StatusInternalServerError)
	}))
	defer ts.Close()

	service := &fakeService{}
	registry := newRegistry(t, config.WatcherConfig{
		Camera:       "front_door",
		SnapshotURL:  ts.URL,
		ScanInterval: 5,
	}, service)

	p := NewPoller(registry)
	p.poll(context.Background(), p.targets[0])

	if service.calls != 0 {
		t.Errorf("service calls = %d, want 0", service.calls)
	}
}
