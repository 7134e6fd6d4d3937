package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"facewatch-go/internal/watcher"

	log "github.com/sirupsen/logrus"
)

// Poller periodically downloads camera snapshots over HTTP and feeds
// them to their watchers. Only watchers configured with a snapshot URL
// and a scan interval take part.
type Poller struct {
	httpClient *http.Client
	targets    []target
	wg         sync.WaitGroup
}

type target struct {
	watcher  *watcher.Watcher
	url      string
	interval time.Duration
}

// NewPoller builds a poller over the given registry. Watchers without
// a snapshot source are left alone; those are driven over MQTT or the
// HTTP API instead.
func NewPoller(registry *watcher.Registry) *Poller {
	p := &Poller{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, w := range registry.All() {
		url, interval := w.Snapshot()
		if url == "" || interval <= 0 {
			continue
		}
		p.targets = append(p.targets, target{watcher: w, url: url, interval: interval})
	}
	return p
}

// Targets returns the number of watchers this poller drives.
func (p *Poller) Targets() int {
	return len(p.targets)
}

// Start launches one polling loop per target. The loops run until the
// context is cancelled; Wait blocks until they have all stopped.
func (p *Poller) Start(ctx context.Context) {
	for _, t := range p.targets {
		p.wg.Add(1)
		go p.run(ctx, t)
	}
	if len(p.targets) > 0 {
		log.Infof("Snapshot poller started for %d watcher(s)", len(p.targets))
	}
}

// Wait blocks until all polling loops have exited.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, t target) {
	defer p.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	log.Infof("Polling %s every %s for watcher %s", t.url, t.interval, t.watcher.ID())

	for {
		select {
		case <-ctx.Done():
			log.Debugf("Snapshot polling stopped for watcher %s", t.watcher.ID())
			return
		case <-ticker.C:
			p.poll(ctx, t)
		}
	}
}

// poll fetches one snapshot and processes it. A failed download is
// logged and skipped; the next tick tries again.
func (p *Poller) poll(ctx context.Context, t target) {
	image, err := p.fetch(ctx, t.url)
	if err != nil {
		log.WithError(err).Warnf("Snapshot download failed for watcher %s", t.watcher.ID())
		return
	}
	t.watcher.Process(ctx, image)
}

func (p *Poller) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download snapshot, status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
