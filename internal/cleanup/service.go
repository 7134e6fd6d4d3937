package cleanup

import (
	"time"

	"facewatch-go/internal/db/repository"

	log "github.com/sirupsen/logrus"
)

// Service prunes detection history older than the retention period.
type Service struct {
	repo          repository.Repository
	retentionDays int
	checkInterval time.Duration
	stopChan      chan struct{}
}

// NewService creates a cleanup service. Returns nil when retention
// is disabled (retentionDays <= 0); a nil service is safe to start
// and stop.
func NewService(repo repository.Repository, retentionDays int, checkInterval time.Duration) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic history cleanup disabled (retention_days <= 0)")
		return nil
	}
	log.Infof("Initializing cleanup service: retention=%dd, interval=%s", retentionDays, checkInterval)
	return &Service{
		repo:          repo,
		retentionDays: retentionDays,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start runs an immediate cleanup cycle and then one per interval
// until Stop is called.
func (s *Service) Start() {
	if s == nil {
		return
	}

	go func() {
		s.RunCycle()

		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunCycle()
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine")
				return
			}
		}
	}()
}

// Stop signals the background routine to stop.
func (s *Service) Stop() {
	if s == nil {
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// RunCycle deletes all detections older than the retention period.
func (s *Service) RunCycle() {
	if s == nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Errorf("Cleanup: failed to delete old detections: %v", err)
		return
	}
	if deleted > 0 {
		log.Infof("Cleanup: deleted %d detection(s) older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}
