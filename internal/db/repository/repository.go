package repository

import (
	"time"

	"facewatch-go/internal/core/models"

	"gorm.io/gorm"
)

// Repository defines the persistence operations for the detection
// history.
type Repository interface {
	SaveDetection(d *models.Detection) error
	RecentDetections(limit int) ([]models.Detection, error)
	DetectionsForWatcher(watcherID string, limit int) ([]models.Detection, error)
	CountSince(t time.Time) (int64, error)
	DeleteOlderThan(t time.Time) (int64, error)
}

// SQLiteRepository implements Repository on a GORM handle.
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository wraps the given database handle.
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveDetection stores one detection event.
func (r *SQLiteRepository) SaveDetection(d *models.Detection) error {
	return r.db.Create(d).Error
}

// RecentDetections returns the newest detections across all
// watchers, newest first.
func (r *SQLiteRepository) RecentDetections(limit int) ([]models.Detection, error) {
	var detections []models.Detection
	result := r.db.Order("detected_at DESC").Limit(limit).Find(&detections)
	if result.Error != nil {
		return nil, result.Error
	}
	return detections, nil
}

// DetectionsForWatcher returns the newest detections of one watcher.
func (r *SQLiteRepository) DetectionsForWatcher(watcherID string, limit int) ([]models.Detection, error) {
	var detections []models.Detection
	result := r.db.Where("watcher_id = ?", watcherID).
		Order("detected_at DESC").Limit(limit).Find(&detections)
	if result.Error != nil {
		return nil, result.Error
	}
	return detections, nil
}

// CountSince counts detections newer than t.
func (r *SQLiteRepository) CountSince(t time.Time) (int64, error) {
	var count int64
	result := r.db.Model(&models.Detection{}).Where("detected_at >= ?", t).Count(&count)
	return count, result.Error
}

// DeleteOlderThan removes detections older than t and returns how
// many rows went away.
func (r *SQLiteRepository) DeleteOlderThan(t time.Time) (int64, error) {
	result := r.db.Unscoped().Where("detected_at < ?", t).Delete(&models.Detection{})
	return result.RowsAffected, result.Error
}
