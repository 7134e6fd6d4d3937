package repository

import (
	"path/filepath"
	"testing"
	"time"

	"facewatch-go/internal/core/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.Detection{}); err != nil {
		t.Fatal(err)
	}
	return NewSQLiteRepository(db)
}

func detectionAt(eventID, watcherID string, at time.Time) *models.Detection {
	return &models.Detection{
		EventID:    eventID,
		WatcherID:  watcherID,
		Camera:     watcherID,
		TotalFaces: 1,
		Faces:      []byte(`[{"name":"alice","confidence":90}]`),
		Matched:    []byte(`{"alice":90}`),
		DetectedAt: at,
	}
}

func TestSaveAndRecentDetections(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		d := detectionAt(id, "door", now.Add(time.Duration(i)*time.Minute))
		if err := repo.SaveDetection(d); err != nil {
			t.Fatalf("SaveDetection() error = %v", err)
		}
	}

	got, err := repo.RecentDetections(2)
	if err != nil {
		t.Fatalf("RecentDetections() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(RecentDetections(2)) = %d, want 2", len(got))
	}
	if got[0].EventID != "c" || got[1].EventID != "b" {
		t.Errorf("order = [%s %s], want [c b] (newest first)", got[0].EventID, got[1].EventID)
	}
}

func TestDetectionsForWatcher(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	repo.SaveDetection(detectionAt("a", "door", now))
	repo.SaveDetection(detectionAt("b", "garden", now))

	got, err := repo.DetectionsForWatcher("door", 10)
	if err != nil {
		t.Fatalf("DetectionsForWatcher() error = %v", err)
	}
	if len(got) != 1 || got[0].EventID != "a" {
		t.Errorf("DetectionsForWatcher(door) = %v, want just event a", got)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	repo.SaveDetection(detectionAt("old", "door", now.AddDate(0, 0, -40)))
	repo.SaveDetection(detectionAt("new", "door", now))

	deleted, err := repo.DeleteOlderThan(now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	rest, err := repo.RecentDetections(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].EventID != "new" {
		t.Errorf("remaining = %v, want just event new", rest)
	}
}

func TestCountSince(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	repo.SaveDetection(detectionAt("a", "door", now.Add(-2*time.Hour)))
	repo.SaveDetection(detectionAt("b", "door", now.Add(-10*time.Minute)))

	count, err := repo.CountSince(now.Add(-1 * time.Hour))
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountSince() = %d, want 1", count)
	}
}
