package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Detection is one stored detection event: a processed frame that
// contained at least one face. Faces holds the parsed face list as
// published with the event, Matched the recognized name to
// confidence tally of that frame.
type Detection struct {
	gorm.Model
	EventID    string         `gorm:"uniqueIndex;size:36" json:"event_id"`
	WatcherID  string         `gorm:"index" json:"watcher_id"`
	Camera     string         `json:"camera"`
	TotalFaces int            `json:"total_faces"`
	Faces      datatypes.JSON `json:"faces"`
	Matched    datatypes.JSON `json:"matched_faces"`
	DurationMS float64        `json:"duration_ms"`
	DetectedAt time.Time      `gorm:"index" json:"detected_at"`
}
