package timezone

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// Stamp is the layout used for detection timestamps and timestamped
// snapshot filenames, e.g. 2025-03-01_14-07-33.
const Stamp = "2006-01-02_15-04-05"

var currentLocation *time.Location

// Initialize resolves the timezone from the TZ environment variable.
// Called once at startup; falls back to UTC on any failure.
func Initialize() {
	tzName := os.Getenv("TZ")
	if tzName == "" {
		tzName = "UTC"
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warnf("Failed to load timezone %s, falling back to UTC", tzName)
		currentLocation = time.UTC
		return
	}
	currentLocation = loc
}

// Now returns the current time in the configured timezone.
func Now() time.Time {
	if currentLocation == nil {
		Initialize()
	}
	return time.Now().In(currentLocation)
}

// Format renders t in the configured timezone.
func Format(t time.Time, layout string) string {
	if currentLocation == nil {
		Initialize()
	}
	return t.In(currentLocation).Format(layout)
}
