package logger

import (
	"io"
	"os"

	"facewatch-go/config"

	log "github.com/sirupsen/logrus"
)

// Init configures the global logger. File logging is best-effort: if
// the log file cannot be opened, logging continues on stdout only.
func Init(cfg config.LogConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level %q, defaulting to info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	out := io.Writer(os.Stdout)
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
		if err != nil {
			log.WithError(err).Errorf("Failed to open log file %s", cfg.File)
		} else {
			out = io.MultiWriter(os.Stdout, file)
			log.Infof("Logging additionally to file: %s", cfg.File)
		}
	}
	log.SetOutput(out)
}
