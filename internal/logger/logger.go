package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Level comes from PAPERLENS_LOG_LEVEL,
// format from PAPERLENS_LOG_FORMAT ("json" for machine collection).
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if os.Getenv("PAPERLENS_LOG_FORMAT") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := logrus.ParseLevel(os.Getenv("PAPERLENS_LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
