package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger, configured by InitLogger.
var Logger = logrus.StandardLogger()

// InitLogger configures Logger for env: JSON lines in production, text
// with full timestamps elsewhere.  level is a logrus level name; unknown
// names fall back to info.
func InitLogger(env, level string) *logrus.Logger {
	Logger.SetOutput(os.Stdout)
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)
	return Logger
}
