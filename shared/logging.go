package shared

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging sets the global logrus level and formatter
func ConfigureLogging(cfg LoggingConfig) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL value: %s, using info", cfg.Level)
		level = logrus.InfoLevel
	}

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(level)

	if cfg.EnableJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logrus.WithFields(logrus.Fields{
		"service_name": cfg.ServiceName,
		"level":        level.String(),
		"json":         cfg.EnableJSON,
	}).Debug("Logging configured")
}
