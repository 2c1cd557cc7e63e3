// internal/infra/logger/logger.go
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"sickleave_notifier/internal/infra/config"
)

const serviceName = "sickleave-notifier"

// Log is the global logger instance
var Log = logrus.New()

// serviceHook stamps every entry with the service name so shared log indexes can filter on it.
type serviceHook struct{}

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = serviceName
	}
	return nil
}

// Init configures the global logger: level from LOG_LEVEL, JSON lines in deployed
// environments, readable text locally.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)
	Log.ReplaceHooks(logrus.LevelHooks{})
	Log.AddHook(serviceHook{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		Log.WithError(err).Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	switch strings.ToLower(cfg.Environment) {
	case config.EnvironmentProduction, "staging":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Log.WithFields(logrus.Fields{"environment": cfg.Environment, "level": level.String()}).Info("Logger initialized")
}

// Component returns an entry tagged with the component name, e.g. a loop or adapter.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
