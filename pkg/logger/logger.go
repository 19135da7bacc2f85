package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Init configures the process-wide event logger. Events are emitted as JSON
// lines so they can be shipped as-is; LOG_LEVEL overrides the default level.
func Init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	level := logrus.InfoLevel
	if raw, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if parsed, err := logrus.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)
}

func Info(event string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Info(event)
}

func Warn(event string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Warn(event)
}

func Error(event string, err error, fields map[string]interface{}) {
	entry := log.WithFields(logrus.Fields(fields))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(event)
}

func Debug(event string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Debug(event)
}

// InfoWithUser tags an event with the acting user's id.
func InfoWithUser(userID string, event string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).WithField("user_id", userID).Info(event)
}
