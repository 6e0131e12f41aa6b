package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is shared logger of iocfeed. Level is set by LOG_LEVEL env var.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel changes level of Logger. Unknown or empty level falls back to info.
func SetLevel(level string) {
	lv, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lv = zerolog.InfoLevel
	}
	Logger = Logger.Level(lv)
}

type stackTracer interface {
	StackTrace() string
}

// LogError writes err with its context values and stack trace
func LogError(err error, values map[string]interface{}) {
	log := Logger.Error()
	for key, value := range values {
		log = log.Interface(key, value)
	}
	if e, ok := err.(stackTracer); ok {
		log = log.Str("stacktrace", e.StackTrace())
	}
	log.Msg(err.Error())
}
