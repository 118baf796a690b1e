package core

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "gfxhal 🎨 ",
			})
			l.SetLevel(log.InfoLevel)
			// the wrappers below add one frame
			l.SetCallerOffset(1)
			singleton = &logger{l}
		})
	return singleton
}

// SetLogOutput redirects every log line to w. The shader build tool points
// this at stdout.
func SetLogOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

// SetLogLevel accepts debug, info, warn, error or fatal. Unknown values leave
// the level untouched and are reported back.
func SetLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	getLogger().SetLevel(lvl)
	return nil
}

// LogWith returns a child logger carrying the given key/value pairs.
func LogWith(keyvals ...interface{}) *log.Logger {
	l := getLogger().With(keyvals...)
	// called directly, no wrapper frame to skip
	l.SetCallerOffset(0)
	return l
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

// LogFatal logs at fatal level without exiting. Termination is owned by
// HandleFatal.
func LogFatal(msg string, args ...interface{}) {
	getLogger().Logf(log.FatalLevel, msg, args...)
}
