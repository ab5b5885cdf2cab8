// Package simlog is the simulator's shared structured logger: a thin
// wrapper over logrus so every package logs through one configured
// instance instead of reaching for fmt.
package simlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
}

// SetVerbose raises the log level to Debug when v is true.
func SetVerbose(v bool) {
	if v {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// Decode logs a recoverable instruction-decode failure: the pipeline
// treats the word as a Nop, but the event is worth surfacing.
func Decode(word uint32, err error) {
	log.WithField("word", word).WithError(err).Warn("instruction failed to decode, treated as nop")
}

// Halt logs pipeline shutdown.
func Halt(clocks int) {
	log.WithField("clocks", clocks).Info("pipeline halted")
}

// Config logs the resolved simulator configuration at startup.
func Config(fields map[string]any) {
	entry := log.WithFields(fields)
	entry.Info("simulator configured")
}

// Errorf logs a formatted error-level message.
func Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}

// Debugf logs a formatted debug-level message.
func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}
