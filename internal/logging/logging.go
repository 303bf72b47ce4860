// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the shared application logger. Init must be called once from
// main before it is used for anything beyond early startup messages.
var Logger = logrus.New()

// Init wires the logger to stderr and, when logFile is non-empty, to a
// size-rotated file as well.
func Init(level, logFile string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)
	Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	if logFile == "" {
		Logger.SetOutput(os.Stderr)
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	Logger.SetOutput(io.MultiWriter(os.Stderr, rotated))
}

// With returns an entry tagged with the component name.
func With(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}
