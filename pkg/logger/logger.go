// Package logger provides the process-wide structured logger for the
// self-healing trigger, built on Logrus.
package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const fileBufferSize = 256 * 1024

var (
	log      *logrus.Logger
	mu       sync.RWMutex
	openFile io.Closer
)

func init() {
	log = newLogger(logrus.InfoLevel, &logrus.TextFormatter{FullTimestamp: true}, os.Stdout)
}

func newLogger(level logrus.Level, formatter logrus.Formatter, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(formatter)
	l.SetOutput(out)
	return l
}

// Initialize replaces the global logger. It may be called again, for example
// after a configuration reload; a previously opened log file is flushed and
// closed first.
//   - level: debug, info, warn, error, fatal
//   - format: json or text
//   - output: stdout, stderr or file
//   - outputFile: required when output is "file"
func Initialize(level, format, output, outputFile string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var formatter logrus.Formatter
	switch format {
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	case "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
	default:
		return fmt.Errorf("invalid log format %q: must be json or text", format)
	}

	mu.Lock()
	defer mu.Unlock()

	var (
		writer io.Writer
		closer io.Closer
	)
	switch output {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	case "file":
		if outputFile == "" {
			return fmt.Errorf("logFile must be specified when logOutput is 'file'")
		}
		file, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", outputFile, err)
		}
		bw := &bufferedFile{Writer: bufio.NewWriterSize(file, fileBufferSize), file: file}
		writer, closer = bw, bw
	default:
		return fmt.Errorf("invalid log output %q: must be stdout, stderr, or file", output)
	}

	if openFile != nil {
		if err := openFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close previous log file: %v\n", err)
		}
	}
	openFile = closer
	log = newLogger(lvl, formatter, writer)
	return nil
}

// bufferedFile flushes its buffer before closing the file.
type bufferedFile struct {
	*bufio.Writer
	file *os.File
}

func (b *bufferedFile) Close() error {
	if err := b.Flush(); err != nil {
		b.file.Close()
		return fmt.Errorf("failed to flush log buffer: %w", err)
	}
	return b.file.Close()
}

// SetOutput redirects the global logger, mostly for tests.
func SetOutput(w io.Writer) {
	mu.RLock()
	defer mu.RUnlock()
	log.SetOutput(w)
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// WithFields returns a logger entry with structured fields:
//
//	logger.WithFields(logrus.Fields{
//	    "system":   "Linux",
//	    "platform": "Linux",
//	}).Info("Remediation triggered")
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Get().WithFields(fields)
}

// WithField returns a logger entry with a single structured field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Get().WithField(key, value)
}

// WithError returns a logger entry with an error field.
func WithError(err error) *logrus.Entry {
	return Get().WithError(err)
}

// Debugf logs a formatted message at level Debug.
func Debugf(format string, args ...interface{}) { Get().Debugf(format, args...) }

// Infof logs a formatted message at level Info.
func Infof(format string, args ...interface{}) { Get().Infof(format, args...) }

// Warnf logs a formatted message at level Warn.
func Warnf(format string, args ...interface{}) { Get().Warnf(format, args...) }

// Errorf logs a formatted message at level Error.
func Errorf(format string, args ...interface{}) { Get().Errorf(format, args...) }

// SetLevel sets the log level programmatically.
func SetLevel(level logrus.Level) { Get().SetLevel(level) }

// GetLevel returns the current log level.
func GetLevel() logrus.Level { return Get().GetLevel() }

// Close flushes and closes the log file if one is open. It is safe to call
// more than once.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if openFile == nil {
		return nil
	}
	err := openFile.Close()
	openFile = nil
	return err
}

// Flush writes any buffered log data to the output.
func Flush() error {
	mu.RLock()
	defer mu.RUnlock()

	if flusher, ok := log.Out.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}
