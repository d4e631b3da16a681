package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.New()

var logFile *os.File

func init() {
	logger.Out = os.Stderr
	logger.Formatter = &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
	logger.SetLevel(log.InfoLevel)
}

// Options selects where and how verbosely the application logs.
type Options struct {
	Level  string
	Output string // "file", "stderr" or "discard"
	Dir    string
}

// Configure applies opts. The terminal belongs to the user interface while it runs,
// so "file" writes to <Dir>/<date>.log and falls back to discarding output.
func Configure(opts Options) error {
	if opts.Level != "" {
		lvl, err := log.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		logger.SetLevel(lvl)
	}

	switch opts.Output {
	case "stderr":
		setOutput(os.Stderr, nil)
	case "discard":
		setOutput(io.Discard, nil)
	default:
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			setOutput(io.Discard, nil)
			return fmt.Errorf("create logs directory %s: %w", opts.Dir, err)
		}
		filePath := filepath.Join(opts.Dir, fmt.Sprintf("%s.log", time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			setOutput(io.Discard, nil)
			return fmt.Errorf("open log file %s: %w", filePath, err)
		}
		setOutput(f, f)
	}
	return nil
}

// Close releases the log file if one is open.
func Close() {
	setOutput(io.Discard, nil)
}

func setOutput(w io.Writer, f *os.File) {
	logger.SetOutput(w)
	if logFile != nil && logFile != f {
		_ = logFile.Close()
	}
	logFile = f
}

// SetOutput redirects logging, used by tests to capture entries.
func SetOutput(w io.Writer) { setOutput(w, nil) }

func GetLogger() *log.Entry {
	function, file, line, _ := runtime.Caller(1)

	functionObject := runtime.FuncForPC(function)
	entry := logger.WithFields(log.Fields{
		"function": functionObject.Name(),
		"file":     file,
		"line":     line,
	})

	return entry
}
