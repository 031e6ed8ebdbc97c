package utils

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SetupLogging points both the log package and the default slog logger at
// <logDir>/<service>/log_YYYY-MM-DD.log. When the file cannot be opened the
// process keeps logging to stderr and the error is returned for the caller to
// report.
func SetupLogging(logDir, service string) (io.Closer, error) {
	dir := filepath.Join(logDir, service)
	if err := os.MkdirAll(dir, 0755); err != nil {
		useLogOutput(os.Stderr)
		return io.NopCloser(nil), fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(dir, fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		useLogOutput(os.Stderr)
		return io.NopCloser(nil), fmt.Errorf("failed to open log file: %w", err)
	}

	useLogOutput(file)
	return file, nil
}

func useLogOutput(w io.Writer) {
	log.SetOutput(w)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true})))
}
