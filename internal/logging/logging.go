package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fabmirror/fabmirror/internal/config"
)

// Setup initializes the logger with file and stdout output, and prunes log
// files older than retentionDays (0 keeps everything).
func Setup(level, directory string, retentionDays int) (*slog.Logger, error) {
	if directory == "" {
		directory = config.ExpandHome("~/.fabmirror/logs/")
	} else {
		directory = config.ExpandHome(directory)
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	pruneOldLogs(directory, retentionDays)

	filename := fmt.Sprintf("fabmirror-%s.log", time.Now().Format("2006-01-02"))
	logPath := filepath.Join(directory, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	writer := io.MultiWriter(os.Stdout, file)

	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler), nil
}

// pruneOldLogs removes dated log files past the retention window. Failures
// are ignored; retention is best effort.
func pruneOldLogs(directory string, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "fabmirror-") || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(directory, e.Name()))
		}
	}
}
