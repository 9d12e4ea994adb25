// Package logger builds the default device logger: a logrus logger
// writing to a timestamped file under the user's Logs directory and to
// stdout. Log files are named
//
//	<hostname>_<username>_<name>_<timestamp>.log
//
// so a fleet of devices can ship their logs to one place without
// collisions. Logging failures never abort a transfer in progress;
// callers treat the logger as fire-and-forget once constructed.
package logger

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// timestampLayout matches the historical log file naming scheme.
const timestampLayout = "2006-01-02_15-04-05"

// Options configures logger construction. The zero value selects the
// defaults: ~/Logs as the directory, debug level, stdout mirroring on.
type Options struct {
	// Dir overrides the log directory. Empty means ~/Logs.
	Dir string
	// Level overrides the minimum level. Zero means debug.
	Level logrus.Level
	// DisableStdout turns off mirroring to stdout.
	DisableStdout bool
}

// New creates a logger named name, writing to a fresh timestamped file.
// The directory is created if missing.
func New(name string, opts Options) (*logrus.Logger, error) {
	dir := opts.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, "Logs")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, FileName(name, time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level := opts.Level
	if level == 0 {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	if opts.DisableStdout {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(f, os.Stdout))
	}

	log.WithFields(logrus.Fields{
		"function": "New",
		"log_file": path,
	}).Debug("Logger initialized")

	return log, nil
}

// FileName returns the log file name for a logger called name at time t.
func FileName(name string, t time.Time) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	username := "unknown-user"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}

	return fmt.Sprintf("%s_%s_%s_%s.log", hostname, username, name, t.Format(timestampLayout))
}
