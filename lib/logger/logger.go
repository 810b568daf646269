package logger

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
)

// profile is how one deployment environment logs.
type profile struct {
	level  slog.Level
	toFile bool
}

var profiles = map[string]profile{
	"local": {level: slog.LevelDebug},
	"dev":   {level: slog.LevelDebug, toFile: true},
	"prod":  {level: slog.LevelInfo, toFile: true},
}

// SetupLogger builds the process logger for env. Only local logs to stdout;
// the others append to logPath, creating its directory if needed.
func SetupLogger(env, logPath string) *slog.Logger {
	p, ok := profiles[env]
	if !ok {
		log.Fatalf("logger: unknown env %q", env)
	}
	out, err := p.open(logPath)
	if err != nil {
		log.Fatal("logger: ", err)
	}
	if p.toFile {
		log.Printf("env %s logs at %s to %s", env, p.level, logPath)
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: p.level}))
}

func (p profile) open(logPath string) (io.Writer, error) {
	if !p.toFile {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
