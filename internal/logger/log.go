// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"club-treasury/internal/config"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init installs a JSON logger writing to stdout and, when configured, to a
// rotating file.
func Init(cfg config.LogConfig) {
	out := io.MultiWriter(sinks(cfg)...)
	h := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	slog.SetDefault(slog.New(h).With("app", "club-treasury"))
	Info("logger initialized", "level", cfg.Level, "file", cfg.File)
}

func sinks(cfg config.LogConfig) []io.Writer {
	var ws []io.Writer
	if cfg.Console || cfg.File == "" {
		ws = append(ws, os.Stdout)
	}
	if cfg.File != "" {
		ws = append(ws, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
			Compress:   cfg.Compress,
		})
	}
	return ws
}

func Info(msg string, args ...any)  { slog.Info(msg, args...) }
func Warn(msg string, args ...any)  { slog.Warn(msg, args...) }
func Error(msg string, args ...any) { slog.Error(msg, args...) }
func Debug(msg string, args ...any) { slog.Debug(msg, args...) }

// With returns a logger carrying request-scoped attributes such as a batch id.
func With(args ...any) *slog.Logger { return slog.Default().With(args...) }

// Middleware logs one line per HTTP request. Server errors are logged at
// error level, client errors at warn.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if uid, ok := c.Get("user_id"); ok {
			args = append(args, "user_id", uid)
		}
		switch {
		case status >= 500:
			Error("http request", args...)
		case status >= 400:
			Warn("http request", args...)
		default:
			Debug("http request", args...)
		}
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
