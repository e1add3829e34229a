package credentials

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/teamrocket/dhtnode"
)

// Source tells where acquired credentials came from.
type Source uint8

const (
	SourceNone Source = iota
	SourceConsole
	SourceStore
)

func (s Source) String() string {
	switch s {
	case SourceConsole:
		return "console"
	case SourceStore:
		return "store"
	}
	return "none"
}

// AcquireConfig configures Acquire.
type AcquireConfig struct {
	// ConsoleTimeout bounds the wait for console input.
	ConsoleTimeout time.Duration
	// PromptTo receives the console prompt. May be nil.
	PromptTo io.Writer
	Logger   *slog.Logger
}

// Acquire applies the boot precedence policy: accepted console input is
// persisted and used, otherwise the persisted record is loaded. When neither
// yields credentials ErrNoCredentials is returned. A failed save is logged
// and does not prevent using the console credentials.
func Acquire(console Console, store *Store, clk dhtnode.Clock, cfg AcquireConfig) (Credentials, Source, error) {
	logger := cfg.Logger
	if cfg.PromptTo != nil {
		io.WriteString(cfg.PromptTo, Prompt+"\r\n")
	}
	if console != nil {
		c, ok := ReadConsole(console, clk, cfg.ConsoleTimeout, logger)
		if ok {
			loginfo(logger, "auth:console", slog.String("ssid", c.SSID), slog.Int("passlen", len(c.Password)))
			if err := store.Save(c); err != nil {
				logerr(logger, "auth:save", slog.String("err", err.Error()))
			} else {
				loginfo(logger, "auth:saved", slog.String("path", store.Path()))
			}
			return c, SourceConsole, nil
		}
	}
	c, err := store.Load()
	if err != nil {
		logerr(logger, "auth:load", slog.String("err", err.Error()))
		return Credentials{}, SourceNone, ErrNoCredentials
	}
	loginfo(logger, "auth:loaded", slog.String("ssid", c.SSID), slog.Int("passlen", len(c.Password)))
	return c, SourceStore, nil
}

func loginfo(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if logger != nil {
		logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
	}
}

func logerr(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if logger != nil {
		logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
	}
}
