// Package filesink writes the multiplexed byte stream to an
// append-only, size-rotated file via gopkg.in/natefinch/lumberjack.v2
// — the teacher's own file-rotation dependency, here carrying the
// engine's output stream instead of its own log output.
package filesink

import (
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink writes every Transmit call straight through to a rotating
// file. Writes are synchronous, so it clears inFlight before
// returning, satisfying the Sink contract for synchronous senders.
type Sink struct {
	logger *lumberjack.Logger
}

// Config mirrors the subset of lumberjack.Logger fields
// config.LogConfig.Rotation already exposes.
type Config struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New prepares the rotating output file described by cfg; the file is
// opened (or created) on the first Transmit.
func New(cfg Config) *Sink {
	return &Sink{
		logger: &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    maxInt(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
	}
}

// Transmit appends buffer[:length] to the rotating file.
func (s *Sink) Transmit(buffer []byte, length int, inFlight *atomic.Bool) {
	_, _ = s.logger.Write(buffer[:length])
	inFlight.Store(false)
}

// Close closes the underlying file, rotating on close if lumberjack
// has been asked to.
func (s *Sink) Close() error {
	return s.logger.Close()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
