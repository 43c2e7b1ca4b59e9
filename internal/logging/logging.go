package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const logFilePermission = 0664

// Build assembles a zerolog.Logger for the rehearsal tooling. An explicit
// writer wins over a file path; stderr is the fallback destination.
type Build struct {
	writer  io.Writer
	path    string
	console bool
	level   string
}

func New() *Build {
	return &Build{}
}

func (b *Build) ToWriter(w io.Writer) *Build {
	b.writer = w
	return b
}

func (b *Build) ToPath(path string) *Build {
	b.path = path
	return b
}

// Console renders human-readable lines instead of JSON.
func (b *Build) Console() *Build {
	b.console = true
	return b
}

func (b *Build) Level(level string) *Build {
	b.level = level
	return b
}

// Make opens the destination and returns the configured logger. The level
// falls back to the LOG_LEVEL environment variable; unknown or empty levels
// mean info.
func (b *Build) Make() (zerolog.Logger, error) {
	w := b.writer
	if w == nil {
		w = io.Writer(os.Stderr)
		if b.path != "" {
			f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePermission)
			if err != nil {
				return zerolog.Nop(), err
			}
			w = zerolog.SyncWriter(f)
		}
	}
	if b.console {
		w = zerolog.ConsoleWriter{Out: w}
	}

	level := b.level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(lvl), nil
}
