// Package logger configures the global zerolog logger shared by the applets.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the logging settings
type Config struct {
	// Level accepts 0 error, 1 warn, 2 info, 3 debug, 4 trace
	Level      int    `env:"LEVEL" yaml:"level"`
	Colors     bool   `env:"COLORS" yaml:"colors"`
	TimeFormat string `env:"TIMEFORMAT" yaml:"timeFormat"`
	// JSON switches from the console writer to plain zerolog JSON lines
	JSON bool `env:"JSON" yaml:"json"`
}

// Defaults returns warn level console logging
func Defaults() Config {
	return Config{
		Level:      1,
		TimeFormat: time.RFC3339,
	}
}

// ZerologLevel maps the numeric level onto zerolog levels
func (c Config) ZerologLevel() zerolog.Level {
	switch {
	case c.Level <= 0:
		return zerolog.ErrorLevel
	case c.Level >= 4:
		return zerolog.TraceLevel
	}
	return [...]zerolog.Level{zerolog.ErrorLevel, zerolog.WarnLevel,
		zerolog.InfoLevel, zerolog.DebugLevel}[c.Level]
}

// Setup replaces the global logger, writing to os.Stderr
func Setup(c Config) {
	SetupWriter(c, os.Stderr)
}

// SetupWriter replaces the global logger, writing to w
func SetupWriter(c Config, w io.Writer) {
	if c.TimeFormat == "" {
		c.TimeFormat = time.RFC3339
	}
	zerolog.SetGlobalLevel(c.ZerologLevel())

	out := w
	if !c.JSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !c.Colors,
			TimeFormat: c.TimeFormat,
		}
	}
	log.Logger = zerolog.New(out).
		With().Timestamp().
		Logger()
}
