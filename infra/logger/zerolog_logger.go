package logger

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger with rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

func newZerolog(out io.Writer, component string, c Config) *ZerologLogger {
	if c.console() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(out).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) { l.log.Debug().Msgf(format, args...) }

// Debugw logs msg with fields, typically the household and tour being
// processed.
func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any)  { l.log.Info().Msgf(format, args...) }
func (l *ZerologLogger) Warnf(format string, args ...any)  { l.log.Warn().Msgf(format, args...) }
func (l *ZerologLogger) Errorf(format string, args ...any) { l.log.Error().Msgf(format, args...) }
