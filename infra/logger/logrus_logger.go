package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements Logger with sirupsen/logrus.
type LogrusLogger struct {
	entry *logrus.Entry
}

func newLogrus(out io.Writer, component string, c Config) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	if c.console() {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(c.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &LogrusLogger{entry: l.WithField("component", component)}
}

func (l *LogrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }

func (l *LogrusLogger) Debugw(msg string, fields map[string]any) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *LogrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *LogrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *LogrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
