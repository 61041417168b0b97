package log

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Logger is what any library in this repository should take.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})

	With(keyvals ...interface{}) Logger
}

type defaultLogger struct {
	zerolog.Logger
}

// NewLogger returns a logger that writes human-readable output to w.
func NewLogger(w io.Writer) Logger {
	return defaultLogger{
		Logger: zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
			With().Timestamp().Logger(),
	}
}

func (l defaultLogger) Debug(msg string, keyvals ...interface{}) {
	l.Logger.Debug().Fields(getLogFields(keyvals...)).Msg(msg)
}

func (l defaultLogger) Info(msg string, keyvals ...interface{}) {
	l.Logger.Info().Fields(getLogFields(keyvals...)).Msg(msg)
}

func (l defaultLogger) Error(msg string, keyvals ...interface{}) {
	l.Logger.Error().Fields(getLogFields(keyvals...)).Msg(msg)
}

func (l defaultLogger) With(keyvals ...interface{}) Logger {
	return defaultLogger{
		Logger: l.Logger.With().Fields(getLogFields(keyvals...)).Logger(),
	}
}

func getLogFields(keyvals ...interface{}) map[string]interface{} {
	if len(keyvals)%2 != 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(keyvals))
	for i := 0; i < len(keyvals); i += 2 {
		fields[fmt.Sprint(keyvals[i])] = keyvals[i+1]
	}

	return fields
}
