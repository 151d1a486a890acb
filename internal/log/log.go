package log

import (
	"io"
	"log"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

func LevelFromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "ERROR":
		return LevelError
	case "NONE":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Logger is a small leveled wrapper over the stdlib logger.
type Logger struct {
	l     *log.Logger
	level Level
}

func New(out io.Writer, level Level) *Logger {
	return &Logger{
		l:     log.New(out, "", log.LstdFlags),
		level: level,
	}
}

func (g *Logger) Debugf(format string, v ...any) {
	if g.level <= LevelDebug {
		g.l.Printf("DEBUG "+format, v...)
	}
}

func (g *Logger) Infof(format string, v ...any) {
	if g.level <= LevelInfo {
		g.l.Printf("INFO "+format, v...)
	}
}

func (g *Logger) Warnf(format string, v ...any) {
	if g.level <= LevelInfo {
		g.l.Printf("WARN "+format, v...)
	}
}

func (g *Logger) Errorf(format string, v ...any) {
	if g.level <= LevelError {
		g.l.Printf("ERROR "+format, v...)
	}
}

func (g *Logger) SetLevel(level Level) { g.level = level }

func (g *Logger) Level() Level { return g.level }
