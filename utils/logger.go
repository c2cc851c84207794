package utils

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Logger provides structured, leveled logging throughout the application.
type Logger struct {
	prefix string
	info   *log.Logger
	warn   *log.Logger
	err    *log.Logger
	debug  *log.Logger
}

// NewLogger creates a new Logger writing to stdout/stderr.
func NewLogger() *Logger {
	flags := 0
	return &Logger{
		info:  log.New(os.Stdout, "", flags),
		warn:  log.New(os.Stdout, "", flags),
		err:   log.New(os.Stderr, "", flags),
		debug: log.New(os.Stdout, "", flags),
	}
}

// With returns a Logger whose lines carry a component prefix, e.g.
// "[queue]" or "[worker-2]".
func (l *Logger) With(prefix string) *Logger {
	return &Logger{
		prefix: "[" + prefix + "] ",
		info:   l.info,
		warn:   l.warn,
		err:    l.err,
		debug:  l.debug,
	}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf(fmt.Sprintf("[%s] \033[32mINFO\033[0m  %s%s\n", l.timestamp(), l.prefix, format), args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf(fmt.Sprintf("[%s] \033[33mWARN\033[0m  %s%s\n", l.timestamp(), l.prefix, format), args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf(fmt.Sprintf("[%s] \033[31mERROR\033[0m %s%s\n", l.timestamp(), l.prefix, format), args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.debug.Printf(fmt.Sprintf("[%s] \033[36mDEBUG\033[0m %s%s\n", l.timestamp(), l.prefix, format), args...)
}
