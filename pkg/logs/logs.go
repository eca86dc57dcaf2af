// Package logs builds leveled loggers shared by the pipeline, the server and the CLI.
package logs

import (
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

// header of log lines. see github.com/labstack/gommon/log for available tags.
const header = `${time_rfc3339} ${level} ${prefix} ${short_file}:${line}`

// Level parses a log level name (debug, info, warn, error or off).
//
// Empty string is warn. For unknown names, it returns (warn, false).
func Level(name string) (log.Lvl, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return log.DEBUG, true
	case "info":
		return log.INFO, true
	case "warn", "":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	case "off":
		return log.OFF, true
	}
	return log.WARN, false
}

// New returns a logger writing to w with prefix.
func New(w io.Writer, prefix string, level string) *log.Logger {
	l := log.New(prefix)
	l.SetOutput(w)
	l.SetHeader(header)
	lvl, ok := Level(level)
	l.SetLevel(lvl)
	if !ok {
		l.Warnf("unknown loglevel: %s . fall-backed to warn", level)
	}
	return l
}

// Discard returns a logger writing nowhere. It is for tests.
func Discard() *log.Logger {
	return New(io.Discard, "", "off")
}
