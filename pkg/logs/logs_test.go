package logs_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/opst/netsec/pkg/logs"
)

func TestLevel(t *testing.T) {
	for name, want := range map[string]log.Lvl{
		"debug": log.DEBUG, "INFO": log.INFO, "warn": log.WARN, "": log.WARN,
		"error": log.ERROR, "off": log.OFF,
	} {
		t.Run("it parses "+name, func(t *testing.T) {
			got, ok := logs.Level(name)
			if !ok || got != want {
				t.Errorf("Level(%q) = (%v, %v), want (%v, true)", name, got, ok, want)
			}
		})
	}

	t.Run("it falls back to warn for unknown names", func(t *testing.T) {
		if got, ok := logs.Level("verbose"); ok || got != log.WARN {
			t.Errorf("Level(verbose) = (%v, %v)", got, ok)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("it writes messages at or above the level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := logs.New(buf, "ingest", "warn")
		l.Infof("hidden %d", 1)
		l.Warnf("shown %d", 2)

		out := buf.String()
		if strings.Contains(out, "hidden 1") {
			t.Errorf("info is written at warn level: %s", out)
		}
		if !strings.Contains(out, "shown 2") || !strings.Contains(out, "ingest") {
			t.Errorf("warning is not written with prefix: %s", out)
		}
	})
}
