package echoutil_test

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	httptestutil "github.com/opst/netsec/internal/testutils/http"
	"github.com/opst/netsec/pkg/echoutil"
)

func TestSetLevel(t *testing.T) {
	theory := func(name string, want log.Lvl) func(*testing.T) {
		return func(t *testing.T) {
			e := echo.New()
			e.Logger.SetOutput(&bytes.Buffer{})
			echoutil.SetLevel(e, name)
			if got := e.Logger.Level(); got != want {
				t.Errorf("level = %v, want %v", got, want)
			}
		}
	}
	t.Run("debug", theory("debug", log.DEBUG))
	t.Run("info", theory("INFO", log.INFO))
	t.Run("warn", theory("warn", log.WARN))
	t.Run("empty is warn", theory("", log.WARN))
	t.Run("error", theory("error", log.ERROR))
	t.Run("off", theory("off", log.OFF))
	t.Run("unknown is warn", theory("verbose", log.WARN))
}

func TestLogHandlerFunc(t *testing.T) {
	t.Run("it logs the request and the response", func(t *testing.T) {
		e := echo.New()
		buf := &bytes.Buffer{}
		e.Logger.SetOutput(buf)
		echoutil.SetLevel(e, "info")

		c, rec := httptestutil.Get(e, "/healthz")
		handler := echoutil.LogHandlerFunc(func(c echo.Context) error {
			return c.String(http.StatusTeapot, "ok")
		})
		if err := handler(c); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusTeapot {
			t.Errorf("status = %d", rec.Code)
		}
		out := buf.String()
		if !strings.Contains(out, "< request") || !strings.Contains(out, "status = 418") {
			t.Errorf("unexpected log:\n%s", out)
		}
	})
}
