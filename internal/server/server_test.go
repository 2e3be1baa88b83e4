package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type testHandler struct {
	registered bool
}

func (h *testHandler) Register(e *echo.Echo) {
	h.registered = true
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func TestNewServerRegistersHandlers(t *testing.T) {
	t.Parallel()
	h := &testHandler{}
	srv := NewServer(":0", []Handler{h, nil})
	if !h.registered {
		t.Fatal("handler was not registered")
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /test = %d, want 200", rec.Code)
	}
}

func TestNewServerDefaultAddr(t *testing.T) {
	t.Parallel()
	srv := NewServer("", nil)
	if srv.addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", srv.addr)
	}
}
