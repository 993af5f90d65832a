// pkg/http/middleware_test.go
package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/camgrid/shuttersync/pkg/logger"
)

func TestCommonMiddleware(t *testing.T) {
	log := logger.NewTestLogger()

	handler := CommonMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte("OK"))
		if err != nil {
			t.Errorf("Error writing response: %v", err)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cameras", http.NoBody)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("CORS origin not set: got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("request id header not set")
	}
}

func TestCommonMiddlewarePreflight(t *testing.T) {
	log := logger.NewTestLogger()

	called := false

	handler := CommonMiddleware(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/trigger_capture", http.NoBody)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("preflight returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	if called {
		t.Error("preflight request reached the wrapped handler")
	}
}
