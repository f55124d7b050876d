package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q, want 200 \"ok\\n\"", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	var rd Readiness

	w := httptest.NewRecorder()
	rd.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status before ready = %d, want 503", w.Code)
	}

	rd.SetReady(true)
	w = httptest.NewRecorder()
	rd.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("got %d %q, want 200 \"ready\\n\"", w.Code, w.Body.String())
	}
}
