package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

type readyStub struct {
	ready  bool
	detail string
}

func (r readyStub) Readiness() (bool, string) { return r.ready, r.detail }

func TestReadiness_Handler(t *testing.T) {
	rr := httptest.NewRecorder()
	Readiness(readyStub{detail: "initial update cycle running"})(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"not_ready"`) {
		t.Fatalf("body=%s", rr.Body)
	}

	rr = httptest.NewRecorder()
	Readiness(readyStub{ready: true, detail: "partial"})(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"detail":"partial"`) {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
}
