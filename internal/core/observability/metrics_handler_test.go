package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/places", 200, 0.001)
	ObserveUpstreamLatency("geodb", "get_collection", errors.New("boom"), 0.01)
	ObserveCycle("ok", 0.2)
	IncGroupOutcome("ok")
	SetGroupFeatures("cities", 12)
	IncCacheMiss("memory")
	ObserveCacheOp("get", nil, 0.0004)
	IncEvent("out", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`app_build_info{version="test"} 1`,
		`http_requests_total{method="GET",route="/places",status="200"}`,
		`upstream_latency_seconds_bucket{op="get_collection",outcome="error",upstream="geodb"`,
		`places_update_cycles_total{result="ok"}`,
		`places_group_outcomes_total{outcome="ok"}`,
		`places_group_features{group="cities"} 12`,
		`places_cache_results_total{backend="memory",outcome="miss"}`,
		`cache_op_duration_seconds_bucket{op="get",outcome="ok"`,
		`places_events_total{direction="out",outcome="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics payload missing %q; got:\n%s", want, body)
		}
	}
}
