package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Test_RedisMetrics_GetHitMiss(t *testing.T) {
	c, _ := newMini(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k:hit", []byte("v"), time.Minute)
	_, _, _ = c.Get(ctx, "k:hit")
	_, _, _ = c.Get(ctx, "k:miss")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)
	body := rr.Body.String()

	for _, want := range []string{
		`cache_op_duration_seconds_count{op="get",outcome="ok"}`,
		`cache_op_duration_seconds_count{op="set",outcome="ok"}`,
		`places_cache_results_total{backend="redis",outcome="hit"}`,
		`places_cache_results_total{backend="redis",outcome="miss"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s\n%s", want, body)
		}
	}
}
