package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCollectors(t *testing.T) {
	BackendRequestsTotal.WithLabelValues("purchase-guide", "ok").Inc()
	GuideOutcomesTotal.WithLabelValues("completed").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`reviewguide_backend_requests_total{endpoint="purchase-guide",outcome="ok"}`,
		`reviewguide_guide_outcomes_total{outcome="completed"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in exposition", want)
		}
	}
}
