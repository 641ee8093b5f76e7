package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	r := New()

	r.VerifyRequestsTotal.WithLabelValues("beat", "valid").Inc()
	r.BeatsComputedTotal.Add(5)
	r.AnchorAdvanceTotal.WithLabelValues("generated").Inc()
	r.TimestampRequestsTotal.WithLabelValues("free").Inc()

	req := httptest.NewRequest("GET", "/api/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`beats_verify_requests_total{mode="beat",outcome="valid"} 1`,
		`beats_beats_computed_total 5`,
		`beats_anchor_advance_total{outcome="generated"} 1`,
		`beats_timestamp_requests_total{tier="free"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestNewReturnsIndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.BeatsComputedTotal.Add(1)

	req := httptest.NewRequest("GET", "/api/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "beats_beats_computed_total 1") {
		t.Fatal("expected independent registries to not share counter state")
	}
}
