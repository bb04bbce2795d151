package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCallIncrementsCounter(t *testing.T) {
	RegisterMetrics()
	before := testutil.ToFloat64(callsTotal.WithLabelValues("central", "GetConfiguration", OutcomeResult))
	RecordCall("central", "GetConfiguration", OutcomeResult)
	after := testutil.ToFloat64(callsTotal.WithLabelValues("central", "GetConfiguration", OutcomeResult))
	if after != before+1 {
		t.Fatalf("counter not incremented: before=%v after=%v", before, after)
	}
}

func TestConnectedPointsGauge(t *testing.T) {
	SetConnectedPoints(3)
	if got := testutil.ToFloat64(connectedPoints); got != 3 {
		t.Fatalf("unexpected gauge value: %v", got)
	}
	SetConnectedPoints(0)
	if got := testutil.ToFloat64(connectedPoints); got != 0 {
		t.Fatalf("unexpected gauge value: %v", got)
	}
}

func TestRecordHTTPRequestDoesNotPanic(t *testing.T) {
	RecordHTTPRequest("GET", "/points", 200, 5*time.Millisecond)
}
