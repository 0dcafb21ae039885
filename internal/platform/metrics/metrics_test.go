package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResult(t *testing.T) {
	if Result(nil) != "ok" {
		t.Error("expected ok for nil error")
	}
	if Result(errors.New("boom")) != "error" {
		t.Error("expected error label")
	}
}

func TestItemTransitions_Increment(t *testing.T) {
	c := ItemTransitions.WithLabelValues("approve", "ok")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}
