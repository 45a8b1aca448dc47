package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUnit_CountsOutcome(t *testing.T) {
	success := UnitsTotal.WithLabelValues(UnitRelated, "success")
	failure := UnitsTotal.WithLabelValues(UnitRelated, "failure")
	beforeOK := testutil.ToFloat64(success)
	beforeFail := testutil.ToFloat64(failure)

	ObserveUnit(UnitRelated, time.Now(), nil)
	ObserveUnit(UnitRelated, time.Now(), nil)
	ObserveUnit(UnitRelated, time.Now(), errors.New("store offline"))

	assert.Equal(t, beforeOK+2, testutil.ToFloat64(success))
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(failure))
}
