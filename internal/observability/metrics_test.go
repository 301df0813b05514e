package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.ArtifactsWritten.WithLabelValues("daily").Add(3)
	b.ArtifactsWritten.WithLabelValues("daily").Inc()

	assert.Equal(t, float64(3), testutil.ToFloat64(a.ArtifactsWritten.WithLabelValues("daily")))
	assert.Equal(t, float64(1), testutil.ToFloat64(b.ArtifactsWritten.WithLabelValues("daily")))
}
