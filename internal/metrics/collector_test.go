package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Each test gets its own namespace so promauto never sees a duplicate
// registration in the default registry.
var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.generationsTotal)
	assert.NotNil(t, collector.generationDuration)
	assert.NotNil(t, collector.generationCost)
	assert.NotNil(t, collector.submissionsTotal)
	assert.NotNil(t, collector.pollAttempts)
	assert.NotNil(t, collector.pollFailures)
	assert.NotNil(t, collector.uploadsTotal)
	assert.NotNil(t, collector.localFallbacks)
}

func TestCollector_RecordGeneration(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordGeneration("kie", "nano-banana", "image", "success", 30*time.Second, 0.09)

	assert.Equal(t, 1, testutil.CollectAndCount(collector.generationsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.generationCost))

	cost := testutil.ToFloat64(collector.generationCost.WithLabelValues("kie", "nano-banana"))
	assert.InDelta(t, 0.09, cost, 1e-9)
}

func TestCollector_RecordGeneration_ZeroCostNotCounted(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordGeneration("google", "nano-banana", "image", "success", time.Second, 0)

	assert.Equal(t, 1, testutil.CollectAndCount(collector.generationsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(collector.generationCost))
}

func TestCollector_RecordPollAttempt(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordPollAttempt("wavespeed", false)
	collector.RecordPollAttempt("wavespeed", true)
	collector.RecordPollAttempt("wavespeed", false)

	attempts := testutil.ToFloat64(collector.pollAttempts.WithLabelValues("wavespeed"))
	failures := testutil.ToFloat64(collector.pollFailures.WithLabelValues("wavespeed"))
	assert.Equal(t, 3.0, attempts)
	assert.Equal(t, 1.0, failures)
}

func TestCollector_RecordSubmission(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSubmission("higgsfield", "video", "success")
	collector.RecordSubmission("higgsfield", "video", "error")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.submissionsTotal.WithLabelValues("higgsfield", "video", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.submissionsTotal.WithLabelValues("higgsfield", "video", "error")))
}

func TestCollector_RecordUploadAndFallback(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordUpload("kie", "error")
	collector.RecordLocalFallback("kie")
	collector.RecordUpload("kie", "success")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.uploadsTotal.WithLabelValues("kie", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.uploadsTotal.WithLabelValues("kie", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.localFallbacks.WithLabelValues("kie")))
}
