package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordGeneratedTask(t *testing.T) {
	c := TasksGenerated.WithLabelValues("question", "environmental", "high")
	before := testutil.ToFloat64(c)

	RecordGeneratedTask("question", "environmental", "high")
	RecordGeneratedTask("question", "environmental", "high")

	assert.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestRecordGenerationRun(t *testing.T) {
	c := GenerationRuns.WithLabelValues("failed")
	before := testutil.ToFloat64(c)

	RecordGenerationRun("failed", 3*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRecordWebhookDelivery(t *testing.T) {
	c := WebhookDeliveries.WithLabelValues("backend", "success")
	before := testutil.ToFloat64(c)

	RecordWebhookDelivery("backend", "success")

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
