package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics_ImplementsInterface(t *testing.T) {
	var _ MetricsRecorder = NoopMetrics{}
}

func TestNoopMetrics_DoesNothing(t *testing.T) {
	m := NoopMetrics{}

	assert.NotPanics(t, func() {
		m.RecordPublish(context.Background(), "shop.cartUpdated", 3, time.Millisecond)
		m.RecordFault(context.Background(), "shop.cartUpdated", "handler")
		m.RecordSweep(context.Background(), "shop.cartUpdated", 1)
		m.RecordSubscriptionChange("shop.cartUpdated", -1)
	})

	t.Run("tolerates nil context", func(t *testing.T) {
		assert.NotPanics(t, func() {
			m.RecordPublish(nil, "", 0, 0) //nolint:staticcheck // nil context on purpose
		})
	})
}

func TestNoopSpanManager_ImplementsInterface(t *testing.T) {
	var _ SpanManager = NoopSpanManager{}
}

func TestNoopSpanManager_DoesNothing(t *testing.T) {
	m := NoopSpanManager{}

	ctx := context.Background()
	gotCtx, span := m.StartPublishSpan(ctx, "shop.cartUpdated")

	assert.Equal(t, ctx, gotCtx, "context passes through unchanged")
	assert.NotNil(t, span)
	assert.False(t, span.IsRecording())

	assert.NotPanics(t, func() {
		m.EndSpan(span, 5)
		m.EndSpan(nil, 0)
	})
}
