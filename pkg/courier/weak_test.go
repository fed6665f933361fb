package courier_test

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couriergo/courier/pkg/courier"
)

// cartPresenter stands in for a presenter-style subscriber whose lifetime
// the bus must not extend.
type cartPresenter struct {
	hits *atomic.Int32
}

func (p *cartPresenter) OnCartUpdated(m cartUpdated) {
	p.hits.Add(1)
}

// subscribeOwned registers a weak-mode subscription whose owner has no
// strong references once this helper returns.
func subscribeOwned(t *testing.T, bus *courier.Bus, hits *atomic.Int32) *courier.Subscription {
	t.Helper()
	owner := &cartPresenter{hits: hits}
	sub, err := courier.SubscribeOwned(bus, owner, (*cartPresenter).OnCartUpdated)
	require.NoError(t, err)
	return sub
}

func TestSubscribeOwned_NilArguments(t *testing.T) {
	bus := newBus()

	t.Run("nil handler", func(t *testing.T) {
		owner := &cartPresenter{hits: &atomic.Int32{}}
		sub, err := courier.SubscribeOwned[cartUpdated](bus, owner, nil)
		assert.ErrorIs(t, err, courier.ErrNilHandler)
		assert.Nil(t, sub)
	})

	t.Run("nil owner", func(t *testing.T) {
		sub, err := courier.SubscribeOwned(bus, (*cartPresenter)(nil), (*cartPresenter).OnCartUpdated)
		assert.ErrorIs(t, err, courier.ErrNilOwner)
		assert.Nil(t, sub)
	})
}

func TestSubscribeOwned_DeliversWhileOwnerLive(t *testing.T) {
	bus := newBus()

	hits := &atomic.Int32{}
	owner := &cartPresenter{hits: hits}
	sub, err := courier.SubscribeOwned(bus, owner, (*cartPresenter).OnCartUpdated)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 1}))
	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 2}))

	assert.Equal(t, int32(2), hits.Load())
	runtime.KeepAlive(owner)
}

func TestSubscribeOwned_ExpiresWhenOwnerCollected(t *testing.T) {
	bus := newBus()

	hits := &atomic.Int32{}
	sub := subscribeOwned(t, bus, hits)

	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 1}))
	require.Equal(t, int32(1), hits.Load())

	// The owner became unreachable when subscribeOwned returned.
	runtime.GC()
	runtime.GC()

	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 2}))
	assert.Equal(t, int32(1), hits.Load(), "expired subscription receives nothing")

	// The publish above doubled as the sweep; the empty bucket is gone.
	assert.Empty(t, bus.Types())

	// Unsubscribing an already-expired handle stays a no-op.
	assert.NotPanics(t, sub.Unsubscribe)
}

func TestSubscribeOwned_StrongSiblingSurvives(t *testing.T) {
	bus := newBus()

	weakHits := &atomic.Int32{}
	strongHits := &atomic.Int32{}

	_ = subscribeOwned(t, bus, weakHits)

	strong, err := courier.Subscribe(bus, func(m cartUpdated) { strongHits.Add(1) })
	require.NoError(t, err)
	defer strong.Unsubscribe()

	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 1}))

	runtime.GC()
	runtime.GC()

	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 2}))
	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 3}))

	assert.Equal(t, int32(1), weakHits.Load(), "weak subscriber expired after owner collection")
	assert.Equal(t, int32(3), strongHits.Load(), "strong subscriber delivered indefinitely")
}

// liveGauge is a MetricsRecorder that tracks only the live-subscription
// delta.
type liveGauge struct {
	live atomic.Int64
}

func (g *liveGauge) RecordPublish(context.Context, string, int, time.Duration) {}
func (g *liveGauge) RecordFault(context.Context, string, string)               {}
func (g *liveGauge) RecordSweep(context.Context, string, int)                  {}

func (g *liveGauge) RecordSubscriptionChange(_ string, delta int64) {
	g.live.Add(delta)
}

func TestSubscribeOwned_ExpiryBalancesLiveCount(t *testing.T) {
	gauge := &liveGauge{}
	bus := courier.New(courier.Config{Metrics: gauge})

	hits := &atomic.Int32{}
	sub := subscribeOwned(t, bus, hits)
	require.Equal(t, int64(1), gauge.live.Load())

	runtime.GC()
	runtime.GC()

	// The sweep that detects the dead owner must decrement the gauge,
	// exactly as an explicit Unsubscribe would have.
	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 1}))
	assert.Equal(t, int64(0), gauge.live.Load())

	// Unsubscribing the already-expired handle must not decrement again.
	sub.Unsubscribe()
	assert.Equal(t, int64(0), gauge.live.Load())
}

func TestSubscribeOwned_WithFilter(t *testing.T) {
	bus := newBus()

	hits := &atomic.Int32{}
	owner := &cartPresenter{hits: hits}
	sub, err := courier.SubscribeOwned(bus, owner, (*cartPresenter).OnCartUpdated,
		courier.WithFilter(func(m cartUpdated) bool { return m.Value > 10 }))
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 5}))
	require.NoError(t, courier.Publish(bus, cartUpdated{Value: 15}))

	assert.Equal(t, int32(1), hits.Load())
	runtime.KeepAlive(owner)
}
