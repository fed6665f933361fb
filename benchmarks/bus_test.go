package benchmarks

import (
	"testing"

	"github.com/couriergo/courier/pkg/courier"
)

// tick is a minimal payload to measure framework overhead.
type tick struct {
	N int
}

// busWithSubscribers builds a bus with n live subscriptions for tick.
func busWithSubscribers(n int) *courier.Bus {
	bus := courier.New(courier.DefaultConfig)
	for i := 0; i < n; i++ {
		_, _ = courier.Subscribe(bus, func(m tick) {})
	}
	return bus
}

// BenchmarkPublish_NoSubscribers measures the empty-bucket fast path.
func BenchmarkPublish_NoSubscribers(b *testing.B) {
	bus := courier.New(courier.DefaultConfig)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = courier.Publish(bus, tick{N: i})
	}
}

// BenchmarkPublish_1 measures delivery to a single subscriber.
func BenchmarkPublish_1(b *testing.B) {
	bus := busWithSubscribers(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = courier.Publish(bus, tick{N: i})
	}
}

// BenchmarkPublish_100 measures delivery to 100 subscribers.
func BenchmarkPublish_100(b *testing.B) {
	bus := busWithSubscribers(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = courier.Publish(bus, tick{N: i})
	}
}

// BenchmarkPublish_10000 measures delivery to 10k subscribers; per-Publish
// cost must stay linear in the number of matching subscribers.
func BenchmarkPublish_10000(b *testing.B) {
	bus := busWithSubscribers(10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = courier.Publish(bus, tick{N: i})
	}
}

// BenchmarkPublish_Filtered measures filter evaluation overhead with half
// the subscribers matching.
func BenchmarkPublish_Filtered(b *testing.B) {
	bus := courier.New(courier.DefaultConfig)
	for i := 0; i < 100; i++ {
		even := i%2 == 0
		_, _ = courier.Subscribe(bus, func(m tick) {},
			courier.WithFilter(func(m tick) bool { return even == (m.N%2 == 0) }))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = courier.Publish(bus, tick{N: i})
	}
}

// BenchmarkSubscribeUnsubscribe measures registration churn.
func BenchmarkSubscribeUnsubscribe(b *testing.B) {
	bus := courier.New(courier.DefaultConfig)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sub, _ := courier.Subscribe(bus, func(m tick) {})
		sub.Unsubscribe()
	}
}

// BenchmarkPublish_Parallel measures concurrent publishers contending on
// one bucket.
func BenchmarkPublish_Parallel(b *testing.B) {
	bus := busWithSubscribers(100)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = courier.Publish(bus, tick{N: 1})
		}
	})
}
