package courier

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/couriergo/courier/pkg/courier/observability"
)

// Config configures bus behavior.
type Config struct {
	// Logger receives debug/warn output for subscribe, unsubscribe, and
	// fault events. Nil disables logging.
	Logger *slog.Logger

	// Metrics records bus metrics. Nil disables metrics.
	Metrics observability.MetricsRecorder

	// Spans traces Publish calls. Nil disables tracing.
	Spans observability.SpanManager

	// OnFault is called for every panic recovered inside a filter or
	// handler. A panic inside the hook itself is swallowed.
	OnFault func(Fault)
}

// DefaultConfig provides reasonable defaults: no logging, no metrics, no
// tracing, no fault hook.
var DefaultConfig = Config{}

// Bus is a thread-safe, type-keyed message bus.
//
// Construct one Bus at composition time with New and pass it to every
// component that needs it. The zero value is not usable.
type Bus struct {
	mu      sync.RWMutex
	buckets map[reflect.Type]*bucket
	cfg     Config
}

// bucket holds the ordered subscriptions for one message type.
// Lock order is always Bus.mu before bucket.mu; neither is held while a
// filter or handler runs.
type bucket struct {
	mu   sync.Mutex
	subs []*Subscription
}

// New creates a bus with the given configuration.
func New(cfg Config) *Bus {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Spans == nil {
		cfg.Spans = observability.NoopSpanManager{}
	}
	return &Bus{
		buckets: make(map[reflect.Type]*bucket),
		cfg:     cfg,
	}
}

// ClearSubscriptions atomically removes every subscription for every
// message type. Publish calls that start afterwards see zero subscribers
// until new Subscribe calls occur.
func (b *Bus) ClearSubscriptions() {
	b.mu.Lock()
	old := b.buckets
	b.buckets = make(map[reflect.Type]*bucket)
	b.mu.Unlock()

	// Mark entries disposed so in-flight snapshots skip them too.
	for _, bkt := range old {
		bkt.mu.Lock()
		for _, s := range bkt.subs {
			if s.disposed.CompareAndSwap(false, true) {
				b.cfg.Metrics.RecordSubscriptionChange(typeName(s.typ), -1)
			}
		}
		bkt.subs = nil
		bkt.mu.Unlock()
	}

	if b.cfg.Logger != nil {
		b.cfg.Logger.Debug("bus cleared")
	}
}

// Types returns the message types that currently have a registered bucket.
// Intended for diagnostics.
func (b *Bus) Types() []reflect.Type {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]reflect.Type, 0, len(b.buckets))
	for typ := range b.buckets {
		types = append(types, typ)
	}
	return types
}

// lookup returns the bucket for typ, or nil if none exists.
func (b *Bus) lookup(typ reflect.Type) *bucket {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buckets[typ]
}

// addSub inserts a subscription into the bucket for its type, creating the
// bucket on first use. The append happens while the registry lock is still
// held: tryDropBucket and ClearSubscriptions both need the write lock, so
// the bucket cannot be dropped or swapped out between the map read and the
// insert. A registry swap therefore orders strictly before this insert
// (the entry lands in the new registry) or strictly after it (the clear's
// disposal pass sees the entry).
func (b *Bus) addSub(s *Subscription) {
	b.mu.RLock()
	if bkt, ok := b.buckets[s.typ]; ok {
		bkt.add(s)
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	bkt, ok := b.buckets[s.typ]
	if !ok {
		bkt = &bucket{}
		b.buckets[s.typ] = bkt
	}
	bkt.add(s)
}

// removeSub removes one subscription from its bucket, dropping the bucket
// when it becomes empty. The subscription may already be gone if the
// registry was cleared concurrently.
func (b *Bus) removeSub(s *Subscription) {
	bkt := b.lookup(s.typ)
	if bkt == nil {
		return
	}

	bkt.mu.Lock()
	for i, entry := range bkt.subs {
		if entry == s {
			bkt.subs = append(bkt.subs[:i], bkt.subs[i+1:]...)
			break
		}
	}
	empty := len(bkt.subs) == 0
	bkt.mu.Unlock()

	if empty {
		b.tryDropBucket(s.typ)
	}
}

// tryDropBucket deletes the bucket for typ if it is still empty.
func (b *Bus) tryDropBucket(typ reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bkt, ok := b.buckets[typ]
	if !ok {
		return
	}

	bkt.mu.Lock()
	empty := len(bkt.subs) == 0
	bkt.mu.Unlock()

	if empty {
		delete(b.buckets, typ)
	}
}

// add appends a subscription, preserving insertion order.
func (bkt *bucket) add(s *Subscription) {
	bkt.mu.Lock()
	bkt.subs = append(bkt.subs, s)
	bkt.mu.Unlock()
}

// snapshot copies the current subscription list. Concurrent Subscribe and
// Unsubscribe calls affect only later snapshots, never this one.
func (bkt *bucket) snapshot() []*Subscription {
	bkt.mu.Lock()
	defer bkt.mu.Unlock()
	if len(bkt.subs) == 0 {
		return nil
	}
	snap := make([]*Subscription, len(bkt.subs))
	copy(snap, bkt.subs)
	return snap
}

// compact removes disposed entries observed during a sweep.
func (bkt *bucket) compact() (removed, remaining int) {
	bkt.mu.Lock()
	defer bkt.mu.Unlock()

	live := bkt.subs[:0]
	for _, s := range bkt.subs {
		if s.disposed.Load() {
			removed++
			continue
		}
		live = append(live, s)
	}
	// Clear trailing slots so swept subscriptions are not pinned.
	for i := len(live); i < len(bkt.subs); i++ {
		bkt.subs[i] = nil
	}
	bkt.subs = live
	return removed, len(live)
}

// typeName renders a message type for metrics and log attributes.
func typeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	return typ.String()
}
