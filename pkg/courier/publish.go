package courier

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// Publish delivers msg synchronously to every live subscription for type M,
// in subscription order, on the calling goroutine. It returns once every
// matching subscriber has been invoked (or skipped, or faulted).
//
// Publishing a type with zero subscribers is a no-op. A panic inside one
// subscriber's filter or handler never reaches the caller and never
// suppresses delivery to the remaining subscribers.
func Publish[M any](b *Bus, msg M) error {
	return PublishContext(context.Background(), b, msg)
}

// PublishContext is Publish with a caller-supplied context, used only to
// parent the delivery trace span. Delivery itself is not cancellable: the
// bus has no suspension points.
func PublishContext[M any](ctx context.Context, b *Bus, msg M) error {
	if isNilMessage(msg) {
		return ErrNilMessage
	}
	b.deliver(ctx, reflect.TypeOf((*M)(nil)).Elem(), msg)
	return nil
}

// deliver runs one Publish call: snapshot, filter, invoke, sweep.
func (b *Bus) deliver(ctx context.Context, typ reflect.Type, msg any) {
	start := time.Now()
	ctx, span := b.cfg.Spans.StartPublishSpan(ctx, typeName(typ))

	bkt := b.lookup(typ)
	if bkt == nil {
		b.cfg.Metrics.RecordPublish(ctx, typeName(typ), 0, time.Since(start))
		b.cfg.Spans.EndSpan(span, 0)
		return
	}

	snapshot := bkt.snapshot()

	delivered := 0
	swept := false
	for _, s := range snapshot {
		if !s.alive() {
			// Disposed, or a weak owner was reclaimed. From the delivery
			// algorithm's perspective the two are indistinguishable.
			swept = true
			continue
		}
		if !b.safeMatch(s, typ, msg) {
			continue
		}
		b.safeInvoke(s, typ, msg)
		delivered++
	}

	// Publish doubles as the sweep point for expired entries, so stale
	// registry growth is bounded by one call's worth of snapshots.
	if swept {
		removed, remaining := bkt.compact()
		if removed > 0 {
			b.cfg.Metrics.RecordSweep(ctx, typeName(typ), removed)
		}
		if remaining == 0 {
			b.tryDropBucket(typ)
		}
	}

	b.cfg.Metrics.RecordPublish(ctx, typeName(typ), delivered, time.Since(start))
	b.cfg.Spans.EndSpan(span, delivered)
}

// safeMatch evaluates the subscription's filter, if any. A panicking
// filter counts as "does not match".
func (b *Bus) safeMatch(s *Subscription, typ reflect.Type, msg any) (ok bool) {
	if s.match == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			b.reportFault(StageFilter, typ, s.id, r)
		}
	}()
	return s.match(msg)
}

// safeInvoke runs the handler, containing any panic.
func (b *Bus) safeInvoke(s *Subscription, typ reflect.Type, msg any) {
	defer func() {
		if r := recover(); r != nil {
			b.reportFault(StageHandler, typ, s.id, r)
		}
	}()
	s.invoke(msg)
}

// reportFault surfaces a recovered subscriber panic through the logger,
// metrics, and the OnFault hook. The hook runs with its own recover so a
// faulty hook cannot break delivery either.
func (b *Bus) reportFault(stage string, typ reflect.Type, subID string, recovered any) {
	err, isErr := recovered.(error)
	if !isErr {
		err = fmt.Errorf("panic: %v", recovered)
	}

	if b.cfg.Logger != nil {
		b.cfg.Logger.Warn("subscriber fault",
			"stage", stage,
			"message_type", typeName(typ),
			"subscription_id", subID,
			"error", err.Error(),
		)
	}
	b.cfg.Metrics.RecordFault(context.Background(), typeName(typ), stage)

	if b.cfg.OnFault == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	b.cfg.OnFault(Fault{
		Stage:          stage,
		MessageType:    typ,
		SubscriptionID: subID,
		Err:            err,
		Timestamp:      time.Now(),
	})
}

// isNilMessage reports whether msg is nil for kinds that have a nil form.
// Value types can never be nil and always pass.
func isNilMessage(msg any) bool {
	if msg == nil {
		return true
	}
	v := reflect.ValueOf(msg)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
