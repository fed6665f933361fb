package courier

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"
)

// ErrNilOwner is returned by SubscribeOwned when the owner is nil.
var ErrNilOwner = errors.New("courier: subscribe called with nil owner")

// Subscription is the handle for one registration of one handler for one
// message type. It belongs to exactly one Bus and one message type for its
// lifetime.
type Subscription struct {
	id  string
	typ reflect.Type
	bus *Bus

	// invoke and match are type-erased wrappers over the caller's typed
	// handler and filter. match is nil when no filter was given.
	invoke func(msg any)
	match  func(msg any) bool

	// owner is non-nil only for weak-mode subscriptions.
	owner *ownerRef

	disposed atomic.Bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// MessageType returns the message type this subscription is registered for.
func (s *Subscription) MessageType() reflect.Type {
	return s.typ
}

// Unsubscribe marks the subscription disposed and removes it from the bus.
// After Unsubscribe returns, no future Publish call delivers to this
// handler. Calling Unsubscribe more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}

	s.bus.removeSub(s)
	s.bus.cfg.Metrics.RecordSubscriptionChange(typeName(s.typ), -1)

	if s.bus.cfg.Logger != nil {
		s.bus.cfg.Logger.Debug("unsubscribed",
			"subscription_id", s.id,
			"message_type", typeName(s.typ),
		)
	}
}

// alive reports whether the subscription should still receive deliveries.
// A weak-mode subscription whose owner has been collected transitions to
// disposed here; the caller is responsible for sweeping it out. The CAS
// keeps the live-subscription count balanced: whichever of expiry,
// Unsubscribe, or ClearSubscriptions wins the transition records the one
// decrement.
func (s *Subscription) alive() bool {
	if s.disposed.Load() {
		return false
	}
	if s.owner != nil && !s.owner.alive() {
		if s.disposed.CompareAndSwap(false, true) {
			s.bus.cfg.Metrics.RecordSubscriptionChange(typeName(s.typ), -1)
		}
		return false
	}
	return true
}

// ownerRef probes reachability of a weak-mode subscription's owner without
// keeping it alive.
type ownerRef struct {
	probe func() bool
}

func (o *ownerRef) alive() bool {
	return o.probe()
}

// SubscribeOption customizes one Subscribe or SubscribeOwned call.
type SubscribeOption[M any] func(*subscribeSettings[M])

type subscribeSettings[M any] struct {
	filter func(M) bool
}

// WithFilter delivers only messages for which the predicate returns true.
// A panic inside the predicate counts as "does not match" and is reported
// as a fault.
func WithFilter[M any](filter func(M) bool) SubscribeOption[M] {
	return func(st *subscribeSettings[M]) {
		st.filter = filter
	}
}

// Subscribe registers handler for messages of type M. The returned
// Subscription ends delivery via Unsubscribe; the subscription stays live
// until then, so the handler (and anything it closes over) is retained by
// the bus for as long as the subscription is.
//
// Handlers for one type are invoked in the order their Subscribe calls
// completed, relative to other still-live subscriptions.
func Subscribe[M any](b *Bus, handler func(M), opts ...SubscribeOption[M]) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	var st subscribeSettings[M]
	for _, opt := range opts {
		opt(&st)
	}

	s := newSubscription[M](b, st, nil)
	s.invoke = func(msg any) {
		handler(msg.(M))
	}

	b.register(s, st.filter != nil, false)
	return s, nil
}

// SubscribeOwned registers a handler bound to an owning object, holding the
// owner only weakly: once the owner is garbage collected, the subscription
// behaves as unsubscribed and is swept out during a later Publish. Use this
// so the bus can never be the reason a subscriber leaks.
//
// The handler receives the owner as its first argument; pass a method
// expression so the owner is not captured by a closure:
//
//	sub, err := courier.SubscribeOwned(bus, presenter,
//	    (*CartPresenter).OnTotalChanged)
//
// A filter passed via WithFilter must not close over the owner either, or
// the weak reference is defeated.
func SubscribeOwned[M any, O any](b *Bus, owner *O, handler func(*O, M), opts ...SubscribeOption[M]) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if owner == nil {
		return nil, ErrNilOwner
	}

	var st subscribeSettings[M]
	for _, opt := range opts {
		opt(&st)
	}

	ref := weak.Make(owner)
	s := newSubscription[M](b, st, &ownerRef{
		probe: func() bool { return ref.Value() != nil },
	})
	s.invoke = func(msg any) {
		// Resolve at delivery time: the owner may have been collected
		// between the liveness check and the invocation.
		o := ref.Value()
		if o == nil {
			return
		}
		handler(o, msg.(M))
	}

	b.register(s, st.filter != nil, true)
	return s, nil
}

// newSubscription builds the type-erased entry shared by both subscribe
// paths. The invoke closure is filled in by the caller.
func newSubscription[M any](b *Bus, st subscribeSettings[M], owner *ownerRef) *Subscription {
	s := &Subscription{
		id:    fmt.Sprintf("sub-%s", uuid.New().String()[:8]),
		typ:   reflect.TypeOf((*M)(nil)).Elem(),
		bus:   b,
		owner: owner,
	}
	if st.filter != nil {
		filter := st.filter
		s.match = func(msg any) bool {
			return filter(msg.(M))
		}
	}
	return s
}

// register inserts the subscription into its bucket and records the
// registration.
func (b *Bus) register(s *Subscription, filtered, weakMode bool) {
	b.addSub(s)
	b.cfg.Metrics.RecordSubscriptionChange(typeName(s.typ), 1)

	if b.cfg.Logger != nil {
		b.cfg.Logger.Debug("subscribed",
			"subscription_id", s.id,
			"message_type", typeName(s.typ),
			"weak", weakMode,
			"filtered", filtered,
		)
	}
}
