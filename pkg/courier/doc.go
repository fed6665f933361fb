// Package courier provides a type-keyed, in-process message bus.
//
// # Overview
//
// A Bus lets independent components exchange typed messages without
// referencing each other. Subscriptions are indexed by the message's Go
// type: Publish[M] delivers only to subscribers registered for M, without
// scanning unrelated types.
//
//   - Subscribe registers a handler for one message type, with an optional
//     filter predicate
//   - Publish delivers a message synchronously to every live, matching
//     subscriber on the caller's goroutine
//   - Unsubscribe (on the returned Subscription) deterministically ends
//     delivery; it is idempotent
//   - ClearSubscriptions atomically empties the bus
//
// # Design Influences
//
//   - Event aggregator pattern (Prism, Caliburn.Micro): one bus instance,
//     type-indexed fan-out, per-subscriber fault isolation
//   - Go channels and sync primitives: no goroutines are owned by the bus;
//     Publish blocks until delivery for that call completes
//
// # Lifetime
//
// Subscription lifetime is handle-driven by default: keep the Subscription
// and call Unsubscribe when delivery is no longer wanted. For handlers
// bound to a longer-lived owning object, SubscribeOwned ties the
// subscription to that owner's reachability instead: the bus holds the
// owner only weakly, and once the owner is garbage collected the
// subscription expires silently and is swept out during a later Publish.
// Weak expiry is opt-in; nothing expires behind your back unless you ask
// for it.
//
// # Fault Isolation
//
// A panic inside a filter or handler never propagates to the publisher and
// never suppresses delivery to other subscribers. Faults are reported
// through Config.OnFault for diagnostics (see the faultlog subpackage for a
// persistent journal).
//
// # Concurrency
//
// All Bus operations are safe for concurrent use from arbitrary
// goroutines. Filters and handlers run outside the bus's internal locks, so
// a handler may itself call Subscribe, Publish, or Unsubscribe (including
// for the same message type) without deadlocking. Within a single Publish
// call, handlers run one at a time in subscription order; across concurrent
// Publish calls no relative ordering is guaranteed.
package courier
