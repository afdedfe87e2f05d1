// Package notify fans state-change snapshots out to live subscribers.
//
// Each broadcast is scoped to one topic and carries only the entities changed
// by the triggering operation. Delivery is best-effort and at-most-once: a
// subscriber that cannot keep up is evicted and its channel closed, and the
// caller of Broadcast never observes the failure.
package notify
