package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by sendq. Subscribers filter by namespace prefix,
// e.g. "queue." receives every queue event.
const (
	KindQueueReplaced    = "queue.replaced"
	KindQueueRemoved     = "queue.removed"
	KindQueueRestored    = "queue.restored"
	KindQueueRefreshing  = "queue.refreshing"
	KindDispatchSent     = "dispatch.sent"
	KindDispatchFailed   = "dispatch.failed"
	KindDispatchCanceled = "dispatch.canceled"
	KindStatusChanged    = "session.status_changed"
	KindAuthQR           = "session.qr_generated"
	KindAuthenticated    = "session.authenticated"
	KindAuthFailed       = "session.auth_failed"
)
