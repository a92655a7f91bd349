package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespaces.
const (
	NamespaceLive     = "live."
	NamespaceView     = "view."
	NamespaceToast    = "toast."
	NamespacePresence = "presence."
	NamespaceSession  = "session."
	NamespaceOutbox   = "outbox."
)

// Well-known event kinds.
const (
	KindStatusChanged   = "session.status_changed"
	KindPresenceChanged = "presence.changed"

	KindThreadChanged   = "view.thread"
	KindPreviewsChanged = "view.previews"
	KindToastsChanged   = "view.toasts"
	KindTypingChanged   = "view.typing"
	KindFriendsChanged  = "view.friends"

	KindToastShown  = "toast.shown"
	KindToastClosed = "toast.closed"
	KindNativeAlert = "toast.native"

	KindSendFailed = "outbox.send_failed"

	// KindLiveConnected and KindLiveDisconnected are published by the live channel
	// around each connection; all other live.* kinds carry the server event name.
	KindLiveConnected    = "live.connected"
	KindLiveDisconnected = "live.disconnected"
)

// LiveKind returns the bus kind for a server event name.
func LiveKind(event string) string {
	return NamespaceLive + event
}
