package chat

// Status is the delivery status of a message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusSeen      Status = "seen"
	StatusFailed    Status = "failed"
	StatusBlocked   Status = "blocked"
)

// rank orders the confirmed chain. failed and blocked sit outside it.
var rank = map[Status]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusSeen:      3,
}

// ParseStatus maps a server status string, defaulting to sent.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusSent, StatusDelivered, StatusSeen, StatusBlocked, StatusFailed:
		return Status(s)
	}
	return StatusSent
}

// CanAdvanceTo reports whether moving from s to next respects delivery ordering.
// failed and blocked are reachable only from sending. Leaving failed requires a
// retry under a new client id and is not a transition.
func (s Status) CanAdvanceTo(next Status) bool {
	switch next {
	case StatusFailed, StatusBlocked:
		return s == StatusSending
	}
	from, ok := rank[s]
	if !ok {
		return false
	}
	to, ok := rank[next]
	return ok && to > from
}

// Advance returns next if the transition is allowed, s otherwise.
func (s Status) Advance(next Status) Status {
	if s.CanAdvanceTo(next) {
		return next
	}
	return s
}

// Pending reports whether the message is still awaiting confirmation.
func (s Status) Pending() bool { return s == StatusSending }

// Symbol is a compact glyph for terminal rendering.
func (s Status) Symbol() string {
	switch s {
	case StatusSending:
		return "…"
	case StatusSent:
		return "✓"
	case StatusDelivered:
		return "✓✓"
	case StatusSeen:
		return "👁"
	case StatusFailed:
		return "!"
	case StatusBlocked:
		return "⊘"
	}
	return ""
}
