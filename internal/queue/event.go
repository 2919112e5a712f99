// Package queue carries contact follow-up events between the API and its worker.
package queue

// ContactRecordedQueue is the durable queue contact events are routed to.
const ContactRecordedQueue = "contact.recorded"

// ContactRecordedEvent is published after a contact or agent-contact
// submission has been stored.  It carries enough for a follow-up worker to
// notify an agent without reading the primary database.
type ContactRecordedEvent struct {
	ContactID  uint64  `json:"contact_id"`
	Kind       string  `json:"kind"`
	UserID     *uint64 `json:"user_id,omitempty"`
	PropertyID *uint64 `json:"property_id,omitempty"`
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Message    *string `json:"message,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}
