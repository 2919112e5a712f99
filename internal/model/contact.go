package model

import (
	"encoding/json"
	"time"
)

// ContactKind selects the table a submission is written to.
type ContactKind string

const (
	ContactPublic ContactKind = "contact"       // contacts: public form
	ContactAgent  ContactKind = "agent_contact" // agent_contacts: signed-in users
)

// ContactSubmission is one inbound contact request.  Rows are written once
// and never updated; two identical submissions produce two rows.
type ContactSubmission struct {
	ID             uint64
	Kind           ContactKind
	UserID         *uint64 // agent contacts only, from the session identity
	Name           *string
	Email          *string
	Message        *string
	PropertyID     *uint64
	RequestPath    string
	RequestBody    json.RawMessage // original body, stored verbatim
	ResponseStatus int
	UserAgent      *string
	IPAddress      *string
	Metadata       json.RawMessage
	CreatedAt      time.Time
}
