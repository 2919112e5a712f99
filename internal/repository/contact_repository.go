package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/estate-listings/internal/model"
)

// ContactRepo writes contact and agent-contact submissions.
type ContactRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func contactTable(kind model.ContactKind) (string, error) {
	switch kind {
	case model.ContactPublic:
		return "contacts", nil
	case model.ContactAgent:
		return "agent_contacts", nil
	}
	return "", fmt.Errorf("unknown contact kind %q", kind)
}

// Insert stores the submission and fills in ID and CreatedAt.
func (r *ContactRepo) Insert(ctx context.Context, s *model.ContactSubmission) error {
	table, err := contactTable(s.Kind)
	if err != nil {
		return err
	}
	createdAt := r.now().Truncate(time.Second)
	metadata := s.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	var body any
	if len(s.RequestBody) > 0 {
		body = []byte(s.RequestBody)
	}

	cols := "name, email, message, property_id, request_path, request_body, response_status, user_agent, ip_address, metadata, created_at"
	args := []any{s.Name, s.Email, s.Message, s.PropertyID, s.RequestPath, body,
		s.ResponseStatus, s.UserAgent, s.IPAddress, []byte(metadata), createdAt}
	marks := "?,?,?,?,?,?,?,?,?,?,?"
	if s.Kind == model.ContactAgent {
		cols = "user_id, " + cols
		args = append([]any{s.UserID}, args...)
		marks = "?," + marks
	}

	res, err := r.db.ExecContext(ctx, "INSERT INTO "+table+" ("+cols+") VALUES ("+marks+")", args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.CreatedAt = createdAt
	return nil
}
