package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/middleware"
	"github.com/iliyamo/estate-listings/internal/model"
	"github.com/iliyamo/estate-listings/internal/service"
)

// ContactRecorder stores contact submissions.
type ContactRecorder interface {
	Record(ctx context.Context, sub *model.ContactSubmission, userID *uint64) error
}

// ContactHandler serves the public contact form and signed-in agent contacts.
type ContactHandler struct {
	recorder ContactRecorder
}

func NewContactHandler(r ContactRecorder) *ContactHandler {
	return &ContactHandler{recorder: r}
}

type contactReq struct {
	Name       *string         `json:"name"`
	Email      *string         `json:"email"`
	Message    *string         `json:"message"`
	PropertyID *uint64         `json:"property_id"`
	Metadata   json.RawMessage `json:"metadata"`
}

// readBody returns the raw body and decodes it into req.  Empty bodies
// decode to the zero request.
func readBody(c echo.Context, req *contactReq) (json.RawMessage, error) {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, apperr.Validation("invalid body")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, req); err != nil {
		return nil, apperr.Validation("invalid body")
	}
	return raw, nil
}

func blank(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }

func (r contactReq) validate() error {
	switch {
	case blank(r.Name):
		return apperr.Validation("name should not be empty")
	case blank(r.Email):
		return apperr.Validation("email should not be empty")
	case !service.ValidEmail(strings.TrimSpace(*r.Email)):
		return apperr.Validation("email must be an email")
	case blank(r.Message):
		return apperr.Validation("message should not be empty")
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *ContactHandler) submission(c echo.Context, kind model.ContactKind, req contactReq, raw json.RawMessage, status int) *model.ContactSubmission {
	r := c.Request()
	sub := &model.ContactSubmission{
		Kind:           kind,
		Name:           req.Name,
		Email:          req.Email,
		Message:        req.Message,
		PropertyID:     req.PropertyID,
		RequestPath:    r.URL.Path,
		RequestBody:    raw,
		ResponseStatus: status,
		UserAgent:      optional(r.UserAgent()),
		IPAddress:      optional(c.RealIP()),
	}
	if len(req.Metadata) > 0 && !bytes.Equal(req.Metadata, []byte("null")) {
		sub.Metadata = req.Metadata
	}
	return sub
}

// Create handles POST /contacts.
func (h *ContactHandler) Create(c echo.Context) error {
	var req contactReq
	raw, err := readBody(c, &req)
	if err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}
	sub := h.submission(c, model.ContactPublic, req, raw, http.StatusCreated)
	if err := h.recorder.Record(c.Request().Context(), sub, nil); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"ok":         true,
		"id":         sub.ID,
		"created_at": sub.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// AgentContact handles POST /agent-contact.  Every field is optional; the
// caller's user ID comes from the session.
func (h *ContactHandler) AgentContact(c echo.Context) error {
	var req contactReq
	raw, err := readBody(c, &req)
	if err != nil {
		return err
	}
	var uid *uint64
	if ident, ok := middleware.CurrentIdentity(c); ok {
		uid = &ident.UserID
	}
	sub := h.submission(c, model.ContactAgent, req, raw, http.StatusAccepted)
	if err := h.recorder.Record(c.Request().Context(), sub, uid); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, echo.Map{"ok": true, "id": sub.ID})
}
