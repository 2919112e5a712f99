package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/model"
	"github.com/iliyamo/estate-listings/internal/queue"
)

// ContactStore persists contact submissions.
type ContactStore interface {
	Insert(ctx context.Context, s *model.ContactSubmission) error
}

// ContactRecorder stores inbound contact requests and announces them.
type ContactRecorder struct {
	store   ContactStore
	events  EventPublisher
	timeout time.Duration
	log     *zap.Logger
	pending sync.WaitGroup
}

// NewContactRecorder wires the recorder.  events may be nil, in which case
// nothing is published.  Events are published in the background; call
// Drain before exiting.
func NewContactRecorder(store ContactStore, events EventPublisher, timeout time.Duration, log *zap.Logger) *ContactRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactRecorder{store: store, events: events, timeout: timeout, log: log.Named("contacts")}
}

// Record stores sub and fills in its ID and CreatedAt.  Agent contacts are
// stamped with userID; public contacts never carry one.
func (r *ContactRecorder) Record(ctx context.Context, sub *model.ContactSubmission, userID *uint64) error {
	sub.UserID = nil
	if sub.Kind == model.ContactAgent {
		sub.UserID = userID
	}

	storeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	err := r.store.Insert(storeCtx, sub)
	cancel()
	if err != nil {
		return apperr.Storage(err, "insert "+string(sub.Kind))
	}
	r.log.Info("contact recorded",
		zap.String("kind", string(sub.Kind)), zap.Uint64("id", sub.ID))

	r.announce(ctx, sub)
	return nil
}

// Drain blocks until every background publish has finished or timed out.
func (r *ContactRecorder) Drain() {
	r.pending.Wait()
}

// announce publishes off the request path, bounded by the recorder timeout.
func (r *ContactRecorder) announce(ctx context.Context, sub *model.ContactSubmission) {
	if r.events == nil {
		return
	}
	ev := queue.ContactRecordedEvent{
		ContactID:  sub.ID,
		Kind:       string(sub.Kind),
		UserID:     sub.UserID,
		PropertyID: sub.PropertyID,
		Name:       sub.Name,
		Email:      sub.Email,
		Message:    sub.Message,
		RecordedAt: sub.CreatedAt.UTC().Format(time.RFC3339),
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer cancel()
		if err := r.events.PublishContactRecorded(pubCtx, ev); err != nil {
			r.log.Warn("contact event not published", zap.Uint64("id", ev.ContactID), zap.Error(err))
		}
	}()
}
