package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContactConsumer_Handle(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := NewContactConsumer("", zap.New(core))

	uid, pid := uint64(4), uint64(11)
	body, err := json.Marshal(ContactRecordedEvent{
		ContactID: 9, Kind: "agent_contact", UserID: &uid, PropertyID: &pid,
		RecordedAt: "2025-05-01T12:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, c.Handle(body))

	entries := logs.FilterMessage("contact awaiting follow-up").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, uint64(9), ctx["contact_id"])
	assert.Equal(t, uint64(4), ctx["user_id"])
	assert.Equal(t, uint64(11), ctx["property_id"])
	assert.NotContains(t, ctx, "email")
}

func TestContactConsumer_HandleRejectsGarbage(t *testing.T) {
	c := NewContactConsumer("", nil)
	assert.Error(t, c.Handle([]byte("not json")))
	assert.Error(t, c.Handle([]byte(`{"kind":"contact"}`)))
}

func TestContactConsumer_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- NewContactConsumer("amqp://127.0.0.1:1/", nil).Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
