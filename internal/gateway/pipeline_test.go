package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestPipeline builds a pipeline with one admitted connection in r1.
func newTestPipeline(t *testing.T, store Store) (*Pipeline, *Connection, *mockSession) {
	t.Helper()
	registry := newTestRegistry()
	sess := &mockSession{id: "c1"}
	conn, err := registry.Admit(sess, "tok:alice")
	require.NoError(t, err)

	rooms := NewDirectory(registry, zap.NewNop())
	_, err = rooms.Join(context.Background(), "r1", "c1", nil)
	require.NoError(t, err)

	return NewPipeline(store, rooms, zap.NewNop()), conn, sess
}

func TestPipeline_Submit(t *testing.T) {
	store := newMockStore()
	p, conn, sess := newTestPipeline(t, store)

	saved, err := p.Submit(context.Background(), conn, "r1", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "hello", saved.Content)
	assert.Equal(t, "alice", saved.Sender.Username)
	assert.Equal(t, "#AABBCC", saved.Sender.Color)
	assert.False(t, saved.CreatedAt.IsZero())

	// The sender is a member and receives its own message back.
	ev, ok := sess.lastEvent(EventMessage)
	require.True(t, ok)
	assert.Equal(t, saved, ev.Payload)
}

func TestPipeline_SubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		roomID  string
		content string
		wantErr error
	}{
		{name: "missing room", roomID: "", content: "hi", wantErr: ErrNoRoom},
		{name: "empty content", roomID: "r1", content: "", wantErr: ErrEmptyMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			p, conn, sess := newTestPipeline(t, store)

			_, err := p.Submit(context.Background(), conn, tt.roomID, tt.content)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, sess.countEvents(EventMessage))
			assert.Empty(t, store.byRoom, "nothing persisted on validation failure")
		})
	}
}

func TestPipeline_SubmitWithoutIdentity(t *testing.T) {
	p, _, _ := newTestPipeline(t, newMockStore())

	// A connection that never went through admission carries no identity.
	bare := &Connection{sess: &mockSession{id: "c-bare"}}
	_, err := p.Submit(context.Background(), bare, "r1", "hi")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPipeline_SubmitStoreFailure(t *testing.T) {
	store := newMockStore()
	store.saveErr = errors.New("disk full")
	p, conn, sess := newTestPipeline(t, store)

	_, err := p.Submit(context.Background(), conn, "r1", "doomed")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.saveErr)
	assert.Equal(t, 0, sess.countEvents(EventMessage), "no broadcast when persistence fails")
}

func TestPipeline_History(t *testing.T) {
	store := newMockStore()
	p, conn, _ := newTestPipeline(t, store)

	_, err := p.Submit(context.Background(), conn, "r1", "one")
	require.NoError(t, err)
	_, err = p.Submit(context.Background(), conn, "r1", "two")
	require.NoError(t, err)

	ev, err := p.History(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, EventMessageHistory, ev.Name)

	msgs, ok := ev.Payload.([]StoredMessage)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
}

func TestPipeline_HistoryEmptyRoom(t *testing.T) {
	p, _, _ := newTestPipeline(t, newMockStore())

	ev, err := p.History(context.Background(), "never-used")
	require.NoError(t, err)

	// An empty history serializes as [], not null.
	msgs, ok := ev.Payload.([]StoredMessage)
	require.True(t, ok)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestPipeline_HistoryStoreFailure(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("db down")
	p, _, _ := newTestPipeline(t, store)

	_, err := p.History(context.Background(), "r1")
	assert.ErrorIs(t, err, store.listErr)
}
