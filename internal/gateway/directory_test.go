package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestDirectory builds a directory over a registry with n admitted mock
// sessions named c0..c(n-1).
func newTestDirectory(t *testing.T, n int) (*Directory, []*mockSession) {
	t.Helper()
	registry := newTestRegistry()
	sessions := make([]*mockSession, n)
	for i := range sessions {
		sessions[i] = &mockSession{id: fmt.Sprintf("c%d", i)}
		_, err := registry.Admit(sessions[i], "tok:alice")
		require.NoError(t, err)
	}
	return NewDirectory(registry, zap.NewNop()), sessions
}

func TestDirectory_Join(t *testing.T) {
	d, sessions := newTestDirectory(t, 2)
	ctx := context.Background()

	joined, err := d.Join(ctx, "r1", "c0", nil)
	require.NoError(t, err)
	assert.True(t, joined)

	joined, err = d.Join(ctx, "r1", "c1", nil)
	require.NoError(t, err)
	assert.True(t, joined)

	assert.True(t, d.Contains("r1", "c0"))
	assert.True(t, d.Contains("r1", "c1"))
	assert.Equal(t, 2, d.MemberCount("r1"))
	assert.Equal(t, 1, d.RoomCount())

	// The first member was notified about the second; the joiner was not
	// notified about itself.
	ev, ok := sessions[0].lastEvent(EventUserConnected)
	require.True(t, ok)
	assert.Equal(t, "c1", ev.Payload)
	assert.Equal(t, 0, sessions[1].countEvents(EventUserConnected))
}

func TestDirectory_JoinIdempotent(t *testing.T) {
	d, sessions := newTestDirectory(t, 2)
	ctx := context.Background()

	_, err := d.Join(ctx, "r1", "c0", nil)
	require.NoError(t, err)
	_, err = d.Join(ctx, "r1", "c1", nil)
	require.NoError(t, err)

	historyCalls := 0
	joined, err := d.Join(ctx, "r1", "c1", func(context.Context) (Event, error) {
		historyCalls++
		return Event{Name: EventMessageHistory, Payload: []StoredMessage{}}, nil
	})
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Equal(t, 0, historyCalls, "no history reload on re-join")
	assert.Equal(t, 1, sessions[0].countEvents(EventUserConnected), "no duplicate notice")
	assert.Equal(t, 2, d.MemberCount("r1"))
}

func TestDirectory_JoinDeliversHistoryFirst(t *testing.T) {
	d, sessions := newTestDirectory(t, 1)

	history := []StoredMessage{{ID: "m1", Content: "old"}}
	joined, err := d.Join(context.Background(), "r1", "c0", func(context.Context) (Event, error) {
		return Event{Name: EventMessageHistory, Payload: history}, nil
	})
	require.NoError(t, err)
	assert.True(t, joined)

	evs := sessions[0].received()
	require.Len(t, evs, 1)
	assert.Equal(t, EventMessageHistory, evs[0].Name)
	assert.Equal(t, history, evs[0].Payload)
}

func TestDirectory_JoinAbortsOnHistoryError(t *testing.T) {
	d, sessions := newTestDirectory(t, 1)

	wantErr := errors.New("history unavailable")
	joined, err := d.Join(context.Background(), "r1", "c0", func(context.Context) (Event, error) {
		return Event{}, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.False(t, joined)
	assert.False(t, d.Contains("r1", "c0"))
	assert.Empty(t, sessions[0].received())
}

func TestDirectory_LeaveAll(t *testing.T) {
	d, sessions := newTestDirectory(t, 3)
	ctx := context.Background()

	// c0 is in both rooms, c1 in r1 only, c2 in r2 only.
	for _, j := range []struct{ room, conn string }{
		{"r1", "c0"}, {"r2", "c0"}, {"r1", "c1"}, {"r2", "c2"},
	} {
		_, err := d.Join(ctx, j.room, j.conn, nil)
		require.NoError(t, err)
	}

	rooms := d.LeaveAll("c0")
	assert.ElementsMatch(t, []string{"r1", "r2"}, rooms)
	assert.False(t, d.Contains("r1", "c0"))
	assert.False(t, d.Contains("r2", "c0"))

	// Remaining members of each room were notified once.
	ev, ok := sessions[1].lastEvent(EventUserDisconnected)
	require.True(t, ok)
	assert.Equal(t, "c0", ev.Payload)
	assert.Equal(t, 1, sessions[1].countEvents(EventUserDisconnected))
	assert.Equal(t, 1, sessions[2].countEvents(EventUserDisconnected))
}

func TestDirectory_LeaveAllUnknownConnection(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	assert.Nil(t, d.LeaveAll("never-joined"))
}

func TestDirectory_EmptyRoomsAreRetained(t *testing.T) {
	d, _ := newTestDirectory(t, 1)
	ctx := context.Background()

	_, err := d.Join(ctx, "r1", "c0", nil)
	require.NoError(t, err)
	d.LeaveAll("c0")

	assert.Equal(t, 0, d.MemberCount("r1"))
	assert.Equal(t, 1, d.RoomCount(), "emptied rooms stay materialized")

	// A later join still works against the retained room.
	joined, err := d.Join(ctx, "r1", "c0", nil)
	require.NoError(t, err)
	assert.True(t, joined)
}

func TestDirectory_BroadcastExclusion(t *testing.T) {
	d, sessions := newTestDirectory(t, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := d.Join(ctx, "r1", fmt.Sprintf("c%d", i), nil)
		require.NoError(t, err)
	}

	ev := Event{Name: EventMessage, Payload: "x"}
	d.Broadcast("r1", ev, "c1")

	assert.Equal(t, 1, sessions[0].countEvents(EventMessage))
	assert.Equal(t, 0, sessions[1].countEvents(EventMessage))
	assert.Equal(t, 1, sessions[2].countEvents(EventMessage))

	// Empty exclusion delivers to everyone; unknown rooms are a no-op.
	d.Broadcast("r1", ev, "")
	assert.Equal(t, 1, sessions[1].countEvents(EventMessage))
	d.Broadcast("no-such-room", ev, "")
}

func TestDirectory_BroadcastPrepared(t *testing.T) {
	d, sessions := newTestDirectory(t, 2)
	ctx := context.Background()
	_, err := d.Join(ctx, "r1", "c0", nil)
	require.NoError(t, err)
	_, err = d.Join(ctx, "r1", "c1", nil)
	require.NoError(t, err)

	err = d.BroadcastPrepared(ctx, "r1", func(context.Context) (Event, error) {
		return Event{Name: EventMessage, Payload: "persisted"}, nil
	})
	require.NoError(t, err)

	// Delivered to all members, sender included.
	assert.Equal(t, 1, sessions[0].countEvents(EventMessage))
	assert.Equal(t, 1, sessions[1].countEvents(EventMessage))
}

func TestDirectory_BroadcastPreparedError(t *testing.T) {
	d, sessions := newTestDirectory(t, 1)
	ctx := context.Background()
	_, err := d.Join(ctx, "r1", "c0", nil)
	require.NoError(t, err)

	wantErr := errors.New("store failed")
	err = d.BroadcastPrepared(ctx, "r1", func(context.Context) (Event, error) {
		return Event{}, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, sessions[0].countEvents(EventMessage), "nothing broadcast on prepare failure")
}
