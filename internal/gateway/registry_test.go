package gateway

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry() *Registry {
	return NewRegistry(testVerifier, zap.NewNop())
}

func TestRegistry_Admit(t *testing.T) {
	r := newTestRegistry()

	conn, err := r.Admit(&mockSession{id: "c1"}, "tok:alice")
	require.NoError(t, err)
	assert.Equal(t, "c1", conn.ID())
	assert.Equal(t, "alice", conn.Identity().Username)
	assert.Equal(t, "user-alice", conn.Identity().UserID)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get("c1")
	require.True(t, ok)
	assert.Same(t, conn, got)
}

func TestRegistry_AdmitRefused(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "invalid token", token: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Admit(&mockSession{id: "c1"}, tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestRegistry_RemoveClaimsOnce(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Admit(&mockSession{id: "c1"}, "tok:alice")
	require.NoError(t, err)

	conn, ok := r.Remove("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn.ID())

	_, ok = r.Remove("c1")
	assert.False(t, ok, "second removal must not claim the connection again")
	_, ok = r.Get("c1")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentRemove(t *testing.T) {
	// Racing removers for the same connection: exactly one wins the claim.
	for round := 0; round < 50; round++ {
		r := newTestRegistry()
		_, err := r.Admit(&mockSession{id: "c1"}, "tok:alice")
		require.NoError(t, err)

		const racers = 8
		var wg sync.WaitGroup
		wins := make(chan bool, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok := r.Remove("c1")
				wins <- ok
			}()
		}
		wg.Wait()
		close(wins)

		won := 0
		for ok := range wins {
			if ok {
				won++
			}
		}
		require.Equal(t, 1, won, "round %d", round)
	}
}

func TestRegistry_Broadcast(t *testing.T) {
	r := newTestRegistry()

	sessions := make([]*mockSession, 3)
	for i := range sessions {
		sessions[i] = &mockSession{id: fmt.Sprintf("c%d", i)}
		_, err := r.Admit(sessions[i], "tok:alice")
		require.NoError(t, err)
	}
	// One session with a full buffer must not block delivery to the rest.
	sessions[1].full = true

	r.Broadcast(Event{Name: EventOnlineUsersCount, Payload: 1})

	assert.Equal(t, 1, sessions[0].countEvents(EventOnlineUsersCount))
	assert.Equal(t, 0, sessions[1].countEvents(EventOnlineUsersCount))
	assert.Equal(t, 1, sessions[2].countEvents(EventOnlineUsersCount))
}
