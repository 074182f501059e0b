package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRelay(t *testing.T) (*Relay, *Registry, *Presence) {
	t.Helper()
	registry := newTestRegistry()
	presence := NewPresence()
	return NewRelay(registry, presence, zap.NewNop()), registry, presence
}

func TestRelay_ToConnectionID(t *testing.T) {
	relay, registry, _ := newTestRelay(t)

	target := &mockSession{id: "c-bob"}
	_, err := registry.Admit(target, "tok:bob")
	require.NoError(t, err)

	signal := json.RawMessage(`{"type":"offer"}`)
	assert.True(t, relay.Relay("c-alice", "c-bob", signal))

	ev, ok := target.lastEvent(EventSignal)
	require.True(t, ok)
	fwd := ev.Payload.(SignalForward)
	assert.Equal(t, "c-alice", fwd.UserID)
	assert.JSONEq(t, `{"type":"offer"}`, string(fwd.Signal))
}

func TestRelay_ToUserKeyReachesAllConnections(t *testing.T) {
	relay, registry, presence := newTestRelay(t)

	tab1 := &mockSession{id: "c-b1"}
	tab2 := &mockSession{id: "c-b2"}
	for _, sess := range []*mockSession{tab1, tab2} {
		_, err := registry.Admit(sess, "tok:bob")
		require.NoError(t, err)
		presence.Attach("bob", sess.ID())
	}

	assert.True(t, relay.Relay("c-alice", "bob", json.RawMessage(`{}`)))

	assert.Equal(t, 1, tab1.countEvents(EventSignal))
	assert.Equal(t, 1, tab2.countEvents(EventSignal))
}

func TestRelay_ConnectionIDWinsOverUserKey(t *testing.T) {
	// When the target resolves as a live connection id, the signal goes to
	// that connection only, even if a user happens to share the name.
	relay, registry, presence := newTestRelay(t)

	direct := &mockSession{id: "bob"}
	_, err := registry.Admit(direct, "tok:carol")
	require.NoError(t, err)

	other := &mockSession{id: "c-b1"}
	_, err = registry.Admit(other, "tok:bob")
	require.NoError(t, err)
	presence.Attach("bob", "c-b1")

	assert.True(t, relay.Relay("c-alice", "bob", json.RawMessage(`{}`)))

	assert.Equal(t, 1, direct.countEvents(EventSignal))
	assert.Equal(t, 0, other.countEvents(EventSignal))
}

func TestRelay_UnresolvedTargetDropped(t *testing.T) {
	relay, _, _ := newTestRelay(t)
	assert.False(t, relay.Relay("c-alice", "nobody", json.RawMessage(`{}`)))
}
