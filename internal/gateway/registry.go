package gateway

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Identity is the verified identity attached to a connection at admission.
type Identity struct {
	UserID   string
	Username string
	Color    string
}

// Session is the transport half of a connection. The gateway never touches
// the websocket directly — it only enqueues events and asks for closure, so
// the core is testable with in-memory fakes.
//
// Enqueue must not block: implementations buffer outbound events and return
// an error when the buffer is full or the session is closed. A failed
// enqueue never stalls delivery to other connections.
type Session interface {
	ID() string
	Enqueue(ev Event) error
	Close()
}

// Verifier validates a handshake token and returns the identity it encodes.
// Implemented by the auth service; the gateway never issues or revokes
// tokens itself.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(token string) (Identity, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(token string) (Identity, error) { return f(token) }

// Connection is one admitted transport session with its identity.
// Connections are owned exclusively by the Registry; other components hold
// only connection ids and resolve them through the registry when they need
// to deliver an event.
type Connection struct {
	sess     Session
	identity Identity
}

// ID returns the transport-assigned connection id.
func (c *Connection) ID() string { return c.sess.ID() }

// Identity returns the identity attached at admission.
func (c *Connection) Identity() Identity { return c.identity }

// Enqueue queues an event for delivery to this connection.
func (c *Connection) Enqueue(ev Event) error { return c.sess.Enqueue(ev) }

// Registry tracks all live connections. Admission verifies the handshake
// token; removal is idempotent so the cascading disconnect cleanup runs
// exactly once no matter how many error paths race to trigger it.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	verifier Verifier
	logger   *zap.Logger
}

// NewRegistry creates an empty Registry using the given token verifier.
func NewRegistry(verifier Verifier, logger *zap.Logger) *Registry {
	return &Registry{
		conns:    make(map[string]*Connection),
		verifier: verifier,
		logger:   logger.Named("registry"),
	}
}

// Admit verifies the token and registers the session. A connection with no
// valid token is refused — there is no anonymous admission path.
// Returns ErrUnauthorized (wrapping the verifier error) on refusal.
func (r *Registry) Admit(sess Session, token string) (*Connection, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	identity, err := r.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	conn := &Connection{sess: sess, identity: identity}

	r.mu.Lock()
	r.conns[sess.ID()] = conn
	r.mu.Unlock()

	return conn, nil
}

// Get resolves a connection id to its live connection.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Remove claims the connection for cleanup. The second and every later call
// for the same id reports false, which is how Gateway.Disconnect guarantees
// the cascade runs exactly once under concurrent disconnect triggers.
func (r *Registry) Remove(id string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	return conn, true
}

// Broadcast enqueues an event to every live connection. Used for
// process-wide notices such as online-users-count.
func (r *Registry) Broadcast(ev Event) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	// Enqueue outside the lock; Enqueue is non-blocking by contract.
	for _, c := range conns {
		if err := c.Enqueue(ev); err != nil {
			r.logger.Debug("broadcast enqueue failed",
				zap.String("conn_id", c.ID()),
				zap.String("event", ev.Name),
				zap.Error(err),
			)
		}
	}
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
