package gateway

import "sync"

// Presence tracks which logical users are online. A user key (the unique
// username) maps to the set of connection ids currently attached for that
// user, so multi-tab users count once.
//
// Invariant: an entry exists iff its connection set is non-empty, and
// Count() is exactly the number of entries — never the number of raw
// connections. byConn is the incrementally maintained reverse index that
// makes Detach O(1) instead of a scan over all users.
//
// A single mutex serializes all mutations. Contention here is a handful of
// map operations per connect/disconnect; per-key locking would buy nothing.
type Presence struct {
	mu     sync.Mutex
	users  map[string]map[string]struct{} // user key -> connection ids
	byConn map[string]string              // connection id -> user key
}

// NewPresence creates an empty Presence tracker.
func NewPresence() *Presence {
	return &Presence{
		users:  make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

// Attach adds the connection to the user's set. It reports whether this was
// the user's first live connection — only then did the distinct-user count
// change and a count notification is due.
func (p *Presence) Attach(userKey, connID string) (first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.users[userKey]
	if !ok {
		set = make(map[string]struct{})
		p.users[userKey] = set
		first = true
	}
	set[connID] = struct{}{}
	p.byConn[connID] = userKey
	return first
}

// Detach removes the connection from its user's set via the reverse index.
// It reports the user key and whether this was the user's last connection —
// only then did the count change. Detaching an unknown connection is a
// no-op reporting last=false.
func (p *Presence) Detach(connID string) (userKey string, last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userKey, ok := p.byConn[connID]
	if !ok {
		return "", false
	}
	delete(p.byConn, connID)

	set := p.users[userKey]
	delete(set, connID)
	if len(set) == 0 {
		delete(p.users, userKey)
		return userKey, true
	}
	return userKey, false
}

// Count returns the number of distinct users with at least one live
// connection.
func (p *Presence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.users)
}

// ConnectionsOf returns a copy of the connection ids attached for a user
// key, or nil if the user is not online.
func (p *Presence) ConnectionsOf(userKey string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.users[userKey]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// UserOf returns the user key a connection is attached under.
func (p *Presence) UserOf(connID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.byConn[connID]
	return key, ok
}
