package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// room is one broadcast scope. members is guarded by mu, and mu doubles as
// the room's ordering lock: whoever holds it owns the room's delivery order.
// Fan-out happens under mu, so two broadcasts to the same room can never
// interleave — delivery order equals submission order as observed here.
type room struct {
	id      string
	mu      sync.Mutex
	members map[string]struct{} // connection ids
}

// Directory maps room ids to member connection ids. Rooms are materialized
// lazily on first join and retained when they empty out, so a later join
// still replays history correctly. Membership is keyed by connection id,
// not user identity: a user joined from two devices must receive room
// events independently on each.
//
// Locking is fine-grained: the directory lock guards only the room map and
// the per-connection reverse index; each room carries its own lock, so
// traffic in unrelated rooms never serializes.
//
// Lock order: a room's mu may be held while taking the directory mu, never
// the other way around while both are needed.
type Directory struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	byConn   map[string]map[string]struct{} // connection id -> room ids
	registry *Registry
	logger   *zap.Logger
}

// NewDirectory creates an empty Directory resolving sessions through the
// given registry.
func NewDirectory(registry *Registry, logger *zap.Logger) *Directory {
	return &Directory{
		rooms:    make(map[string]*room),
		byConn:   make(map[string]map[string]struct{}),
		registry: registry,
		logger:   logger.Named("rooms"),
	}
}

// getOrCreate returns the room entry, materializing it on first use.
func (d *Directory) getOrCreate(roomID string) *room {
	d.mu.RLock()
	rm, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if ok {
		return rm
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rm, ok = d.rooms[roomID]; ok {
		return rm
	}
	rm = &room{id: roomID, members: make(map[string]struct{})}
	d.rooms[roomID] = rm
	return rm
}

// Join adds the connection to the room and notifies the other members with
// a user-connected event. Joining a room the connection is already in is a
// no-op: no duplicate notice, no history resend.
//
// loadHistory, when non-nil, is called under the room lock and its event is
// enqueued to the joiner before the membership is recorded. Because message
// submission also persists and fans out under the same lock, the joiner
// receives history strictly before any message submitted after its join —
// and every message persisted before the join is in the history. No message
// is skipped or delivered twice across the history/live boundary.
//
// If loadHistory fails the join is aborted and the error returned; the
// caller reports it to the joining connection only.
func (d *Directory) Join(ctx context.Context, roomID, connID string, loadHistory func(context.Context) (Event, error)) (bool, error) {
	rm := d.getOrCreate(roomID)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.members[connID]; ok {
		return false, nil
	}

	if loadHistory != nil {
		ev, err := loadHistory(ctx)
		if err != nil {
			return false, err
		}
		d.emit(connID, ev)
	}

	rm.members[connID] = struct{}{}

	d.mu.Lock()
	set, ok := d.byConn[connID]
	if !ok {
		set = make(map[string]struct{})
		d.byConn[connID] = set
	}
	set[roomID] = struct{}{}
	d.mu.Unlock()

	d.fanout(rm, Event{Name: EventUserConnected, Payload: connID}, connID)

	d.logger.Debug("connection joined room",
		zap.String("room_id", roomID),
		zap.String("conn_id", connID),
		zap.Int("members", len(rm.members)),
	)
	return true, nil
}

// LeaveAll removes the connection from every room it is a member of,
// broadcasting a user-disconnected notice to the remaining members of each.
// The membership removal happens before the notice is sent, so no member
// list observed afterwards still contains the leaver. Emptied rooms are
// retained, not deleted.
func (d *Directory) LeaveAll(connID string) []string {
	d.mu.Lock()
	set := d.byConn[connID]
	delete(d.byConn, connID)
	d.mu.Unlock()

	if len(set) == 0 {
		return nil
	}

	roomIDs := make([]string, 0, len(set))
	for roomID := range set {
		roomIDs = append(roomIDs, roomID)

		d.mu.RLock()
		rm, ok := d.rooms[roomID]
		d.mu.RUnlock()
		if !ok {
			continue
		}

		rm.mu.Lock()
		if _, member := rm.members[connID]; member {
			delete(rm.members, connID)
			d.fanout(rm, Event{Name: EventUserDisconnected, Payload: connID}, connID)
		}
		rm.mu.Unlock()
	}

	d.logger.Debug("connection left all rooms",
		zap.String("conn_id", connID),
		zap.Strings("room_ids", roomIDs),
	)
	return roomIDs
}

// Broadcast delivers an event to every current member of the room, minus
// the excluded connection id (empty string excludes nobody). Broadcasting
// to an unknown room is a no-op.
func (d *Directory) Broadcast(roomID string, ev Event, exclude string) {
	d.mu.RLock()
	rm, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	d.fanout(rm, ev, exclude)
	rm.mu.Unlock()
}

// BroadcastPrepared runs prepare under the room's ordering lock and fans
// its event out to all members, sender included. Pipeline.Submit uses this
// to make persist-then-broadcast atomic with respect to the room: no other
// message or join can slot in between the two.
func (d *Directory) BroadcastPrepared(ctx context.Context, roomID string, prepare func(context.Context) (Event, error)) error {
	rm := d.getOrCreate(roomID)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	ev, err := prepare(ctx)
	if err != nil {
		return err
	}
	d.fanout(rm, ev, "")
	return nil
}

// Contains reports whether the connection is currently a member of the room.
func (d *Directory) Contains(roomID, connID string) bool {
	d.mu.RLock()
	rm, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	_, member := rm.members[connID]
	return member
}

// MemberCount returns the current member count of a room (0 for unknown rooms).
func (d *Directory) MemberCount(roomID string) int {
	d.mu.RLock()
	rm, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// RoomCount returns the number of materialized rooms, empty ones included.
func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// fanout enqueues ev to every member except exclude. Callers must hold the
// room's mu. Enqueue failures are logged and otherwise ignored here — a
// full buffer makes the session close itself, and the disconnect cascade
// cleans the membership up through the normal path.
func (d *Directory) fanout(rm *room, ev Event, exclude string) {
	for connID := range rm.members {
		if connID == exclude {
			continue
		}
		d.emit(connID, ev)
	}
}

// emit resolves a connection id and enqueues the event to it.
func (d *Directory) emit(connID string, ev Event) {
	conn, ok := d.registry.Get(connID)
	if !ok {
		return
	}
	if err := conn.Enqueue(ev); err != nil {
		d.logger.Debug("enqueue failed",
			zap.String("conn_id", connID),
			zap.String("event", ev.Name),
			zap.Error(err),
		)
	}
}
