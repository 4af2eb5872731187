package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
)

// relayRoom is a threadsafe membership set for one room key.
// It never closes adapter-owned connections.
type relayRoom struct {
	mu      sync.RWMutex
	members map[core.ConnID]core.SignalConnection
}

func newRelayRoom() *relayRoom {
	return &relayRoom{members: make(map[core.ConnID]core.SignalConnection)}
}

func (rr *relayRoom) add(id core.ConnID, conn core.SignalConnection) {
	rr.mu.Lock()
	rr.members[id] = conn
	rr.mu.Unlock()
}

func (rr *relayRoom) remove(id core.ConnID) int {
	rr.mu.Lock()
	delete(rr.members, id)
	n := len(rr.members)
	rr.mu.Unlock()
	return n
}

func (rr *relayRoom) size() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.members)
}

// publish fans a frame out, at most once per member. A member whose send
// fails is skipped, reported, and never fails the call for the rest.
func (rr *relayRoom) publish(frame core.Frame, except core.ConnID) core.PublishResult {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	res := core.PublishResult{}
	for id, conn := range rr.members {
		if id == except {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	return res
}

// Relay groups connections into named rooms and delivers typed events to
// room, room-except-sender, or single-recipient targets. The top-level
// room map has its own lock, held only for map mutation; fan-out runs
// under the per-room lock.
type Relay struct {
	mu    sync.RWMutex
	rooms map[domain.RoomKey]*relayRoom
	conns map[core.ConnID]core.SignalConnection
	// membership tracks which rooms each connection sits in, so a dropped
	// socket detaches everywhere without a scan of all rooms
	membership map[core.ConnID]map[domain.RoomKey]struct{}
}

func NewRelay() *Relay {
	return &Relay{
		rooms:      make(map[domain.RoomKey]*relayRoom),
		conns:      make(map[core.ConnID]core.SignalConnection),
		membership: make(map[core.ConnID]map[domain.RoomKey]struct{}),
	}
}

// Register makes a connection unicast-addressable before it attaches to
// any room.
func (r *Relay) Register(id core.ConnID, conn core.SignalConnection) {
	r.mu.Lock()
	r.conns[id] = conn
	r.mu.Unlock()
}

// Deregister detaches the connection from every room and forgets it.
func (r *Relay) Deregister(id core.ConnID) {
	r.mu.Lock()
	rooms := r.membership[id]
	delete(r.membership, id)
	delete(r.conns, id)
	emptied := make([]domain.RoomKey, 0, len(rooms))
	for key := range rooms {
		if rr, ok := r.rooms[key]; ok && rr.remove(id) == 0 {
			emptied = append(emptied, key)
		}
	}
	for _, key := range emptied {
		delete(r.rooms, key)
	}
	r.mu.Unlock()
	log.Info().Str("module", "app.relay").Str("conn", string(id)).Msg("connection deregistered")
}

// Attach adds a connection to a room. Idempotent; a connection may sit in
// several rooms at once (a breakout room nested inside a main room).
func (r *Relay) Attach(key domain.RoomKey, id core.ConnID) bool {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	rr, ok := r.rooms[key]
	if !ok {
		rr = newRelayRoom()
		r.rooms[key] = rr
	}
	m, ok := r.membership[id]
	if !ok {
		m = make(map[domain.RoomKey]struct{})
		r.membership[id] = m
	}
	m[key] = struct{}{}
	r.mu.Unlock()

	rr.add(id, conn)
	log.Debug().Str("module", "app.relay").
		Str("room", string(key)).Str("conn", string(id)).Msg("attached")
	return true
}

// Detach removes a connection from one room only; membership in other
// rooms is untouched. Idempotent.
func (r *Relay) Detach(key domain.RoomKey, id core.ConnID) {
	r.mu.Lock()
	if m, ok := r.membership[id]; ok {
		delete(m, key)
	}
	if rr, ok := r.rooms[key]; ok && rr.remove(id) == 0 {
		delete(r.rooms, key)
	}
	r.mu.Unlock()
}

// DropRoom evicts a whole room, e.g. when its session ends. Connections
// stay registered; only the room membership goes away.
func (r *Relay) DropRoom(key domain.RoomKey) {
	r.mu.Lock()
	rr, ok := r.rooms[key]
	delete(r.rooms, key)
	if ok {
		rr.mu.Lock()
		for id := range rr.members {
			if m, ok := r.membership[id]; ok {
				delete(m, key)
			}
		}
		rr.mu.Unlock()
	}
	r.mu.Unlock()
}

// Broadcast delivers to every attached connection in the room, sender
// included. Delivery is at-most-once per connection per call; recipients
// that are gone are dropped silently.
func (r *Relay) Broadcast(key domain.RoomKey, t core.EventType, from domain.UserID, payload any) core.PublishResult {
	return r.publish(key, t, from, payload, "")
}

// BroadcastExceptSelf delivers to everyone in the room but the originating
// connection.
func (r *Relay) BroadcastExceptSelf(key domain.RoomKey, except core.ConnID, t core.EventType, from domain.UserID, payload any) core.PublishResult {
	return r.publish(key, t, from, payload, except)
}

// Unicast delivers to exactly one connection, regardless of room.
func (r *Relay) Unicast(id core.ConnID, t core.EventType, from domain.UserID, payload any) error {
	frame, err := core.MarshalEvent(t, from, payload)
	if err != nil {
		return err
	}
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := conn.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app.relay").
			Str("conn", string(id)).Msg("unicast dropped")
	}
	return nil
}

func (r *Relay) RoomSize(key domain.RoomKey) int {
	r.mu.RLock()
	rr, ok := r.rooms[key]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return rr.size()
}

func (r *Relay) publish(key domain.RoomKey, t core.EventType, from domain.UserID, payload any, except core.ConnID) core.PublishResult {
	frame, err := core.MarshalEvent(t, from, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", string(t)).Msg("marshal event")
		return core.PublishResult{}
	}
	r.mu.RLock()
	rr, ok := r.rooms[key]
	r.mu.RUnlock()
	if !ok {
		return core.PublishResult{}
	}
	res := rr.publish(frame, except)
	log.Debug().Str("module", "app.relay").
		Str("room", string(key)).Str("event", string(t)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
