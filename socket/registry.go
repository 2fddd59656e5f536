package socket

import (
	"hash/fnv"
	"sync"

	"coedit/pkg/metrics"
)

// Participant is the public presence record of one connection in a room.
type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

const registryShards = 32

// Registry maps document ids to rooms of connected clients. It is the only
// mutable shared state of the session layer. Shards keep join/leave on the
// same document mutually exclusive without unrelated documents contending
// on one lock. Rooms keep insertion order, and an empty room is deleted in
// the same critical section as the leave that emptied it.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	order  []*Client
	byConn map[string]*Client
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].rooms = make(map[string]*room)
	}
	return r
}

func (r *Registry) shard(docID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(docID))
	return &r.shards[h.Sum32()%registryShards]
}

// Join adds the client to the document's room, creating the room if needed.
// It returns the room's clients and roster captured atomically with the
// insert, so the caller's join broadcast matches the committed state.
func (r *Registry) Join(docID string, c *Client) ([]*Client, []Participant) {
	s := r.shard(docID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.rooms[docID]
	if rm == nil {
		rm = &room{byConn: make(map[string]*Client)}
		s.rooms[docID] = rm
		metrics.OpenRooms.Inc()
	}
	if _, ok := rm.byConn[c.ID]; !ok {
		rm.order = append(rm.order, c)
		rm.byConn[c.ID] = c
		metrics.Participants.Inc()
	}
	return rm.clients(), rm.roster()
}

// Leave removes the connection from the room. It returns the removed client
// (nil if it was never a member) plus the surviving clients and roster. A
// room left empty is pruned before the lock is released.
func (r *Registry) Leave(docID, connID string) (*Client, []*Client, []Participant) {
	s := r.shard(docID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.rooms[docID]
	if rm == nil {
		return nil, nil, nil
	}
	c, ok := rm.byConn[connID]
	if !ok {
		return nil, nil, nil
	}
	delete(rm.byConn, connID)
	for i, other := range rm.order {
		if other.ID == connID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	metrics.Participants.Dec()

	if len(rm.order) == 0 {
		delete(s.rooms, docID)
		metrics.OpenRooms.Dec()
		return c, nil, nil
	}
	return c, rm.clients(), rm.roster()
}

// Snapshot returns the room's participants in insertion order, or nil if
// the room does not exist.
func (r *Registry) Snapshot(docID string) []Participant {
	s := r.shard(docID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.rooms[docID]
	if rm == nil {
		return nil
	}
	return rm.roster()
}

// Clients returns the room's connected clients in insertion order.
func (r *Registry) Clients(docID string) []*Client {
	s := r.shard(docID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.rooms[docID]
	if rm == nil {
		return nil
	}
	return rm.clients()
}

// RoomCount reports how many rooms currently exist across all shards.
func (r *Registry) RoomCount() int {
	total := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		total += len(s.rooms)
		s.mu.Unlock()
	}
	return total
}

func (rm *room) clients() []*Client {
	out := make([]*Client, len(rm.order))
	copy(out, rm.order)
	return out
}

func (rm *room) roster() []Participant {
	out := make([]Participant, 0, len(rm.order))
	for _, c := range rm.order {
		out = append(out, c.participant())
	}
	return out
}
