package server

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-chatrelay/internal/types"
)

var (
	errNoSession    = errors.New("connection has no active session")
	errAlreadyBound = errors.New("connection is bound to another user")
)

type Session struct {
	UserId   string
	Username string
	Avatar   string
	Status   types.UserStatus
	// Token is the session token persisted on the user while this
	// session is live.
	Token    string
	JoinedAt time.Time
	client   *Client
}

// Registry holds the process-local view of who is connected and which
// rooms they are in. A single mutex guards connections, sessions, room
// memberships and room channels so a membership and its channel
// subscription always change together. The mutex is never held across a
// store call.
type Registry struct {
	mu sync.Mutex
	// conns is every live connection, bound or not.
	conns map[*Client]struct{}
	// bound maps a connection to the identity it joined as.
	bound    map[*Client]string
	sessions map[string]*Session
	// memberships maps an identity to the set of rooms it joined.
	memberships map[string]map[string]struct{}
	// channels maps a room to its subscribed connections.
	channels map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:       make(map[*Client]struct{}),
		bound:       make(map[*Client]string),
		sessions:    make(map[string]*Session),
		memberships: make(map[string]map[string]struct{}),
		channels:    make(map[string]map[*Client]struct{}),
	}
}

func (r *Registry) Attach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

func (r *Registry) Detach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
}

// Register binds the session's connection to its identity. Registering the
// same connection again refreshes the session and keeps its rooms. When
// another connection holds the identity, that connection is unbound, loses
// its rooms and its session is returned.
func (r *Registry) Register(s Session, c *Client) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.bound[c]; ok && id != s.UserId {
		return nil, errAlreadyBound
	}

	var evicted *Session
	if prev, ok := r.sessions[s.UserId]; ok && prev.client != c {
		r.drop(prev.UserId)
		evicted = prev
	}

	s.client = c
	r.sessions[s.UserId] = &s
	r.bound[c] = s.UserId

	return evicted, nil
}

// Unregister removes the session owned by c together with its room
// memberships and channel subscriptions. It reports false when c is not
// bound to a session.
func (r *Registry) Unregister(c *Client) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.bound[c]
	if !ok {
		return Session{}, false
	}

	s := r.sessions[id]
	r.drop(id)

	return *s, true
}

// drop must be called with mu held.
func (r *Registry) drop(userId string) {
	s, ok := r.sessions[userId]
	if !ok {
		return
	}

	for roomId := range r.memberships[userId] {
		r.removeFromChannel(roomId, s.client)
	}

	delete(r.memberships, userId)
	delete(r.bound, s.client)
	delete(r.sessions, userId)
}

func (r *Registry) removeFromChannel(roomId string, c *Client) {
	if subs, ok := r.channels[roomId]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.channels, roomId)
		}
	}
}

func (r *Registry) Get(userId string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userId]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Identity returns the identity c joined as.
func (r *Registry) Identity(c *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.bound[c]
	return id, ok
}

// List returns a snapshot of every session ordered by identity.
func (r *Registry) List() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, *s)
	}
	slices.SortFunc(sessions, func(a, b Session) int {
		return strings.Compare(a.UserId, b.UserId)
	})

	return sessions
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) SetStatus(userId string, status types.UserStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userId]
	if ok {
		s.Status = status
	}
	return ok
}

// Subscribe adds roomId to the membership of the identity bound to c and
// subscribes c to the room channel. It reports whether the membership is
// new; subscribing twice is a no-op.
func (r *Registry) Subscribe(c *Client, roomId string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.bound[c]
	if !ok {
		return false, errNoSession
	}

	rooms := r.memberships[id]
	if rooms == nil {
		rooms = make(map[string]struct{})
		r.memberships[id] = rooms
	}
	_, exists := rooms[roomId]
	rooms[roomId] = struct{}{}

	subs := r.channels[roomId]
	if subs == nil {
		subs = make(map[*Client]struct{})
		r.channels[roomId] = subs
	}
	subs[c] = struct{}{}

	return !exists, nil
}

// Unsubscribe removes the membership and channel subscription of c for
// roomId and reports whether there was one.
func (r *Registry) Unsubscribe(c *Client, roomId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.bound[c]
	if !ok {
		return false
	}

	rooms := r.memberships[id]
	if _, ok := rooms[roomId]; !ok {
		return false
	}

	delete(rooms, roomId)
	if len(rooms) == 0 {
		delete(r.memberships, id)
	}
	r.removeFromChannel(roomId, c)

	return true
}

// Rooms returns the rooms userId has joined, sorted.
func (r *Registry) Rooms(userId string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.memberships[userId]))
	for roomId := range r.memberships[userId] {
		rooms = append(rooms, roomId)
	}
	slices.Sort(rooms)

	return rooms
}

func (r *Registry) Subscribers(roomId string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels[roomId])
}

// Broadcast queues msg on every connection subscribed to roomId except
// skip. Fan-out happens under the registry lock so every subscriber sees
// broadcasts in the same order.
func (r *Registry) Broadcast(roomId string, msg *ServerMessage, skip *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.channels[roomId] {
		if c == skip {
			continue
		}
		c.queueMessage(msg)
	}
}

// BroadcastAll queues msg on every live connection.
func (r *Registry) BroadcastAll(msg *ServerMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.conns {
		c.queueMessage(msg)
	}
}
