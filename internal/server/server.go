package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/stats"
)

type ChatServer struct {
	log          *log.Logger
	db           database.ChatRepository
	stats        stats.StatsProvider
	registry     *Registry
	signingKey   []byte
	storeTimeout time.Duration
	// clients tracks the read/write goroutines of every served connection.
	clients sync.WaitGroup
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, statsProvider stats.StatsProvider, signingKey []byte, storeTimeout time.Duration) (*ChatServer, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("signing key cannot be empty")
	}
	if storeTimeout <= 0 {
		return nil, errors.New("store timeout must be positive")
	}

	cs := &ChatServer{
		log:          logger,
		db:           db,
		stats:        statsProvider,
		registry:     NewRegistry(),
		signingKey:   signingKey,
		storeTimeout: storeTimeout,
	}

	cs.stats.RegisterFunc(stats.MetricActiveConnections, func() any { return cs.registry.Connections() })
	cs.stats.RegisterFunc(stats.MetricActiveSessions, func() any { return cs.registry.Len() })
	cs.stats.RegisterMetric(stats.MetricMessagesSent)
	cs.stats.RegisterMetric(stats.MetricRoomsCreated)

	return cs, nil
}

// Serve takes ownership of conn and runs its read and write loops until the
// connection closes or the server shuts down.
func (cs *ChatServer) Serve(conn *websocket.Conn) {
	c := NewClient(conn, cs, cs.log)
	cs.registry.Attach(c)

	cs.clients.Add(2)
	go func() {
		defer cs.clients.Done()
		c.Write()
	}()
	go func() {
		defer cs.clients.Done()
		c.Read()
	}()
}

func (cs *ChatServer) Registry() *Registry {
	return cs.registry
}

// storeContext bounds a handler's store calls.
func (cs *ChatServer) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cs.storeTimeout)
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, errors.New("missing event data")
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// dispatch routes an inbound event to its handler. Events from a single
// connection are dispatched one at a time in arrival order.
func (cs *ChatServer) dispatch(c *Client, msg *ClientMessage) {
	var err error
	switch msg.Event {
	case EventUserJoin:
		var data UserJoin
		if data, err = decodePayload[UserJoin](msg.Data); err == nil {
			cs.handleUserJoin(c, data)
		}
	case EventJoinRoom:
		var data JoinRoom
		if data, err = decodePayload[JoinRoom](msg.Data); err == nil {
			cs.handleJoinRoom(c, data)
		}
	case EventLeaveRoom:
		var data LeaveRoom
		if data, err = decodePayload[LeaveRoom](msg.Data); err == nil {
			cs.handleLeaveRoom(c, data)
		}
	case EventSendMessage:
		var data SendMessage
		if data, err = decodePayload[SendMessage](msg.Data); err == nil {
			cs.handleSendMessage(c, data)
		}
	case EventUserTyping:
		var data Typing
		if data, err = decodePayload[Typing](msg.Data); err == nil {
			cs.handleTyping(c, data)
		}
	case EventUserStopTyping:
		var data Typing
		if data, err = decodePayload[Typing](msg.Data); err == nil {
			cs.handleStopTyping(c, data)
		}
	case EventMessageRead:
		var data MessageRead
		if data, err = decodePayload[MessageRead](msg.Data); err == nil {
			cs.handleMessageRead(c, data)
		}
	case EventCreateRoom:
		var data CreateRoom
		if data, err = decodePayload[CreateRoom](msg.Data); err == nil {
			cs.handleCreateRoom(c, data)
		}
	case EventUserStatusChange:
		var data StatusChange
		if data, err = decodePayload[StatusChange](msg.Data); err == nil {
			cs.handleStatusChange(c, data)
		}
	default:
		cs.log.Printf("unknown event %q from connection %s", msg.Event, c.id)
		c.queueMessage(ErrorMessage("Unknown event"))
		return
	}

	if err != nil {
		cs.log.Printf("invalid %s payload: %v", msg.Event, err)
		c.queueMessage(ErrorMessage("Invalid message format"))
	}
}

// Shutdown stops every connection and waits for their teardown to finish or
// for ctx to expire.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("closing client connections")
	cs.registry.mu.Lock()
	for c := range cs.registry.conns {
		c.stopClient()
	}
	cs.registry.mu.Unlock()

	done := make(chan struct{})
	go func() {
		cs.clients.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
