package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/stats"
	"github.com/npezzotti/go-chatrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testSigningKey = []byte("test-signing-key")

// newTestChatServer creates a ChatServer backed by mocks. Callers add
// expectations for Incr on the returned stats mock.
func newTestChatServer(t *testing.T, db database.ChatRepository) (*ChatServer, *stats.MockStatsUpdater) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterFunc", mock.Anything, mock.Anything).Return().Times(2)
	su.On("RegisterMetric", mock.Anything).Return().Times(2)

	cs, err := NewChatServer(testutil.TestLogger(t), db, su, testSigningKey, time.Second)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs, su
}

// newTestClient returns an attached client without a websocket. Everything
// queued for it stays in its send buffer.
func newTestClient(t *testing.T, cs *ChatServer) *Client {
	c := &Client{
		id:   uuid.NewString(),
		cs:   cs,
		log:  testutil.TestLogger(t),
		send: make(chan *ServerMessage, 64),
		stop: make(chan struct{}),
	}
	cs.registry.Attach(c)
	return c
}

// joinTestRoom binds c to userId and subscribes it to the given rooms
// without touching the store.
func joinTestRoom(t *testing.T, cs *ChatServer, c *Client, userId string, rooms ...string) {
	t.Helper()
	if _, err := cs.registry.Register(Session{UserId: userId, Username: userId}, c); err != nil {
		t.Fatalf("failed to register %s: %v", userId, err)
	}
	for _, roomId := range rooms {
		if _, err := cs.registry.Subscribe(c, roomId); err != nil {
			t.Fatalf("failed to subscribe %s to %s: %v", userId, roomId, err)
		}
	}
}

// drain returns everything queued for c so far.
func drain(c *Client) []*ServerMessage {
	var msgs []*ServerMessage
	for {
		select {
		case msg := <-c.send:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func events(msgs []*ServerMessage) []string {
	res := make([]string, len(msgs))
	for i, m := range msgs {
		res[i] = m.Event
	}
	return res
}

func assertError(t *testing.T, c *Client, expected string) {
	t.Helper()
	msgs := drain(c)
	if assert.Len(t, msgs, 1, "expected a single error message") {
		assert.Equal(t, EventError, msgs[0].Event)
		assert.Equal(t, ErrorPayload{Message: expected}, msgs[0].Data)
	}
}

func TestNewChatServer(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := &database.MockChatRepository{}
		cs, su := newTestChatServer(t, db)
		defer su.AssertExpectations(t)

		assert.Equal(t, db, cs.db, "expected database repository to be set")
		assert.NotNil(t, cs.registry, "expected registry to be initialized")
		assert.Equal(t, time.Second, cs.storeTimeout)
	})

	tcases := []struct {
		name         string
		key          []byte
		storeTimeout time.Duration
	}{
		{name: "empty signing key", key: nil, storeTimeout: time.Second},
		{name: "zero store timeout", key: testSigningKey, storeTimeout: 0},
		{name: "negative store timeout", key: testSigningKey, storeTimeout: -time.Second},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cs, err := NewChatServer(testutil.TestLogger(t), &database.MockChatRepository{},
				&stats.MockStatsUpdater{}, tc.key, tc.storeTimeout)
			assert.Error(t, err)
			assert.Nil(t, cs)
		})
	}
}

func TestChatServer_dispatch(t *testing.T) {
	tcases := []struct {
		name     string
		msg      string
		expected string
	}{
		{
			name:     "unknown event",
			msg:      `{"event":"dance","data":{}}`,
			expected: "Unknown event",
		},
		{
			name:     "missing data",
			msg:      `{"event":"user_join"}`,
			expected: "Invalid message format",
		},
		{
			name:     "wrong payload shape",
			msg:      `{"event":"join_room","data":["room-1"]}`,
			expected: "Invalid message format",
		},
		{
			name:     "wrong field type",
			msg:      `{"event":"message_read","data":{"messageIds":"m1"}}`,
			expected: "Invalid message format",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockChatRepository{}
			defer db.AssertExpectations(t)
			cs, _ := newTestChatServer(t, db)
			c := newTestClient(t, cs)

			var msg ClientMessage
			if err := json.Unmarshal([]byte(tc.msg), &msg); err != nil {
				t.Fatalf("invalid test message: %v", err)
			}

			cs.dispatch(c, &msg)
			assertError(t, c, tc.expected)
		})
	}
}

func TestChatServer_dispatchRoutesEvents(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	cs, _ := newTestChatServer(t, db)
	c := newTestClient(t, cs)
	peer := newTestClient(t, cs)
	joinTestRoom(t, cs, peer, "bob", "room-1")

	cs.dispatch(c, &ClientMessage{
		Event: EventUserTyping,
		Data:  json.RawMessage(`{"roomId":"room-1","userId":"alice","username":"alice"}`),
	})

	assert.Empty(t, drain(c), "expected nothing sent to the originator")
	msgs := drain(peer)
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, EventUserTyping, msgs[0].Event)
		assert.Equal(t, Typing{RoomId: "room-1", UserId: "alice", Username: "alice"}, msgs[0].Data)
	}
}

func TestChatServer_Shutdown(t *testing.T) {
	t.Run("stops clients", func(t *testing.T) {
		cs, _ := newTestChatServer(t, &database.MockChatRepository{})
		c1 := newTestClient(t, cs)
		c2 := newTestClient(t, cs)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")

		for _, c := range []*Client{c1, c2} {
			select {
			case <-c.stop:
			default:
				t.Error("expected client stop channel to be closed")
			}
		}
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs, _ := newTestChatServer(t, &database.MockChatRepository{})
		cs.clients.Add(1)
		defer cs.clients.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func Test_decodePayload(t *testing.T) {
	data, err := decodePayload[JoinRoom](json.RawMessage(`{"roomId":"r1","userId":"u1"}`))
	assert.NoError(t, err)
	assert.Equal(t, JoinRoom{RoomId: "r1", UserId: "u1"}, data)

	_, err = decodePayload[JoinRoom](nil)
	assert.Error(t, err)
}
