package server

import (
	"errors"
	"fmt"

	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/stats"
	"github.com/npezzotti/go-chatrelay/internal/types"
)

const (
	historyLimit     = 50
	systemSenderName = "System"
)

// sessionOwner checks that c holds the session for userId.
func (cs *ChatServer) sessionOwner(c *Client, userId string) error {
	id, ok := cs.registry.Identity(c)
	if !ok {
		return errNoSession
	}
	if id != userId {
		return errAlreadyBound
	}
	return nil
}

func (cs *ChatServer) handleJoinRoom(c *Client, data JoinRoom) {
	if data.RoomId == "" || data.UserId == "" {
		c.queueMessage(ErrorMessage("Room ID and User ID are required"))
		return
	}

	if err := cs.sessionOwner(c, data.UserId); err != nil {
		c.queueMessage(ErrorMessage("Join the chat as this user before joining rooms"))
		return
	}

	// rooms exist as soon as someone subscribes to them
	added, err := cs.registry.Subscribe(c, data.RoomId)
	if err != nil {
		c.queueMessage(ErrorMessage("Join the chat as this user before joining rooms"))
		return
	}
	if added {
		cs.log.Printf("user %q joined room %q", data.UserId, data.RoomId)
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	history, err := cs.db.GetRoomMessages(ctx, data.RoomId, historyLimit, 0)
	if err != nil {
		cs.log.Println(StoreError("get room messages", err))
		c.queueMessage(ErrorMessage("Failed to load room history"))
		return
	}

	c.queueMessage(newServerMessage(EventLoadMessages, ToMessages(history)))
}

func (cs *ChatServer) handleLeaveRoom(c *Client, data LeaveRoom) {
	if data.RoomId == "" {
		c.queueMessage(ErrorMessage("Room ID is required"))
		return
	}

	if cs.registry.Unsubscribe(c, data.RoomId) {
		cs.log.Printf("connection %s left room %q", c.id, data.RoomId)
	}
}

func (cs *ChatServer) handleCreateRoom(c *Client, data CreateRoom) {
	if data.RoomId == "" || data.RoomName == "" || data.CreatedBy == "" {
		c.queueMessage(ErrorMessage("Room ID, room name and creator are required"))
		return
	}

	if err := cs.sessionOwner(c, data.CreatedBy); err != nil {
		c.queueMessage(ErrorMessage("Join the chat as this user before creating rooms"))
		return
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	creator, err := cs.db.GetUserById(ctx, data.CreatedBy)
	if err != nil {
		err = StoreError("get creator", err)
		cs.log.Println(err)
		if errors.Is(err, ErrNotFound) {
			c.queueMessage(ErrorMessage("Creator not found"))
		} else {
			c.queueMessage(ErrorMessage("Failed to create room"))
		}
		return
	}

	if _, err := cs.registry.Subscribe(c, data.RoomId); err != nil {
		c.queueMessage(ErrorMessage("Join the chat as this user before creating rooms"))
		return
	}

	now := Now()
	if _, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		SenderId:    creator.Id,
		SenderName:  systemSenderName,
		ReceiverId:  types.GroupReceiver,
		Body:        fmt.Sprintf("Room \"%s\" created by %s", data.RoomName, creator.Username),
		RoomId:      data.RoomId,
		MessageType: string(types.MessageTypeSystem),
		Timestamp:   now,
	}); err != nil {
		cs.log.Println(StoreError("create system message", err))
		c.queueMessage(ErrorMessage("Failed to create room"))
		return
	}

	cs.stats.Incr(stats.MetricRoomsCreated)
	cs.log.Printf("room %q (%s) created by %s", data.RoomName, data.RoomId, creator.Username)

	// announced to everyone so clients can discover the room
	cs.registry.BroadcastAll(newServerMessage(EventRoomCreated, RoomCreated{
		RoomId:    data.RoomId,
		RoomName:  data.RoomName,
		CreatedBy: creator.Username,
		CreatedAt: now,
	}))
}
