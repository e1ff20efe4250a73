package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/stats"
	"github.com/npezzotti/go-chatrelay/internal/types"
)

const MaxMessageLength = 2000

// validateMessage normalizes data in place and returns a client facing
// error message when it cannot be relayed.
func validateMessage(data *SendMessage) string {
	if data.SenderId == "" || data.ReceiverId == "" || data.RoomId == "" || data.SenderName == "" {
		return "Missing required message fields"
	}

	if data.MessageType == "" {
		data.MessageType = types.MessageTypeText
	}
	if !data.MessageType.Valid() {
		return "Invalid message type"
	}

	data.Message = strings.TrimSpace(data.Message)
	if data.MessageType == types.MessageTypeText && data.Message == "" {
		return "Message cannot be empty"
	}
	if utf8.RuneCountInString(data.Message) > MaxMessageLength {
		return fmt.Sprintf("Message cannot exceed %d characters", MaxMessageLength)
	}

	return ""
}

func (cs *ChatServer) handleSendMessage(c *Client, data SendMessage) {
	if reason := validateMessage(&data); reason != "" {
		c.queueMessage(ErrorMessage(reason))
		return
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	sender, err := cs.db.GetUserById(ctx, data.SenderId)
	if err != nil {
		err = StoreError("get sender", err)
		cs.log.Println(err)
		if errors.Is(err, ErrNotFound) {
			c.queueMessage(ErrorMessage("Sender not found"))
		} else {
			c.queueMessage(ErrorMessage("Failed to send message"))
		}
		return
	}

	var attachment *database.Attachment
	if data.Attachment != nil {
		attachment = &database.Attachment{
			Url:      data.Attachment.Url,
			Filename: data.Attachment.Filename,
			Size:     data.Attachment.Size,
			MimeType: data.Attachment.MimeType,
		}
	}

	id, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		SenderId:    sender.Id,
		SenderName:  sender.Username,
		ReceiverId:  data.ReceiverId,
		Body:        data.Message,
		RoomId:      data.RoomId,
		MessageType: string(data.MessageType),
		Attachment:  attachment,
		Timestamp:   Now(),
	})
	if err != nil {
		cs.log.Println(StoreError("create message", err))
		c.queueMessage(ErrorMessage("Failed to send message"))
		return
	}

	stored, err := cs.db.GetMessageById(ctx, id)
	if err != nil {
		cs.log.Println(StoreError("get message", err))
		c.queueMessage(ErrorMessage("Failed to send message"))
		return
	}

	msg := ToMessage(stored)
	cs.registry.Broadcast(msg.RoomId, newServerMessage(EventReceiveMessage, msg), nil)
	c.queueMessage(newServerMessage(EventMessageDelivered, MessageDelivered{
		MessageId: msg.Id,
		RoomId:    msg.RoomId,
		Timestamp: msg.Timestamp,
	}))

	cs.stats.Incr(stats.MetricMessagesSent)
}

func (cs *ChatServer) handleMessageRead(c *Client, data MessageRead) {
	if len(data.MessageIds) == 0 || data.ReaderId == "" {
		c.queueMessage(ErrorMessage("Message IDs and reader ID are required"))
		return
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	updated, err := cs.db.MarkMessagesRead(ctx, database.MarkReadParams{
		MessageIds: data.MessageIds,
		ReaderId:   data.ReaderId,
		RoomId:     data.RoomId,
	})
	if err != nil {
		cs.log.Println(StoreError("mark messages read", err))
		c.queueMessage(ErrorMessage("Failed to mark messages as read"))
		return
	}

	if len(updated) == 0 || data.RoomId == "" {
		return
	}

	cs.registry.Broadcast(data.RoomId, newServerMessage(EventMessageRead, MessageRead{
		MessageIds: updated,
		RoomId:     data.RoomId,
		ReaderId:   data.ReaderId,
	}), c)
}

// DeleteMessage removes a message on behalf of its sender. Peers are not
// notified.
func (cs *ChatServer) DeleteMessage(ctx context.Context, messageId, requesterId string) error {
	if messageId == "" || requesterId == "" {
		return fmt.Errorf("delete message: %w", ErrValidation)
	}

	msg, err := cs.db.GetMessageById(ctx, messageId)
	if err != nil {
		return StoreError("get message", err)
	}

	if msg.SenderId != requesterId {
		return fmt.Errorf("delete message %s: %w", messageId, ErrForbidden)
	}

	if err := cs.db.DeleteMessage(ctx, messageId); err != nil {
		return StoreError("delete message", err)
	}

	cs.log.Printf("message %s deleted by %s", messageId, requesterId)
	return nil
}

func ToMessage(m database.Message) types.Message {
	msg := types.Message{
		Id: m.Id,
		Sender: types.Sender{
			Id:       m.SenderId,
			Username: m.SenderUsername,
			Avatar:   m.SenderAvatar,
		},
		SenderName:  m.SenderName,
		ReceiverId:  m.ReceiverId,
		Body:        m.Body,
		RoomId:      m.RoomId,
		Timestamp:   m.Timestamp,
		Read:        m.Read,
		MessageType: types.MessageType(m.MessageType),
	}

	if m.Attachment != nil {
		msg.Attachment = &types.Attachment{
			Url:      m.Attachment.Url,
			Filename: m.Attachment.Filename,
			Size:     m.Attachment.Size,
			MimeType: m.Attachment.MimeType,
		}
	}

	return msg
}

func ToMessages(messages []database.Message) []types.Message {
	res := make([]types.Message, len(messages))
	for i, m := range messages {
		res[i] = ToMessage(m)
	}
	return res
}
