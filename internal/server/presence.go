package server

import (
	"context"
	"errors"

	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/types"
)

func (cs *ChatServer) handleUserJoin(c *Client, data UserJoin) {
	if data.UserId == "" || data.Username == "" {
		c.queueMessage(ErrorMessage("User ID and username are required"))
		return
	}

	if id, ok := cs.registry.Identity(c); ok && id != data.UserId {
		c.queueMessage(ErrorMessage("Connection already joined as another user"))
		return
	}

	now := Now()
	token, err := newSessionToken(cs.signingKey, data.UserId, c.id, now)
	if err != nil {
		cs.log.Println("newSessionToken:", err)
		c.queueMessage(ErrorMessage("Failed to join chat"))
		return
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	// Last writer wins on the online flag when the same identity joins
	// from several connections at once.
	user, err := cs.db.UpsertOnlineUser(ctx, database.UpsertOnlineUserParams{
		Id:           data.UserId,
		Username:     data.Username,
		SessionToken: token,
		SeenAt:       now,
	})
	if err != nil {
		err = StoreError("upsert user", err)
		cs.log.Println(err)
		switch {
		case errors.Is(err, ErrConflict):
			c.queueMessage(ErrorMessage("Username already taken"))
		case errors.Is(err, ErrValidation):
			c.queueMessage(ErrorMessage("Username must be 3-20 letters, numbers or underscores"))
		default:
			c.queueMessage(ErrorMessage("Failed to join chat"))
		}
		return
	}

	evicted, err := cs.registry.Register(Session{
		UserId:   user.Id,
		Username: user.Username,
		Avatar:   user.Avatar,
		Status:   types.UserStatus(user.Status),
		Token:    token,
		JoinedAt: now,
	}, c)
	if err != nil {
		// another join on this connection raced us
		c.queueMessage(ErrorMessage("Connection already joined as another user"))
		return
	}

	if evicted != nil {
		cs.log.Printf("session for %q moved from connection %s to %s", user.Id, evicted.client.id, c.id)
		evicted.client.queueMessage(ErrorMessage("Session replaced by a newer connection"))
	}

	cs.log.Printf("%s (%s) joined the chat", user.Username, user.Id)

	cs.broadcastOnlineUsers(ctx)
}

// disconnect tears down the session of c. In-memory state is always
// removed; persisting the offline flag is best effort and skipped while
// another connection holds a session for the same user.
func (cs *ChatServer) disconnect(c *Client) {
	sess, ok := cs.registry.Unregister(c)
	cs.registry.Detach(c)
	if !ok {
		return
	}

	cs.log.Printf("%s (%s) disconnected", sess.Username, sess.UserId)

	ctx, cancel := cs.storeContext()
	defer cancel()

	if live, ok := cs.registry.Get(sess.UserId); ok {
		cs.log.Printf("user %q still connected on %s, leaving online flag", sess.UserId, live.client.id)
	} else if err := cs.db.SetUserOffline(ctx, sess.UserId); err != nil {
		cs.log.Println(StoreError("set user offline", err))
	}

	cs.broadcastOnlineUsers(ctx)
}

func (cs *ChatServer) handleStatusChange(c *Client, data StatusChange) {
	if data.UserId == "" || !data.Status.Valid() {
		c.queueMessage(ErrorMessage("User ID and a valid status are required"))
		return
	}

	ctx, cancel := cs.storeContext()
	defer cancel()

	user, err := cs.db.UpdateUserStatus(ctx, database.UpdateUserStatusParams{
		Id:     data.UserId,
		Status: string(data.Status),
		SeenAt: Now(),
	})
	if err != nil {
		err = StoreError("update user status", err)
		cs.log.Println(err)
		if errors.Is(err, ErrNotFound) {
			c.queueMessage(ErrorMessage("User not found"))
		} else {
			c.queueMessage(ErrorMessage("Failed to update status"))
		}
		return
	}

	cs.registry.SetStatus(user.Id, data.Status)
	cs.registry.BroadcastAll(newServerMessage(EventUserStatusUpdated, StatusUpdated{
		UserId:   user.Id,
		Status:   data.Status,
		Username: user.Username,
	}))
}

// broadcastOnlineUsers sends the stored user list to every connection. A
// failed fetch skips the broadcast.
func (cs *ChatServer) broadcastOnlineUsers(ctx context.Context) {
	users, err := cs.db.ListUsers(ctx, database.ListUsersParams{})
	if err != nil {
		cs.log.Println(StoreError("list users", err))
		return
	}

	cs.registry.BroadcastAll(newServerMessage(EventGetOnlineUsers, ToUsers(users)))
}

// ToUser converts a stored user to its public form. The email address is
// left out.
func ToUser(u database.User) types.User {
	return types.User{
		Id:        u.Id,
		Username:  u.Username,
		IsOnline:  u.IsOnline,
		LastSeen:  u.LastSeen,
		Status:    types.UserStatus(u.Status),
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}

func ToUsers(users []database.User) []types.User {
	res := make([]types.User, len(users))
	for i, u := range users {
		res[i] = ToUser(u)
	}
	return res
}
