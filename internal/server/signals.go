package server

// Typing indicators are forwarded to the other subscribers of the room and
// never stored.

func (cs *ChatServer) handleTyping(c *Client, data Typing) {
	cs.forwardSignal(c, EventUserTyping, data)
}

func (cs *ChatServer) handleStopTyping(c *Client, data Typing) {
	cs.forwardSignal(c, EventUserStopTyping, data)
}

func (cs *ChatServer) forwardSignal(c *Client, event string, data Typing) {
	if data.RoomId == "" {
		c.queueMessage(ErrorMessage("Room ID is required"))
		return
	}

	cs.registry.Broadcast(data.RoomId, newServerMessage(event, data), c)
}
