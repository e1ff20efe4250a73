package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/server"
	"github.com/npezzotti/go-chatrelay/internal/types"
	"github.com/teris-io/shortid"
)

const (
	defaultUsersLimit   = 50
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	defaultSearchLimit  = 20
	maxSearchLimit      = 100
	minSearchLength     = 2
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type UpdateStatusRequest struct {
	Status   types.UserStatus `json:"status,omitempty"`
	IsOnline *bool            `json:"isOnline,omitempty"`
}

type MarkReadRequest struct {
	MessageIds []string `json:"messageIds"`
	ReaderId   string   `json:"readerId"`
}

type DeleteMessageRequest struct {
	UserId string `json:"userId"`
}

type UsersResponse struct {
	Users      []types.User     `json:"users"`
	Pagination types.Pagination `json:"pagination"`
}

type MessagesResponse struct {
	Messages   []types.Message  `json:"messages"`
	Pagination types.Pagination `json:"pagination"`
}

type SearchResponse struct {
	Messages []types.Message `json:"messages"`
	Query    string          `json:"query"`
}

type UnreadResponse struct {
	UserId      string `json:"user_id"`
	UnreadCount int    `json:"unread_count"`
}

type MarkReadResponse struct {
	ModifiedCount int `json:"modified_count"`
}

type HealthResponse struct {
	Status   string  `json:"status"`
	Database string  `json:"database"`
	Uptime   float64 `json:"uptime"`
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GoChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.Err != nil {
		s.log.Println(errResp)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New(name + " must not be negative")
	}

	return v, nil
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	uptime := time.Since(s.startedAt).Seconds()
	if err := s.db.Ping(ctx); err != nil {
		s.log.Println("health check:", err)
		s.writeJson(w, http.StatusServiceUnavailable, HealthResponse{
			Status:   "error",
			Database: "disconnected",
			Uptime:   uptime,
		})
		return
	}

	s.writeJson(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Database: "connected",
		Uptime:   uptime,
	})
}

func (s *GoChatApp) registerUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		s.writeError(w, NewBadRequestError().WithMessage("username is required"))
		return
	}

	id, err := shortid.Generate()
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	user, err := s.db.CreateUser(ctx, database.CreateUserParams{
		Id:       id,
		Username: req.Username,
		Email:    req.Email,
		Status:   string(types.StatusAvailable),
	})
	if err != nil {
		errResp := errorFrom(server.StoreError("create user", err))
		switch errResp.StatusCode {
		case http.StatusConflict:
			errResp.WithMessage("username or email already exists")
		case http.StatusBadRequest:
			errResp.WithMessage("username must be 3-20 letters, numbers or underscores")
		}
		s.writeError(w, errResp)
		return
	}

	res := server.ToUser(user)
	res.Email = user.Email
	s.writeJson(w, http.StatusCreated, res)
}

func (s *GoChatApp) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultUsersLimit)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	if limit == 0 {
		limit = defaultUsersLimit
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	ctx, cancel := s.storeContext(r)
	defer cancel()

	users, err := s.db.ListUsers(ctx, database.ListUsersParams{
		Search: search,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("list users", err)))
		return
	}

	total, err := s.db.CountUsers(ctx, search)
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("count users", err)))
		return
	}

	s.writeJson(w, http.StatusOK, UsersResponse{
		Users: server.ToUsers(users),
		Pagination: types.Pagination{
			Limit:   limit,
			Offset:  offset,
			Total:   total,
			HasMore: offset+len(users) < total,
		},
	})
}

func (s *GoChatApp) getUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	user, err := s.db.GetUserById(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("get user", err)))
		return
	}

	s.writeJson(w, http.StatusOK, server.ToUser(user))
}

func (s *GoChatApp) updateUserStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	// an empty status leaves the stored one unchanged
	if req.Status == "" && req.IsOnline == nil {
		s.writeError(w, NewBadRequestError().WithMessage("status or isOnline is required"))
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		s.writeError(w, NewBadRequestError().WithMessage("invalid status"))
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	user, err := s.db.UpdateUserStatus(ctx, database.UpdateUserStatusParams{
		Id:       r.PathValue("id"),
		Status:   string(req.Status),
		IsOnline: req.IsOnline,
		SeenAt:   server.Now(),
	})
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("update user status", err)))
		return
	}

	s.writeJson(w, http.StatusOK, server.ToUser(user))
}

func (s *GoChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	roomId := r.PathValue("roomId")

	ctx, cancel := s.storeContext(r)
	defer cancel()

	messages, err := s.db.GetRoomMessages(ctx, roomId, limit, offset)
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("get room messages", err)))
		return
	}

	total, err := s.db.CountRoomMessages(ctx, roomId)
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("count room messages", err)))
		return
	}

	s.writeJson(w, http.StatusOK, MessagesResponse{
		Messages: server.ToMessages(messages),
		Pagination: types.Pagination{
			Limit:   limit,
			Offset:  offset,
			Total:   total,
			HasMore: offset+len(messages) < total,
		},
	})
}

func (s *GoChatApp) unreadCount(w http.ResponseWriter, r *http.Request) {
	userId := r.PathValue("userId")

	ctx, cancel := s.storeContext(r)
	defer cancel()

	count, err := s.db.CountUnreadMessages(ctx, userId)
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("count unread messages", err)))
		return
	}

	s.writeJson(w, http.StatusOK, UnreadResponse{UserId: userId, UnreadCount: count})
}

func (s *GoChatApp) markRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if len(req.MessageIds) == 0 || req.ReaderId == "" {
		s.writeError(w, NewBadRequestError().WithMessage("messageIds and readerId are required"))
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	updated, err := s.db.MarkMessagesRead(ctx, database.MarkReadParams{
		MessageIds: req.MessageIds,
		ReaderId:   req.ReaderId,
	})
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("mark messages read", err)))
		return
	}

	s.writeJson(w, http.StatusOK, MarkReadResponse{ModifiedCount: len(updated)})
}

func (s *GoChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	var req DeleteMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId == "" {
		s.writeError(w, NewBadRequestError().WithMessage("userId is required"))
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.cs.DeleteMessage(ctx, r.PathValue("messageId"), req.UserId); err != nil {
		s.writeError(w, errorFrom(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

func (s *GoChatApp) searchMessages(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if len([]rune(query)) < minSearchLength {
		s.writeError(w, NewBadRequestError().WithMessage("query must be at least 2 characters"))
		return
	}

	limit, err := queryInt(r, "limit", defaultSearchLimit)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	ctx, cancel := s.storeContext(r)
	defer cancel()

	messages, err := s.db.SearchMessages(ctx, r.PathValue("roomId"), query, limit)
	if err != nil {
		s.writeError(w, errorFrom(server.StoreError("search messages", err)))
		return
	}

	s.writeJson(w, http.StatusOK, SearchResponse{
		Messages: server.ToMessages(messages),
		Query:    query,
	})
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	s.cs.Serve(conn)
}
