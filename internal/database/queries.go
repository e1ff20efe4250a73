package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/npezzotti/go-chatrelay/internal/types"
)

const (
	userColumns = "id, username, COALESCE(email, ''), is_online, last_seen, status, avatar, " +
		"COALESCE(session_token, ''), created_at, updated_at"

	messageSelect = "SELECT m.id, m.sender_id, m.sender_name, COALESCE(u.username, ''), COALESCE(u.avatar, ''), " +
		"m.receiver_id, m.body, m.room_id, m.timestamp, m.read, m.message_type, " +
		"m.attachment_url, m.attachment_filename, m.attachment_size, m.attachment_mime_type, " +
		"m.created_at, m.updated_at " +
		"FROM messages m LEFT JOIN users u ON u.id = m.sender_id"

	// seq breaks ties between messages stored in the same millisecond
	messageOrder = " ORDER BY m.timestamp DESC, m.seq DESC"

	roomMessagesQuery   = messageSelect + " WHERE m.room_id = $1" + messageOrder + " LIMIT $2 OFFSET $3"
	searchMessagesQuery = messageSelect + " WHERE m.room_id = $1 AND m.body ILIKE $2" + messageOrder + " LIMIT $3"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.IsOnline,
		&u.LastSeen,
		&u.Status,
		&u.Avatar,
		&u.SessionToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func scanMessage(row scanner) (Message, error) {
	var (
		m        Message
		url      sql.NullString
		filename sql.NullString
		size     sql.NullInt64
		mimeType sql.NullString
	)

	err := row.Scan(
		&m.Id,
		&m.SenderId,
		&m.SenderName,
		&m.SenderUsername,
		&m.SenderAvatar,
		&m.ReceiverId,
		&m.Body,
		&m.RoomId,
		&m.Timestamp,
		&m.Read,
		&m.MessageType,
		&url,
		&filename,
		&size,
		&mimeType,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return m, err
	}

	if url.Valid {
		m.Attachment = &Attachment{
			Url:      url.String,
			Filename: filename.String,
			Size:     size.Int64,
			MimeType: mimeType.String,
		}
	}

	return m, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (db *PgChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (id, username, email, is_online, last_seen, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, FALSE, $4, $5, $4, $4) RETURNING "+userColumns,
		params.Id,
		params.Username,
		nullString(params.Email),
		now,
		params.Status,
	)

	u, err := scanUser(row)
	return u, translateError(err)
}

// UpsertOnlineUser creates the user if it does not exist, otherwise marks the
// existing row online. The stored username of an existing user is kept.
func (db *PgChatRepository) UpsertOnlineUser(ctx context.Context, params UpsertOnlineUserParams) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (id, username, is_online, last_seen, session_token, created_at, updated_at) "+
			"VALUES ($1, $2, TRUE, $3, $4, $3, $3) "+
			"ON CONFLICT (id) DO UPDATE SET is_online = TRUE, last_seen = EXCLUDED.last_seen, "+
			"session_token = EXCLUDED.session_token, updated_at = EXCLUDED.updated_at "+
			"RETURNING "+userColumns,
		params.Id,
		params.Username,
		params.SeenAt,
		nullString(params.SessionToken),
	)

	u, err := scanUser(row)
	return u, translateError(err)
}

// SetUserOffline marks the user offline and clears its session token.
func (db *PgChatRepository) SetUserOffline(ctx context.Context, userId string) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"UPDATE users SET is_online = FALSE, last_seen = $2, session_token = NULL, updated_at = $2 WHERE id = $1",
		userId,
		now,
	)
	return err
}

func (db *PgChatRepository) UpdateUserStatus(ctx context.Context, params UpdateUserStatusParams) (User, error) {
	var online sql.NullBool
	if params.IsOnline != nil {
		online = sql.NullBool{Bool: *params.IsOnline, Valid: true}
	}

	row := db.conn.QueryRowContext(ctx,
		"UPDATE users SET status = COALESCE(NULLIF($2::text, ''), status), "+
			"is_online = COALESCE($3::boolean, is_online), last_seen = $4, updated_at = $4 "+
			"WHERE id = $1 RETURNING "+userColumns,
		params.Id,
		params.Status,
		online,
		params.SeenAt,
	)

	u, err := scanUser(row)
	return u, translateError(err)
}

func (db *PgChatRepository) GetUserById(ctx context.Context, userId string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1",
		userId,
	)

	return scanUser(row)
}

func (db *PgChatRepository) ListUsers(ctx context.Context, params ListUsersParams) ([]User, error) {
	var limit sql.NullInt64
	if params.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(params.Limit), Valid: true}
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users "+
			"WHERE $1::text = '' OR username ILIKE $2 "+
			"ORDER BY is_online DESC, username ASC LIMIT $3 OFFSET $4",
		params.Search,
		likePattern(params.Search),
		limit,
		params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgChatRepository) CountUsers(ctx context.Context, search string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE $1::text = '' OR username ILIKE $2",
		search,
		likePattern(search),
	).Scan(&count)

	return count, err
}

// CreateMessage persists a message and returns its generated id.
func (db *PgChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (string, error) {
	var url, filename, mimeType sql.NullString
	var size sql.NullInt64
	if a := params.Attachment; a != nil {
		url = sql.NullString{String: a.Url, Valid: true}
		filename = nullString(a.Filename)
		size = sql.NullInt64{Int64: a.Size, Valid: true}
		mimeType = nullString(a.MimeType)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO messages (id, sender_id, sender_name, receiver_id, body, room_id, timestamp, read, message_type, "+
			"attachment_url, attachment_filename, attachment_size, attachment_mime_type, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9, $10, $11, $12, $13, $13)",
		id,
		params.SenderId,
		params.SenderName,
		params.ReceiverId,
		params.Body,
		params.RoomId,
		params.Timestamp,
		params.MessageType,
		url,
		filename,
		size,
		mimeType,
		now,
	)
	if err != nil {
		return "", translateError(err)
	}

	return id, nil
}

func (db *PgChatRepository) GetMessageById(ctx context.Context, messageId string) (Message, error) {
	row := db.conn.QueryRowContext(ctx, messageSelect+" WHERE m.id = $1 LIMIT 1", messageId)
	return scanMessage(row)
}

// GetRoomMessages returns a page of the room's history counted back from the
// newest message. The page itself is ordered oldest first.
func (db *PgChatRepository) GetRoomMessages(ctx context.Context, roomId string, limit, offset int) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		roomMessagesQuery,
		roomId,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

func (db *PgChatRepository) CountRoomMessages(ctx context.Context, roomId string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE room_id = $1",
		roomId,
	).Scan(&count)

	return count, err
}

func (db *PgChatRepository) CountUnreadMessages(ctx context.Context, userId string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND read = FALSE",
		userId,
	).Scan(&count)

	return count, err
}

// MarkMessagesRead flags the given messages as read when the reader is their
// receiver or they were sent to the whole room. It returns the ids updated.
func (db *PgChatRepository) MarkMessagesRead(ctx context.Context, params MarkReadParams) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"UPDATE messages SET read = TRUE, updated_at = $4 "+
			"WHERE id = ANY($1) AND (receiver_id = $2 OR receiver_id = $5) AND ($3::text = '' OR room_id = $3) "+
			"RETURNING id",
		pq.Array(params.MessageIds),
		params.ReaderId,
		params.RoomId,
		time.Now().UTC(),
		types.GroupReceiver,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PgChatRepository) DeleteMessage(ctx context.Context, messageId string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", messageId)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgChatRepository) SearchMessages(ctx context.Context, roomId, query string, limit int) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		searchMessagesQuery,
		roomId,
		likePattern(query),
		limit,
	)
	if err != nil {
		return nil, err
	}

	return scanMessages(rows)
}
