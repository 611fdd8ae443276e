package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
)

const messageColumns = `id, sender_user_id, receiver_user_id, COALESCE(post_id, ''), content, is_read, created_at`

// CreateMessage inserts one message. A post id that does not exist is
// ErrNotFound.
func (s *Store) CreateMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.SenderUserID = strings.TrimSpace(record.SenderUserID)
	record.ReceiverUserID = strings.TrimSpace(record.ReceiverUserID)
	record.PostID = strings.TrimSpace(record.PostID)
	if record.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if record.SenderUserID == "" || record.ReceiverUserID == "" {
		return fmt.Errorf("message sender and receiver are required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("message created_at is required")
	}

	var postID any
	if record.PostID != "" {
		postID = record.PostID
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO messages (id, sender_user_id, receiver_user_id, post_id, content, is_read, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.SenderUserID,
		record.ReceiverUserID,
		postID,
		record.Content,
		boolToInt(record.Read),
		toMillis(record.CreatedAt),
	); err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ListMessagesForUser returns every message the user sent or received in
// ascending time order.
func (s *Store) ListMessagesForUser(ctx context.Context, userID string) ([]storage.MessageRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE sender_user_id = ? OR receiver_user_id = ?
ORDER BY created_at ASC, id ASC
`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListThreadAndMarkRead marks messages from otherUserID to userID read and
// returns the thread between the two users in ascending time order.
func (s *Store) ListThreadAndMarkRead(ctx context.Context, userID string, otherUserID string) ([]storage.MessageRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	otherUserID = strings.TrimSpace(otherUserID)
	if userID == "" || otherUserID == "" {
		return nil, fmt.Errorf("both user ids are required")
	}

	var thread []storage.MessageRecord
	err := s.inTx(ctx, "read thread", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE messages SET is_read = 1
WHERE receiver_user_id = ? AND sender_user_id = ? AND is_read = 0
`, userID, otherUserID); err != nil {
			return fmt.Errorf("mark thread read: %w", err)
		}
		rows, err := tx.QueryContext(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE (sender_user_id = ? AND receiver_user_id = ?)
   OR (sender_user_id = ? AND receiver_user_id = ?)
ORDER BY created_at ASC, id ASC
`, userID, otherUserID, otherUserID, userID)
		if err != nil {
			return fmt.Errorf("list thread: %w", err)
		}
		defer rows.Close()
		thread, err = collectMessages(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// CountUnreadMessages counts unread messages received by the user.
func (s *Store) CountUnreadMessages(ctx context.Context, userID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM messages WHERE receiver_user_id = ? AND is_read = 0
`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}

func collectMessages(rows *sql.Rows) ([]storage.MessageRecord, error) {
	var records []storage.MessageRecord
	for rows.Next() {
		var (
			record    storage.MessageRecord
			read      int
			createdAt int64
		)
		if err := rows.Scan(&record.ID, &record.SenderUserID, &record.ReceiverUserID, &record.PostID,
			&record.Content, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		record.Read = read != 0
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return records, nil
}
