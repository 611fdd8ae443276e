package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
)

// PutUser upserts one user display profile. CreatedAt is kept from the
// first write.
func (s *Store) PutUser(ctx context.Context, record storage.UserRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.DisplayName = strings.TrimSpace(record.DisplayName)
	if record.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.DisplayName == "" {
		return fmt.Errorf("display name is required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return fmt.Errorf("user timestamps are required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, display_name, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    display_name = excluded.display_name,
    updated_at = excluded.updated_at
`, record.ID, record.DisplayName, toMillis(record.CreatedAt), toMillis(record.UpdatedAt)); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser loads one user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (storage.UserRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.UserRecord{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.UserRecord{}, storage.ErrNotFound
	}

	var (
		record             storage.UserRecord
		createdAt, updated int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, display_name, created_at, updated_at FROM users WHERE id = ?
`, userID).Scan(&record.ID, &record.DisplayName, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updated)
	return record, nil
}
