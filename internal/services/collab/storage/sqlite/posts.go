package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
)

const postColumns = `p.id, p.owner_user_id, p.kind, p.category, p.title, p.description, p.location,
    p.postal_code, p.status, p.auto_close_at, p.created_at, p.updated_at`

// CreatePost inserts one post.
func (s *Store) CreatePost(ctx context.Context, record storage.PostRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	normalized, err := normalizePostRecord(record)
	if err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO posts (
    id, owner_user_id, kind, category, title, description, location,
    postal_code, status, auto_close_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.OwnerUserID,
		normalized.Kind,
		normalized.Category,
		normalized.Title,
		normalized.Description,
		normalized.Location,
		normalized.PostalCode,
		normalized.Status,
		toMillis(normalized.AutoCloseAt),
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// GetPost loads one post by id.
func (s *Store) GetPost(ctx context.Context, postID string) (storage.PostRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PostRecord{}, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return storage.PostRecord{}, storage.ErrNotFound
	}
	return getPost(ctx, s.sqlDB, postID)
}

func getPost(ctx context.Context, q sqlQueryer, postID string) (storage.PostRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = ?`, postID)
	record, err := scanPost(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.PostRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PostRecord{}, fmt.Errorf("get post: %w", err)
	}
	return record, nil
}

// ListPosts lists posts newest first with cursor pagination. The page token
// is the id of the last post of the previous page; a token naming no post is
// ErrInvalidPageToken.
func (s *Store) ListPosts(ctx context.Context, query storage.PostQuery) (storage.PostPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PostPage{}, err
	}
	if query.PageSize <= 0 {
		return storage.PostPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var (
		where  []string
		params []any
	)
	if len(query.Statuses) > 0 {
		placeholders := make([]string, 0, len(query.Statuses))
		for _, status := range query.Statuses {
			placeholders = append(placeholders, "?")
			params = append(params, status)
		}
		where = append(where, "p.status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if owner := strings.TrimSpace(query.OwnerUserID); owner != "" {
		where = append(where, "p.owner_user_id = ?")
		params = append(params, owner)
	}
	if clause := strings.TrimSpace(query.Condition); clause != "" {
		where = append(where, clause)
		params = append(params, query.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		cursor, err := getPost(ctx, s.sqlDB, token)
		if errors.Is(err, storage.ErrNotFound) {
			return storage.PostPage{}, storage.ErrInvalidPageToken
		}
		if err != nil {
			return storage.PostPage{}, err
		}
		where = append(where, "(p.created_at < ? OR (p.created_at = ? AND p.id < ?))")
		params = append(params, toMillis(cursor.CreatedAt), toMillis(cursor.CreatedAt), cursor.ID)
	}

	var sqlText strings.Builder
	sqlText.WriteString("SELECT " + postColumns + " FROM posts p")
	if len(where) > 0 {
		sqlText.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sqlText.WriteString(" ORDER BY p.created_at DESC, p.id DESC LIMIT ?")
	params = append(params, query.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlText.String(), params...)
	if err != nil {
		return storage.PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	page := storage.PostPage{Posts: make([]storage.PostRecord, 0, query.PageSize)}
	for rows.Next() {
		record, err := scanPost(rows.Scan)
		if err != nil {
			return storage.PostPage{}, fmt.Errorf("scan post row: %w", err)
		}
		page.Posts = append(page.Posts, record)
	}
	if err := rows.Err(); err != nil {
		return storage.PostPage{}, fmt.Errorf("iterate post rows: %w", err)
	}
	if len(page.Posts) > query.PageSize {
		page.Posts = page.Posts[:query.PageSize]
		page.NextPageToken = page.Posts[len(page.Posts)-1].ID
	}
	return page, nil
}

// TransitionPostStatus moves a post to `to` when its status is one of `from`.
func (s *Store) TransitionPostStatus(ctx context.Context, postID string, from []storage.PostStatus, to storage.PostStatus, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return storage.ErrNotFound
	}
	if len(from) == 0 {
		return fmt.Errorf("source statuses are required")
	}
	return transitionPost(ctx, s.sqlDB, s.sqlDB, postID, from, to, at)
}

func transitionPost(ctx context.Context, exec sqlExecer, q sqlQueryer, postID string, from []storage.PostStatus, to storage.PostStatus, at time.Time) error {
	placeholders := make([]string, 0, len(from))
	params := []any{to, toMillis(at), postID}
	for _, status := range from {
		placeholders = append(placeholders, "?")
		params = append(params, status)
	}
	result, err := exec.ExecContext(ctx, `
UPDATE posts SET status = ?, updated_at = ?
WHERE id = ? AND status IN (`+strings.Join(placeholders, ", ")+`)
`, params...)
	if err != nil {
		return fmt.Errorf("transition post: %w", err)
	}
	return requireAffected(ctx, q, result, "posts", postID)
}

// ExpireActivePosts auto-closes every active post whose deadline is at or
// before now in one conditional update.
func (s *Store) ExpireActivePosts(ctx context.Context, now time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if now.IsZero() {
		return 0, fmt.Errorf("now is required")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE posts SET status = ?, updated_at = ?
WHERE status = ? AND auto_close_at <= ?
`, storage.PostStatusAutoClosed, toMillis(now), storage.PostStatusActive, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("expire active posts: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire active posts rows affected: %w", err)
	}
	return affected, nil
}

func normalizePostRecord(record storage.PostRecord) (storage.PostRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.OwnerUserID = strings.TrimSpace(record.OwnerUserID)
	record.Category = strings.TrimSpace(record.Category)
	record.Title = strings.TrimSpace(record.Title)
	if record.ID == "" {
		return storage.PostRecord{}, fmt.Errorf("post id is required")
	}
	if record.OwnerUserID == "" {
		return storage.PostRecord{}, fmt.Errorf("owner user id is required")
	}
	if record.Status == "" {
		return storage.PostRecord{}, fmt.Errorf("post status is required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() || record.AutoCloseAt.IsZero() {
		return storage.PostRecord{}, fmt.Errorf("post timestamps are required")
	}
	return record, nil
}

func scanPost(scan scanner) (storage.PostRecord, error) {
	var (
		record                           storage.PostRecord
		kind, status                     string
		autoCloseAt, createdAt, updateAt int64
	)
	if err := scan(
		&record.ID,
		&record.OwnerUserID,
		&kind,
		&record.Category,
		&record.Title,
		&record.Description,
		&record.Location,
		&record.PostalCode,
		&status,
		&autoCloseAt,
		&createdAt,
		&updateAt,
	); err != nil {
		return storage.PostRecord{}, err
	}
	record.Kind = storage.PostKind(kind)
	record.Status = storage.PostStatus(status)
	record.AutoCloseAt = fromMillis(autoCloseAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updateAt)
	return record, nil
}
