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

// CreateRatingAndSettle inserts a rating and re-derives the post's two
// rating slots in the same transaction. When the owner and a non-owner have
// both rated, the post moves to rated from in_progress or active.
func (s *Store) CreateRatingAndSettle(ctx context.Context, record storage.RatingRecord, postOwnerUserID string, at time.Time) (storage.RatingSlots, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RatingSlots{}, err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.RaterUserID = strings.TrimSpace(record.RaterUserID)
	record.RatedUserID = strings.TrimSpace(record.RatedUserID)
	record.PostID = strings.TrimSpace(record.PostID)
	postOwnerUserID = strings.TrimSpace(postOwnerUserID)
	if record.ID == "" || record.PostID == "" {
		return storage.RatingSlots{}, fmt.Errorf("rating id and post id are required")
	}
	if record.RaterUserID == "" || record.RatedUserID == "" || postOwnerUserID == "" {
		return storage.RatingSlots{}, fmt.Errorf("rating participants are required")
	}
	if record.CreatedAt.IsZero() {
		return storage.RatingSlots{}, fmt.Errorf("rating created_at is required")
	}

	var slots storage.RatingSlots
	err := s.inTx(ctx, "create rating", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO ratings (id, rater_user_id, rated_user_id, post_id, value, comment, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
			record.ID,
			record.RaterUserID,
			record.RatedUserID,
			record.PostID,
			record.Value,
			record.Comment,
			toMillis(record.CreatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrConflict
			}
			if isForeignKeyViolation(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("insert rating: %w", err)
		}

		var ownerRated, counterpartRated int
		if err := tx.QueryRowContext(ctx, `
SELECT
    EXISTS (SELECT 1 FROM ratings WHERE post_id = ? AND rater_user_id = ?),
    EXISTS (SELECT 1 FROM ratings WHERE post_id = ? AND rater_user_id <> ?)
`, record.PostID, postOwnerUserID, record.PostID, postOwnerUserID).Scan(&ownerRated, &counterpartRated); err != nil {
			return fmt.Errorf("read rating slots: %w", err)
		}
		slots.OwnerRated = ownerRated == 1
		slots.CounterpartRated = counterpartRated == 1
		if !slots.OwnerRated || !slots.CounterpartRated {
			return nil
		}

		err := transitionPost(ctx, tx, tx, record.PostID,
			[]storage.PostStatus{storage.PostStatusInProgress, storage.PostStatusActive}, storage.PostStatusRated, at)
		switch {
		case err == nil:
			slots.PostRated = true
		case errors.Is(err, storage.ErrPreconditionFailed):
			post, getErr := getPost(ctx, tx, record.PostID)
			if getErr != nil {
				return getErr
			}
			slots.PostRated = post.Status == storage.PostStatusRated
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return storage.RatingSlots{}, err
	}
	return slots, nil
}

// HasRated reports whether the rater already rated the post.
func (s *Store) HasRated(ctx context.Context, raterUserID string, postID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var found int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM ratings WHERE rater_user_id = ? AND post_id = ?)
`, strings.TrimSpace(raterUserID), strings.TrimSpace(postID)).Scan(&found); err != nil {
		return false, fmt.Errorf("check rating exists: %w", err)
	}
	return found == 1, nil
}

// GetRatingDistribution counts the ratings received by a user per value.
func (s *Store) GetRatingDistribution(ctx context.Context, ratedUserID string) (storage.RatingDistribution, error) {
	var dist storage.RatingDistribution
	if err := s.ready(ctx); err != nil {
		return dist, err
	}
	ratedUserID = strings.TrimSpace(ratedUserID)
	if ratedUserID == "" {
		return dist, fmt.Errorf("rated user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT value, COUNT(1) FROM ratings WHERE rated_user_id = ? GROUP BY value
`, ratedUserID)
	if err != nil {
		return dist, fmt.Errorf("rating distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var value, count int
		if err := rows.Scan(&value, &count); err != nil {
			return dist, fmt.Errorf("scan rating distribution: %w", err)
		}
		if value >= 1 && value <= len(dist) {
			dist[value-1] = count
		}
	}
	if err := rows.Err(); err != nil {
		return dist, fmt.Errorf("iterate rating distribution: %w", err)
	}
	return dist, nil
}

// ListRatingsForUser lists ratings received by a user, newest first.
func (s *Store) ListRatingsForUser(ctx context.Context, ratedUserID string) ([]storage.RatingRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ratedUserID = strings.TrimSpace(ratedUserID)
	if ratedUserID == "" {
		return nil, fmt.Errorf("rated user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, rater_user_id, rated_user_id, post_id, value, comment, created_at
FROM ratings
WHERE rated_user_id = ?
ORDER BY created_at DESC, id DESC
`, ratedUserID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var records []storage.RatingRecord
	for rows.Next() {
		var (
			record    storage.RatingRecord
			createdAt int64
		)
		if err := rows.Scan(&record.ID, &record.RaterUserID, &record.RatedUserID, &record.PostID,
			&record.Value, &record.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scan rating row: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating rows: %w", err)
	}
	return records, nil
}
