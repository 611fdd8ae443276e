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

const offerColumns = `o.id, o.post_id, o.helper_user_id, o.owner_user_id, o.message, o.status,
    o.is_read, o.created_at, o.updated_at`

// CreateOffer inserts one pending offer while its post is still active and
// not past its deadline at record.CreatedAt. The post check and the insert
// share one transaction. An unknown post is ErrNotFound, a post that stopped
// accepting offers is ErrPreconditionFailed, and the (post, helper) unique
// index turns a duplicate into ErrConflict.
func (s *Store) CreateOffer(ctx context.Context, record storage.HelpOfferRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.PostID = strings.TrimSpace(record.PostID)
	record.HelperUserID = strings.TrimSpace(record.HelperUserID)
	record.OwnerUserID = strings.TrimSpace(record.OwnerUserID)
	if record.ID == "" || record.PostID == "" {
		return fmt.Errorf("offer id and post id are required")
	}
	if record.HelperUserID == "" || record.OwnerUserID == "" {
		return fmt.Errorf("offer helper and owner are required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return fmt.Errorf("offer timestamps are required")
	}

	return s.inTx(ctx, "create offer", func(tx *sql.Tx) error {
		post, err := getPost(ctx, tx, record.PostID)
		if err != nil {
			return err
		}
		if post.Status != storage.PostStatusActive || !post.AutoCloseAt.After(record.CreatedAt) {
			return storage.ErrPreconditionFailed
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO help_offers (
    id, post_id, helper_user_id, owner_user_id, message, status, is_read, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			record.ID,
			record.PostID,
			record.HelperUserID,
			record.OwnerUserID,
			record.Message,
			record.Status,
			boolToInt(record.Read),
			toMillis(record.CreatedAt),
			toMillis(record.UpdatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrConflict
			}
			if isForeignKeyViolation(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("create offer: %w", err)
		}
		return nil
	})
}

// GetOffer loads one offer by id.
func (s *Store) GetOffer(ctx context.Context, offerID string) (storage.HelpOfferRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.HelpOfferRecord{}, err
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return storage.HelpOfferRecord{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM help_offers o WHERE o.id = ?`, offerID)
	record, err := scanOffer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.HelpOfferRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.HelpOfferRecord{}, fmt.Errorf("get offer: %w", err)
	}
	return record, nil
}

// FindAcceptedOffer returns the accepted offer of a post.
func (s *Store) FindAcceptedOffer(ctx context.Context, postID string) (storage.HelpOfferRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.HelpOfferRecord{}, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return storage.HelpOfferRecord{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+offerColumns+`
FROM help_offers o
WHERE o.post_id = ? AND o.status = ?
ORDER BY o.updated_at ASC
LIMIT 1
`, postID, storage.OfferStatusAccepted)
	record, err := scanOffer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.HelpOfferRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.HelpOfferRecord{}, fmt.Errorf("find accepted offer: %w", err)
	}
	return record, nil
}

// AcceptOffer moves a pending offer to accepted and its active post to
// in_progress in one transaction. Either update matching no row rolls back
// both with ErrPreconditionFailed.
func (s *Store) AcceptOffer(ctx context.Context, offerID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return storage.ErrNotFound
	}

	return s.inTx(ctx, "accept offer", func(tx *sql.Tx) error {
		var postID string
		err := tx.QueryRowContext(ctx, `SELECT post_id FROM help_offers WHERE id = ?`, offerID).Scan(&postID)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load offer post: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
UPDATE help_offers SET status = ?, is_read = 1, updated_at = ?
WHERE id = ? AND status = ?
`, storage.OfferStatusAccepted, toMillis(at), offerID, storage.OfferStatusPending)
		if err != nil {
			return fmt.Errorf("accept offer: %w", err)
		}
		if err := requireAffected(ctx, tx, result, "help_offers", offerID); err != nil {
			return err
		}
		return transitionPost(ctx, tx, tx, postID,
			[]storage.PostStatus{storage.PostStatusActive}, storage.PostStatusInProgress, at)
	})
}

// DeclineOffer moves a pending offer to declined and marks it read.
func (s *Store) DeclineOffer(ctx context.Context, offerID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return storage.ErrNotFound
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE help_offers SET status = ?, is_read = 1, updated_at = ?
WHERE id = ? AND status = ?
`, storage.OfferStatusDeclined, toMillis(at), offerID, storage.OfferStatusPending)
	if err != nil {
		return fmt.Errorf("decline offer: %w", err)
	}
	return requireAffected(ctx, s.sqlDB, result, "help_offers", offerID)
}

// MarkOfferRead sets the read flag. Marking a read offer again succeeds.
func (s *Store) MarkOfferRead(ctx context.Context, offerID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	offerID = strings.TrimSpace(offerID)
	if offerID == "" {
		return storage.ErrNotFound
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE help_offers SET is_read = 1, updated_at = ?
WHERE id = ?
`, toMillis(at), offerID)
	if err != nil {
		return fmt.Errorf("mark offer read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark offer read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListOffersByOwner lists offers received on the owner's posts, newest first.
func (s *Store) ListOffersByOwner(ctx context.Context, ownerUserID string) ([]storage.HelpOfferView, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, fmt.Errorf("owner user id is required")
	}
	return s.listOfferViews(ctx, "o.owner_user_id = ?", ownerUserID)
}

// ListOffersByHelper lists offers the helper submitted, newest first.
func (s *Store) ListOffersByHelper(ctx context.Context, helperUserID string) ([]storage.HelpOfferView, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	helperUserID = strings.TrimSpace(helperUserID)
	if helperUserID == "" {
		return nil, fmt.Errorf("helper user id is required")
	}
	return s.listOfferViews(ctx, "o.helper_user_id = ?", helperUserID)
}

func (s *Store) listOfferViews(ctx context.Context, where string, arg string) ([]storage.HelpOfferView, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+offerColumns+`, p.title, p.status,
    COALESCE(h.display_name, ''), COALESCE(w.display_name, '')
FROM help_offers o
JOIN posts p ON p.id = o.post_id
LEFT JOIN users h ON h.id = o.helper_user_id
LEFT JOIN users w ON w.id = o.owner_user_id
WHERE `+where+`
ORDER BY o.created_at DESC, o.id DESC
`, arg)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var views []storage.HelpOfferView
	for rows.Next() {
		var (
			view       storage.HelpOfferView
			postStatus string
		)
		offer, err := scanOffer(func(dest ...any) error {
			return rows.Scan(append(dest, &view.PostTitle, &postStatus, &view.HelperDisplayName, &view.OwnerDisplayName)...)
		})
		if err != nil {
			return nil, fmt.Errorf("scan offer row: %w", err)
		}
		view.Offer = offer
		view.PostStatus = storage.PostStatus(postStatus)
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer rows: %w", err)
	}
	return views, nil
}

// CountUnreadPendingOffers counts pending unread offers on the owner's posts.
func (s *Store) CountUnreadPendingOffers(ctx context.Context, ownerUserID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return 0, fmt.Errorf("owner user id is required")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM help_offers
WHERE owner_user_id = ? AND status = ? AND is_read = 0
`, ownerUserID, storage.OfferStatusPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread offers: %w", err)
	}
	return count, nil
}

func scanOffer(scan scanner) (storage.HelpOfferRecord, error) {
	var (
		record               storage.HelpOfferRecord
		status               string
		read                 int
		createdAt, updatedAt int64
	)
	if err := scan(
		&record.ID,
		&record.PostID,
		&record.HelperUserID,
		&record.OwnerUserID,
		&record.Message,
		&status,
		&read,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.HelpOfferRecord{}, err
	}
	record.Status = storage.OfferStatus(status)
	record.Read = read != 0
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
