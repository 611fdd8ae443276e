package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
	"go.uber.org/zap"
)

// HelpOffer is a helper's response to a post.
type HelpOffer = storage.HelpOfferRecord

// HelpOfferView is an offer with post and counterpart display fields.
type HelpOfferView = storage.HelpOfferView

// OfferHelp records a pending offer from helperUserID on an open post.
func (s *Service) OfferHelp(ctx context.Context, helperUserID string, postID string, message string) (offer HelpOffer, err error) {
	if err := s.ready(); err != nil {
		return HelpOffer{}, err
	}
	ctx, span := s.startSpan(ctx, "OfferHelp")
	defer func() { endSpan(span, err) }()

	helperUserID, err = requireUserID(helperUserID)
	if err != nil {
		return HelpOffer{}, err
	}
	message = strings.TrimSpace(message)
	if runeLen(message) > maxTextRunes {
		return HelpOffer{}, apperrors.New(apperrors.CodeOfferMessageTooLong,
			fmt.Sprintf("offer message exceeds %d characters", maxTextRunes))
	}

	record, err := s.loadPost(ctx, postID)
	if err != nil {
		return HelpOffer{}, err
	}
	now := s.nowUTC()
	if !s.revealPost(record).Open(now) {
		return HelpOffer{}, postNotOpen(record)
	}
	if record.OwnerUserID == helperUserID {
		return HelpOffer{}, apperrors.New(apperrors.CodeOfferSelf, "cannot offer help on your own post")
	}

	offerID, err := generateID(s.newID, "offer")
	if err != nil {
		return HelpOffer{}, err
	}
	offer = HelpOffer{
		ID:           offerID,
		PostID:       record.ID,
		HelperUserID: helperUserID,
		OwnerUserID:  record.OwnerUserID,
		Message:      message,
		Status:       storage.OfferStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateOffer(ctx, offer); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return HelpOffer{}, apperrors.WithMetadata(apperrors.CodeOfferDuplicate,
				fmt.Sprintf("user %s already offered help on post %s", helperUserID, record.ID),
				meta("post_id", record.ID, "helper_user_id", helperUserID))
		}
		if errors.Is(err, storage.ErrPreconditionFailed) {
			// Closed or expired after the read above.
			if current, loadErr := s.store.GetPost(ctx, record.ID); loadErr == nil {
				record = current
			}
			return HelpOffer{}, postNotOpen(record)
		}
		return HelpOffer{}, storageError(err, apperrors.CodePostNotFound, "create offer")
	}
	s.logger.Debug("help offered", zap.String("offer_id", offer.ID), zap.String("post_id", offer.PostID))
	return offer, nil
}

// AcceptOffer accepts a pending offer and moves its post to in_progress in
// one transaction.
func (s *Service) AcceptOffer(ctx context.Context, ownerUserID string, offerID string) (offer HelpOffer, err error) {
	if err := s.ready(); err != nil {
		return HelpOffer{}, err
	}
	ctx, span := s.startSpan(ctx, "AcceptOffer")
	defer func() { endSpan(span, err) }()

	if _, err := s.sweep(ctx); err != nil {
		return HelpOffer{}, err
	}
	offer, err = s.ownedPendingOffer(ctx, ownerUserID, offerID)
	if err != nil {
		return HelpOffer{}, err
	}
	record, err := s.loadPost(ctx, offer.PostID)
	if err != nil {
		return HelpOffer{}, err
	}
	if record.Status != storage.PostStatusActive {
		return HelpOffer{}, postNotActive(record)
	}

	if err := s.store.AcceptOffer(ctx, offer.ID, s.nowUTC()); err != nil {
		if !errors.Is(err, storage.ErrPreconditionFailed) {
			return HelpOffer{}, storageError(err, apperrors.CodeOfferNotFound, "accept offer")
		}
		// Lost a race; report whichever side changed.
		current, loadErr := s.loadOffer(ctx, offer.ID)
		if loadErr != nil {
			return HelpOffer{}, loadErr
		}
		if current.Status != storage.OfferStatusPending {
			return HelpOffer{}, offerNotPending(current)
		}
		post, loadErr := s.loadPost(ctx, offer.PostID)
		if loadErr != nil {
			return HelpOffer{}, loadErr
		}
		return HelpOffer{}, postNotActive(post)
	}
	s.logger.Debug("offer accepted", zap.String("offer_id", offer.ID), zap.String("post_id", offer.PostID))
	return s.loadOffer(ctx, offer.ID)
}

// DeclineOffer declines a pending offer. The post keeps its status.
func (s *Service) DeclineOffer(ctx context.Context, ownerUserID string, offerID string) (offer HelpOffer, err error) {
	if err := s.ready(); err != nil {
		return HelpOffer{}, err
	}
	ctx, span := s.startSpan(ctx, "DeclineOffer")
	defer func() { endSpan(span, err) }()

	offer, err = s.ownedPendingOffer(ctx, ownerUserID, offerID)
	if err != nil {
		return HelpOffer{}, err
	}
	if err := s.store.DeclineOffer(ctx, offer.ID, s.nowUTC()); err != nil {
		if errors.Is(err, storage.ErrPreconditionFailed) {
			current, loadErr := s.loadOffer(ctx, offer.ID)
			if loadErr != nil {
				return HelpOffer{}, loadErr
			}
			return HelpOffer{}, offerNotPending(current)
		}
		return HelpOffer{}, storageError(err, apperrors.CodeOfferNotFound, "decline offer")
	}
	return s.loadOffer(ctx, offer.ID)
}

// MarkOfferRead flags an offer as read by the post owner. Repeating it is
// harmless.
func (s *Service) MarkOfferRead(ctx context.Context, ownerUserID string, offerID string) (offer HelpOffer, err error) {
	if err := s.ready(); err != nil {
		return HelpOffer{}, err
	}
	ctx, span := s.startSpan(ctx, "MarkOfferRead")
	defer func() { endSpan(span, err) }()

	offer, err = s.ownedOffer(ctx, ownerUserID, offerID)
	if err != nil {
		return HelpOffer{}, err
	}
	if offer.Read {
		return offer, nil
	}
	if err := s.store.MarkOfferRead(ctx, offer.ID, s.nowUTC()); err != nil {
		return HelpOffer{}, storageError(err, apperrors.CodeOfferNotFound, "mark offer read")
	}
	return s.loadOffer(ctx, offer.ID)
}

// ListOffersForOwner lists offers received on the owner's posts.
func (s *Service) ListOffersForOwner(ctx context.Context, ownerUserID string) (views []HelpOfferView, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "ListOffersForOwner")
	defer func() { endSpan(span, err) }()

	ownerUserID, err = requireUserID(ownerUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sweep(ctx); err != nil {
		return nil, err
	}
	views, err = s.store.ListOffersByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, storageError(err, "", "list offers for owner")
	}
	return views, nil
}

// ListOffersForHelper lists offers the helper submitted.
func (s *Service) ListOffersForHelper(ctx context.Context, helperUserID string) (views []HelpOfferView, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "ListOffersForHelper")
	defer func() { endSpan(span, err) }()

	helperUserID, err = requireUserID(helperUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.sweep(ctx); err != nil {
		return nil, err
	}
	views, err = s.store.ListOffersByHelper(ctx, helperUserID)
	if err != nil {
		return nil, storageError(err, "", "list offers for helper")
	}
	return views, nil
}

func (s *Service) loadOffer(ctx context.Context, offerID string) (HelpOffer, error) {
	offerID = strings.TrimSpace(offerID)
	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return HelpOffer{}, storageError(err, apperrors.CodeOfferNotFound, "offer "+offerID+" not found")
	}
	return offer, nil
}

func (s *Service) ownedOffer(ctx context.Context, ownerUserID string, offerID string) (HelpOffer, error) {
	ownerUserID, err := requireUserID(ownerUserID)
	if err != nil {
		return HelpOffer{}, err
	}
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return HelpOffer{}, err
	}
	if offer.OwnerUserID != ownerUserID {
		return HelpOffer{}, notOwner(ownerUserID, offer.PostID)
	}
	return offer, nil
}

func (s *Service) ownedPendingOffer(ctx context.Context, ownerUserID string, offerID string) (HelpOffer, error) {
	offer, err := s.ownedOffer(ctx, ownerUserID, offerID)
	if err != nil {
		return HelpOffer{}, err
	}
	if offer.Status != storage.OfferStatusPending {
		return HelpOffer{}, offerNotPending(offer)
	}
	return offer, nil
}

func offerNotPending(offer HelpOffer) error {
	return apperrors.WithMetadata(apperrors.CodeOfferNotPending,
		fmt.Sprintf("offer %s is %s, not pending", offer.ID, offer.Status),
		meta("offer_id", offer.ID, "status", string(offer.Status)))
}

func postNotActive(post storage.PostRecord) error {
	return apperrors.WithMetadata(apperrors.CodePostNotActive,
		fmt.Sprintf("post %s is %s, not active", post.ID, post.Status),
		meta("post_id", post.ID, "status", string(post.Status)))
}

func postNotOpen(record storage.PostRecord) error {
	return apperrors.WithMetadata(apperrors.CodePostNotFound,
		fmt.Sprintf("post %s is not accepting offers", record.ID),
		meta("post_id", record.ID, "status", string(record.Status)))
}
