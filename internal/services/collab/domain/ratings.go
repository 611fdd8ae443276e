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

const (
	minRating = 1
	maxRating = 5
)

// Rating is an immutable score one participant gave the other.
type Rating = storage.RatingRecord

// IneligibleReason explains why a user cannot rate a post.
type IneligibleReason string

const (
	// ReasonNone means the user may rate.
	ReasonNone IneligibleReason = ""
	// ReasonAlreadyRated means the user already rated this post.
	ReasonAlreadyRated IneligibleReason = "already_rated"
	// ReasonNoAcceptedOffer means the post has no accepted helper yet.
	ReasonNoAcceptedOffer IneligibleReason = "no_accepted_offer"
	// ReasonNotParticipant means the user is neither owner nor accepted helper.
	ReasonNotParticipant IneligibleReason = "not_participant"
)

// Eligibility is the rating gate answer for one user and post.
type Eligibility struct {
	CanRate     bool
	HasRated    bool
	Reason      IneligibleReason
	RatedUserID string
}

// SubmitRatingInput describes one rating.
type SubmitRatingInput struct {
	RaterUserID string
	RatedUserID string
	PostID      string
	Value       int
	Comment     string
}

// RatingSummary aggregates the ratings a user received.
type RatingSummary struct {
	Count   int
	Average float64
	// Distribution holds the count per value; index 0 is value 1.
	Distribution [maxRating]int
}

// collaboration identifies the two parties of a post with an accepted offer.
type collaboration struct {
	post   storage.PostRecord
	helper string
	found  bool
}

func (c collaboration) counterpart(userID string) (string, bool) {
	if !c.found {
		return "", false
	}
	switch userID {
	case c.post.OwnerUserID:
		return c.helper, true
	case c.helper:
		return c.post.OwnerUserID, true
	default:
		return "", false
	}
}

func (s *Service) loadCollaboration(ctx context.Context, postID string) (collaboration, error) {
	record, err := s.loadPost(ctx, postID)
	if err != nil {
		return collaboration{}, err
	}
	accepted, err := s.store.FindAcceptedOffer(ctx, record.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return collaboration{post: record}, nil
	}
	if err != nil {
		return collaboration{}, storageError(err, "", "find accepted offer")
	}
	return collaboration{post: record, helper: accepted.HelperUserID, found: true}, nil
}

// CheckRatingEligibility reports whether userID may rate the counterpart of
// postID. An existing rating by the user wins over eligibility.
func (s *Service) CheckRatingEligibility(ctx context.Context, userID string, postID string) (out Eligibility, err error) {
	if err := s.ready(); err != nil {
		return Eligibility{}, err
	}
	ctx, span := s.startSpan(ctx, "CheckRatingEligibility")
	defer func() { endSpan(span, err) }()

	userID, err = requireUserID(userID)
	if err != nil {
		return Eligibility{}, err
	}
	collab, err := s.loadCollaboration(ctx, postID)
	if err != nil {
		return Eligibility{}, err
	}
	hasRated, err := s.store.HasRated(ctx, userID, collab.post.ID)
	if err != nil {
		return Eligibility{}, storageError(err, "", "check existing rating")
	}

	counterpart, participant := collab.counterpart(userID)
	out.RatedUserID = counterpart
	switch {
	case hasRated:
		out.HasRated = true
		out.Reason = ReasonAlreadyRated
	case !collab.found:
		out.Reason = ReasonNoAcceptedOffer
	case !participant:
		out.Reason = ReasonNotParticipant
	default:
		out.CanRate = true
	}
	return out, nil
}

// SubmitRating stores a rating and marks the post rated once both the owner
// and the accepted helper have rated.
func (s *Service) SubmitRating(ctx context.Context, input SubmitRatingInput) (rating Rating, err error) {
	if err := s.ready(); err != nil {
		return Rating{}, err
	}
	ctx, span := s.startSpan(ctx, "SubmitRating")
	defer func() { endSpan(span, err) }()

	if input.Value < minRating || input.Value > maxRating {
		return Rating{}, apperrors.WithMetadata(apperrors.CodeRatingOutOfRange,
			fmt.Sprintf("rating %d is outside %d..%d", input.Value, minRating, maxRating),
			meta("value", fmt.Sprint(input.Value)))
	}
	comment := strings.TrimSpace(input.Comment)
	if runeLen(comment) > maxTextRunes {
		return Rating{}, apperrors.New(apperrors.CodeRatingCommentTooLong,
			fmt.Sprintf("rating comment exceeds %d characters", maxTextRunes))
	}
	rater, err := requireUserID(input.RaterUserID)
	if err != nil {
		return Rating{}, err
	}
	rated, err := requireUserID(input.RatedUserID)
	if err != nil {
		return Rating{}, err
	}
	if rater == rated {
		return Rating{}, apperrors.New(apperrors.CodeRatingSelf, "cannot rate yourself")
	}

	collab, err := s.loadCollaboration(ctx, input.PostID)
	if err != nil {
		return Rating{}, err
	}
	postID := collab.post.ID
	hasRated, err := s.store.HasRated(ctx, rater, postID)
	if err != nil {
		return Rating{}, storageError(err, "", "check existing rating")
	}
	if hasRated {
		return Rating{}, duplicateRating(rater, postID)
	}
	counterpart, participant := collab.counterpart(rater)
	if !participant {
		if !collab.found && rater == collab.post.OwnerUserID {
			return Rating{}, apperrors.WithMetadata(apperrors.CodeRatingPostNotEligible,
				fmt.Sprintf("post %s has no accepted offer", postID), meta("post_id", postID))
		}
		return Rating{}, apperrors.WithMetadata(apperrors.CodeRatingNotParticipant,
			fmt.Sprintf("user %s did not collaborate on post %s", rater, postID),
			meta("user_id", rater, "post_id", postID))
	}
	if counterpart != rated {
		return Rating{}, apperrors.WithMetadata(apperrors.CodeRatingWrongTarget,
			fmt.Sprintf("user %s is not the counterpart on post %s", rated, postID),
			meta("rated_user_id", rated, "post_id", postID))
	}

	ratingID, err := generateID(s.newID, "rating")
	if err != nil {
		return Rating{}, err
	}
	now := s.nowUTC()
	rating = Rating{
		ID:          ratingID,
		RaterUserID: rater,
		RatedUserID: rated,
		PostID:      postID,
		Value:       input.Value,
		Comment:     comment,
		CreatedAt:   now,
	}
	slots, err := s.store.CreateRatingAndSettle(ctx, rating, collab.post.OwnerUserID, now)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return Rating{}, duplicateRating(rater, postID)
		}
		return Rating{}, storageError(err, apperrors.CodePostNotFound, "create rating")
	}
	if slots.PostRated {
		s.logger.Debug("post rated by both parties", zap.String("post_id", postID))
	}
	return rating, nil
}

// GetRatingSummary aggregates the ratings received by userID.
func (s *Service) GetRatingSummary(ctx context.Context, userID string) (summary RatingSummary, err error) {
	if err := s.ready(); err != nil {
		return RatingSummary{}, err
	}
	ctx, span := s.startSpan(ctx, "GetRatingSummary")
	defer func() { endSpan(span, err) }()

	userID, err = requireUserID(userID)
	if err != nil {
		return RatingSummary{}, err
	}
	dist, err := s.store.GetRatingDistribution(ctx, userID)
	if err != nil {
		return RatingSummary{}, storageError(err, "", "rating distribution")
	}
	return summarize(dist), nil
}

func summarize(dist storage.RatingDistribution) RatingSummary {
	summary := RatingSummary{Distribution: dist}
	total := 0
	for i, count := range dist {
		summary.Count += count
		total += count * (i + 1)
	}
	if summary.Count > 0 {
		summary.Average = float64(total) / float64(summary.Count)
	}
	return summary
}

// ListRatingsForUser lists ratings received by userID, newest first.
func (s *Service) ListRatingsForUser(ctx context.Context, userID string) (ratings []Rating, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "ListRatingsForUser")
	defer func() { endSpan(span, err) }()

	userID, err = requireUserID(userID)
	if err != nil {
		return nil, err
	}
	ratings, err = s.store.ListRatingsForUser(ctx, userID)
	if err != nil {
		return nil, storageError(err, "", "list ratings")
	}
	return ratings, nil
}

func duplicateRating(rater string, postID string) error {
	return apperrors.WithMetadata(apperrors.CodeRatingDuplicate,
		fmt.Sprintf("user %s already rated post %s", rater, postID),
		meta("user_id", rater, "post_id", postID))
}
