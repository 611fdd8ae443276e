// Package storage defines collab persistence records and store contracts.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write violated a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrPreconditionFailed indicates a conditional update matched no row
	// because the record is no longer in the expected state.
	ErrPreconditionFailed = errors.New("record precondition failed")
	// ErrInvalidPageToken indicates a page token that names no record.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// PostKind distinguishes requests for help from offers of help.
type PostKind string

const (
	PostKindRequest PostKind = "request"
	PostKindOffer   PostKind = "offer"
)

// PostStatus is one state of the post lifecycle.
type PostStatus string

const (
	PostStatusActive     PostStatus = "active"
	PostStatusInProgress PostStatus = "in_progress"
	PostStatusRated      PostStatus = "rated"
	PostStatusClosed     PostStatus = "closed"
	PostStatusAutoClosed PostStatus = "auto_closed"
)

// OfferStatus is one state of a help offer.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusDeclined OfferStatus = "declined"
)

// UserRecord stores the display fields the engine needs about a user.
type UserRecord struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PostRecord stores one published post. PostalCode holds the stored form,
// either an encrypted token or legacy plaintext.
type PostRecord struct {
	ID          string
	OwnerUserID string
	Kind        PostKind
	Category    string
	Title       string
	Description string
	Location    string
	PostalCode  string
	Status      PostStatus
	AutoCloseAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PostQuery selects posts for listing. Condition and Params come from the
// filter package and are appended to the WHERE clause verbatim.
type PostQuery struct {
	Statuses    []PostStatus
	OwnerUserID string
	Condition   string
	Params      []any
	PageSize    int
	PageToken   string
}

// PostPage is one page of posts ordered newest first.
type PostPage struct {
	Posts         []PostRecord
	NextPageToken string
}

// HelpOfferRecord stores one helper response to a post.
type HelpOfferRecord struct {
	ID           string
	PostID       string
	HelperUserID string
	OwnerUserID  string
	Message      string
	Status       OfferStatus
	Read         bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HelpOfferView is an offer joined with post and user display fields.
type HelpOfferView struct {
	Offer             HelpOfferRecord
	PostTitle         string
	PostStatus        PostStatus
	HelperDisplayName string
	OwnerDisplayName  string
}

// RatingRecord stores one immutable rating.
type RatingRecord struct {
	ID          string
	RaterUserID string
	RatedUserID string
	PostID      string
	Value       int
	Comment     string
	CreatedAt   time.Time
}

// RatingSlots reports the result of a rating write. The owner slot and the
// counterpart slot are derived from the stored ratings for the post.
type RatingSlots struct {
	OwnerRated       bool
	CounterpartRated bool
	PostRated        bool
}

// RatingDistribution counts ratings by value; index 0 holds value 1.
type RatingDistribution [5]int

// MessageRecord stores one direct message.
type MessageRecord struct {
	ID             string
	SenderUserID   string
	ReceiverUserID string
	PostID         string
	Content        string
	Read           bool
	CreatedAt      time.Time
}

// UserStore persists user display profiles.
type UserStore interface {
	PutUser(ctx context.Context, record UserRecord) error
	GetUser(ctx context.Context, userID string) (UserRecord, error)
}

// PostStore persists posts and their lifecycle transitions.
type PostStore interface {
	CreatePost(ctx context.Context, record PostRecord) error
	GetPost(ctx context.Context, postID string) (PostRecord, error)
	ListPosts(ctx context.Context, query PostQuery) (PostPage, error)
	// TransitionPostStatus moves a post to `to` only when its current status
	// is one of `from`.
	TransitionPostStatus(ctx context.Context, postID string, from []PostStatus, to PostStatus, at time.Time) error
	// ExpireActivePosts auto-closes every active post due at or before now
	// and returns the number of posts changed.
	ExpireActivePosts(ctx context.Context, now time.Time) (int64, error)
}

// OfferStore persists help offers.
type OfferStore interface {
	CreateOffer(ctx context.Context, record HelpOfferRecord) error
	GetOffer(ctx context.Context, offerID string) (HelpOfferRecord, error)
	FindAcceptedOffer(ctx context.Context, postID string) (HelpOfferRecord, error)
	// AcceptOffer marks a pending offer accepted and its active post
	// in_progress atomically.
	AcceptOffer(ctx context.Context, offerID string, at time.Time) error
	DeclineOffer(ctx context.Context, offerID string, at time.Time) error
	MarkOfferRead(ctx context.Context, offerID string, at time.Time) error
	ListOffersByOwner(ctx context.Context, ownerUserID string) ([]HelpOfferView, error)
	ListOffersByHelper(ctx context.Context, helperUserID string) ([]HelpOfferView, error)
	CountUnreadPendingOffers(ctx context.Context, ownerUserID string) (int, error)
}

// RatingStore persists ratings.
type RatingStore interface {
	// CreateRatingAndSettle inserts a rating and, when both the post owner
	// and a counterpart have rated, marks the post rated in the same
	// transaction.
	CreateRatingAndSettle(ctx context.Context, record RatingRecord, postOwnerUserID string, at time.Time) (RatingSlots, error)
	HasRated(ctx context.Context, raterUserID string, postID string) (bool, error)
	GetRatingDistribution(ctx context.Context, ratedUserID string) (RatingDistribution, error)
	ListRatingsForUser(ctx context.Context, ratedUserID string) ([]RatingRecord, error)
}

// MessageStore persists direct messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, record MessageRecord) error
	// ListMessagesForUser returns every message sent or received by the user
	// in ascending time order.
	ListMessagesForUser(ctx context.Context, userID string) ([]MessageRecord, error)
	// ListThreadAndMarkRead marks messages from otherUserID to userID read
	// and returns the thread in ascending time order.
	ListThreadAndMarkRead(ctx context.Context, userID string, otherUserID string) ([]MessageRecord, error)
	CountUnreadMessages(ctx context.Context, userID string) (int, error)
}

// Store is the full collab persistence boundary.
type Store interface {
	UserStore
	PostStore
	OfferStore
	RatingStore
	MessageStore
}
