package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
	"github.com/finalProject2025/TP-sub000/internal/platform/pagination"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/postalcode"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage/filter"
	"go.uber.org/zap"
)

// Post is a published request or offer with its postal code revealed.
type Post struct {
	ID          string
	OwnerUserID string
	Kind        storage.PostKind
	Category    string
	Title       string
	Description string
	Location    string
	PostalCode  postalcode.PostalCode
	Status      storage.PostStatus
	AutoCloseAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open reports whether the post still takes offers at now. An active post
// past its deadline is not open even before the sweep has run.
func (p Post) Open(now time.Time) bool {
	return p.Status == storage.PostStatusActive && now.Before(p.AutoCloseAt)
}

// PublishInput describes a new post.
type PublishInput struct {
	OwnerUserID string
	Kind        storage.PostKind
	Category    string
	Title       string
	Description string
	Location    string
	PostalCode  string
}

// ListPostsInput configures the listing of open posts.
type ListPostsInput struct {
	// PostalCode keeps only posts whose revealed postal code equals it.
	PostalCode string
	// Filter is an AIP-160 expression over kind, category, owner_user_id
	// and created_at.
	Filter    string
	PageSize  int
	PageToken string
}

// PostPage is one page of posts.
type PostPage struct {
	Posts         []Post
	NextPageToken string
}

// closableFrom lists the statuses ClosePost accepts.
var closableFrom = []storage.PostStatus{storage.PostStatusActive, storage.PostStatusRated}

// PublishPost creates an active post that auto-closes after PostLifetime.
func (s *Service) PublishPost(ctx context.Context, input PublishInput) (post Post, err error) {
	if err := s.ready(); err != nil {
		return Post{}, err
	}
	ctx, span := s.startSpan(ctx, "PublishPost")
	defer func() { endSpan(span, err) }()

	record, err := s.newPostRecord(input)
	if err != nil {
		return Post{}, err
	}
	if err := s.store.CreatePost(ctx, record); err != nil {
		return Post{}, storageError(err, "", "create post")
	}
	s.logger.Debug("post published",
		zap.String("post_id", record.ID),
		zap.String("owner_user_id", record.OwnerUserID),
		zap.Time("auto_close_at", record.AutoCloseAt))
	return s.revealPost(record), nil
}

func (s *Service) newPostRecord(input PublishInput) (storage.PostRecord, error) {
	owner, err := requireUserID(input.OwnerUserID)
	if err != nil {
		return storage.PostRecord{}, err
	}
	kind := storage.PostKind(strings.ToLower(strings.TrimSpace(string(input.Kind))))
	if kind != storage.PostKindRequest && kind != storage.PostKindOffer {
		return storage.PostRecord{}, apperrors.WithMetadata(apperrors.CodePostInvalidKind,
			fmt.Sprintf("post kind %q is not request or offer", input.Kind), meta("kind", string(input.Kind)))
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return storage.PostRecord{}, apperrors.New(apperrors.CodePostTitleEmpty, "post title is required")
	}
	if runeLen(title) > maxTitleRunes {
		return storage.PostRecord{}, apperrors.New(apperrors.CodePostTitleTooLong,
			fmt.Sprintf("post title exceeds %d characters", maxTitleRunes))
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return storage.PostRecord{}, apperrors.New(apperrors.CodePostCategoryEmpty, "post category is required")
	}
	description := strings.TrimSpace(input.Description)
	if runeLen(description) > maxDescriptionRunes {
		return storage.PostRecord{}, apperrors.New(apperrors.CodePostDescriptionLong,
			fmt.Sprintf("post description exceeds %d characters", maxDescriptionRunes))
	}

	var storedPostalCode string
	if raw := postalcode.Normalize(input.PostalCode); raw != "" {
		if err := postalcode.Validate(raw); err != nil {
			return storage.PostRecord{}, err
		}
		if s.cipher == nil {
			return storage.PostRecord{}, apperrors.New(apperrors.CodeCipherNotConfigured, "postal code cipher is not configured")
		}
		storedPostalCode, err = s.cipher.Encrypt(raw)
		if err != nil {
			return storage.PostRecord{}, apperrors.Wrap(apperrors.CodePostalCodeCorrupt, "encrypt postal code", err)
		}
	}

	postID, err := generateID(s.newID, "post")
	if err != nil {
		return storage.PostRecord{}, err
	}
	now := s.nowUTC()
	return storage.PostRecord{
		ID:          postID,
		OwnerUserID: owner,
		Kind:        kind,
		Category:    category,
		Title:       title,
		Description: description,
		Location:    strings.TrimSpace(input.Location),
		PostalCode:  storedPostalCode,
		Status:      storage.PostStatusActive,
		AutoCloseAt: now.Add(PostLifetime),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SweepExpiredPosts auto-closes every active post past its deadline and
// returns how many changed. Running it again changes nothing.
func (s *Service) SweepExpiredPosts(ctx context.Context) (changed int64, err error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	ctx, span := s.startSpan(ctx, "SweepExpiredPosts")
	defer func() { endSpan(span, err) }()
	return s.sweep(ctx)
}

func (s *Service) sweep(ctx context.Context) (int64, error) {
	now := s.nowUTC()
	changed, err := s.store.ExpireActivePosts(ctx, now)
	if err != nil {
		return 0, storageError(err, "", "expire active posts")
	}
	if changed > 0 {
		s.logger.Debug("expired posts auto-closed", zap.Int64("count", changed), zap.Time("now", now))
	}
	return changed, nil
}

// ClosePost closes a post on behalf of its owner. Only active and rated
// posts can be closed; a non-owner is always refused.
func (s *Service) ClosePost(ctx context.Context, ownerUserID string, postID string) (post Post, err error) {
	if err := s.ready(); err != nil {
		return Post{}, err
	}
	ctx, span := s.startSpan(ctx, "ClosePost")
	defer func() { endSpan(span, err) }()

	ownerUserID, err = requireUserID(ownerUserID)
	if err != nil {
		return Post{}, err
	}
	if _, err := s.sweep(ctx); err != nil {
		return Post{}, err
	}
	record, err := s.loadPost(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	if record.OwnerUserID != ownerUserID {
		return Post{}, notOwner(ownerUserID, record.ID)
	}

	err = s.store.TransitionPostStatus(ctx, record.ID, closableFrom, storage.PostStatusClosed, s.nowUTC())
	if errors.Is(err, storage.ErrPreconditionFailed) {
		current, loadErr := s.loadPost(ctx, record.ID)
		if loadErr != nil {
			return Post{}, loadErr
		}
		return Post{}, invalidTransition(current, storage.PostStatusClosed)
	}
	if err != nil {
		return Post{}, storageError(err, apperrors.CodePostNotFound, "close post")
	}
	s.logger.Debug("post closed", zap.String("post_id", record.ID), zap.String("from", string(record.Status)))

	closed, err := s.loadPost(ctx, record.ID)
	if err != nil {
		return Post{}, err
	}
	return s.revealPost(closed), nil
}

// GetPost returns one post with its postal code revealed. A non-empty
// postalFilter hides a post whose decrypted postal code differs, reported as
// not found.
func (s *Service) GetPost(ctx context.Context, postID string, postalFilter string) (post Post, err error) {
	if err := s.ready(); err != nil {
		return Post{}, err
	}
	ctx, span := s.startSpan(ctx, "GetPost")
	defer func() { endSpan(span, err) }()

	if _, err := s.sweep(ctx); err != nil {
		return Post{}, err
	}
	record, err := s.loadPost(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	post = s.revealPost(record)
	if !post.PostalCode.Matches(postalFilter) {
		return Post{}, apperrors.WithMetadata(apperrors.CodePostNotFound,
			"post "+record.ID+" not found", meta("post_id", record.ID))
	}
	return post, nil
}

// ListPosts lists active posts newest first. The postal code filter is
// applied after decryption, so a page is refilled from the store until it
// holds PageSize matches or the store runs out.
func (s *Service) ListPosts(ctx context.Context, input ListPostsInput) (page PostPage, err error) {
	if err := s.ready(); err != nil {
		return PostPage{}, err
	}
	ctx, span := s.startSpan(ctx, "ListPosts")
	defer func() { endSpan(span, err) }()

	condition, err := filter.ParsePostFilter(input.Filter)
	if err != nil {
		return PostPage{}, apperrors.Wrap(apperrors.CodePostInvalidFilter, err.Error(), err)
	}
	if _, err := s.sweep(ctx); err != nil {
		return PostPage{}, err
	}
	query := storage.PostQuery{
		Statuses:  []storage.PostStatus{storage.PostStatusActive},
		PageSize:  pageSize(input.PageSize),
		PageToken: strings.TrimSpace(input.PageToken),
	}
	if !condition.Empty() {
		query.Condition = condition.Clause
		query.Params = condition.Params
	}
	return s.collectPosts(ctx, query, input.PostalCode)
}

// ListOwnPosts lists every post of an owner in any status, newest first.
func (s *Service) ListOwnPosts(ctx context.Context, ownerUserID string, size int, pageToken string) (page PostPage, err error) {
	if err := s.ready(); err != nil {
		return PostPage{}, err
	}
	ctx, span := s.startSpan(ctx, "ListOwnPosts")
	defer func() { endSpan(span, err) }()

	ownerUserID, err = requireUserID(ownerUserID)
	if err != nil {
		return PostPage{}, err
	}
	if _, err := s.sweep(ctx); err != nil {
		return PostPage{}, err
	}
	return s.collectPosts(ctx, storage.PostQuery{
		OwnerUserID: ownerUserID,
		PageSize:    pageSize(size),
		PageToken:   strings.TrimSpace(pageToken),
	}, "")
}

func (s *Service) collectPosts(ctx context.Context, query storage.PostQuery, postalFilter string) (PostPage, error) {
	postalFilter = postalcode.Normalize(postalFilter)
	page := PostPage{Posts: make([]Post, 0, query.PageSize)}
	for {
		chunk, err := s.store.ListPosts(ctx, query)
		if errors.Is(err, storage.ErrInvalidPageToken) {
			return PostPage{}, apperrors.WithMetadata(apperrors.CodePostInvalidPageToken,
				fmt.Sprintf("page token %q names no post", query.PageToken),
				meta("page_token", query.PageToken))
		}
		if err != nil {
			return PostPage{}, storageError(err, "", "list posts")
		}
		for i, record := range chunk.Posts {
			post := s.revealPost(record)
			if !post.PostalCode.Matches(postalFilter) {
				continue
			}
			page.Posts = append(page.Posts, post)
			if len(page.Posts) == query.PageSize {
				if i < len(chunk.Posts)-1 || chunk.NextPageToken != "" {
					page.NextPageToken = record.ID
				}
				return page, nil
			}
		}
		if chunk.NextPageToken == "" {
			return page, nil
		}
		query.PageToken = chunk.NextPageToken
	}
}

func (s *Service) loadPost(ctx context.Context, postID string) (storage.PostRecord, error) {
	postID = strings.TrimSpace(postID)
	record, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return storage.PostRecord{}, storageError(err, apperrors.CodePostNotFound, "post "+postID+" not found")
	}
	return record, nil
}

func (s *Service) revealPost(record storage.PostRecord) Post {
	post := Post{
		ID:          record.ID,
		OwnerUserID: record.OwnerUserID,
		Kind:        record.Kind,
		Category:    record.Category,
		Title:       record.Title,
		Description: record.Description,
		Location:    record.Location,
		Status:      record.Status,
		AutoCloseAt: record.AutoCloseAt,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
	switch {
	case record.PostalCode == "":
		post.PostalCode = postalcode.PostalCode{State: postalcode.StateAbsent}
	case s.cipher == nil:
		post.PostalCode = postalcode.PostalCode{State: postalcode.StateCorrupt}
	default:
		post.PostalCode = s.cipher.Reveal(record.PostalCode)
	}
	if post.PostalCode.State == postalcode.StateCorrupt {
		s.logger.Warn("stored postal code could not be decrypted", zap.String("post_id", record.ID))
	}
	return post
}

func pageSize(requested int) int {
	return pagination.ClampPageSize(requested, pagination.PageSizeConfig{Default: defaultPageSize, Max: maxPageSize})
}

func notOwner(userID string, postID string) error {
	return apperrors.WithMetadata(apperrors.CodePostNotOwner,
		fmt.Sprintf("user %s does not own post %s", userID, postID),
		meta("user_id", userID, "post_id", postID))
}

func invalidTransition(post storage.PostRecord, to storage.PostStatus) error {
	return apperrors.WithMetadata(apperrors.CodePostInvalidTransition,
		fmt.Sprintf("post %s cannot move from %s to %s", post.ID, post.Status, to),
		meta("post_id", post.ID, "from", string(post.Status), "to", string(to)))
}
