package domain

import (
	"context"
	"strings"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
)

// User is the display profile of a user known to the engine.
type User = storage.UserRecord

// PutUser records a user's display name. The identity provider owns
// accounts; this only mirrors what the engine needs to show and to check
// message receivers.
func (s *Service) PutUser(ctx context.Context, userID string, displayName string) (user User, err error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	ctx, span := s.startSpan(ctx, "PutUser")
	defer func() { endSpan(span, err) }()

	userID, err = requireUserID(userID)
	if err != nil {
		return User{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return User{}, apperrors.New(apperrors.CodeUserDisplayNameEmpty, "display name is required")
	}

	now := s.nowUTC()
	record := storage.UserRecord{ID: userID, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	if err := s.store.PutUser(ctx, record); err != nil {
		return User{}, storageError(err, "", "put user")
	}
	return s.GetUser(ctx, userID)
}

// GetUser loads a user's display profile.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	userID, err := requireUserID(userID)
	if err != nil {
		return User{}, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, storageError(err, apperrors.CodeUserNotFound, "user "+userID+" not found")
	}
	return user, nil
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return user.DisplayName
}
