package domain

import "context"

// Badge is the unread notification count shown to a user.
type Badge struct {
	UnreadMessages int
	UnreadOffers   int
	Total          int
}

// UnreadBadgeCount sums unread received messages and unread pending offers
// on posts the user owns.
func (s *Service) UnreadBadgeCount(ctx context.Context, userID string) (badge Badge, err error) {
	if err := s.ready(); err != nil {
		return Badge{}, err
	}
	ctx, span := s.startSpan(ctx, "UnreadBadgeCount")
	defer func() { endSpan(span, err) }()

	userID, err = requireUserID(userID)
	if err != nil {
		return Badge{}, err
	}
	badge.UnreadMessages, err = s.store.CountUnreadMessages(ctx, userID)
	if err != nil {
		return Badge{}, storageError(err, "", "count unread messages")
	}
	badge.UnreadOffers, err = s.store.CountUnreadPendingOffers(ctx, userID)
	if err != nil {
		return Badge{}, storageError(err, "", "count unread offers")
	}
	badge.Total = badge.UnreadMessages + badge.UnreadOffers
	return badge, nil
}
