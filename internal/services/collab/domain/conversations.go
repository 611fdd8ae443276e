package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
	"golang.org/x/text/unicode/norm"
)

// Message is one direct message between two users.
type Message = storage.MessageRecord

// Conversation summarizes the thread between a user and one counterpart.
type Conversation struct {
	CounterpartUserID      string
	CounterpartDisplayName string
	// PostID is the post carried by the earliest message that has one.
	PostID        string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
}

// SendMessageInput describes one outgoing message. PostID is optional.
type SendMessageInput struct {
	SenderUserID   string
	ReceiverUserID string
	PostID         string
	Content        string
}

// ListConversations groups the user's messages by counterpart, most recent
// conversation first.
func (s *Service) ListConversations(ctx context.Context, userID string) (conversations []Conversation, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "ListConversations")
	defer func() { endSpan(span, err) }()

	userID, err = requireUserID(userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessagesForUser(ctx, userID)
	if err != nil {
		return nil, storageError(err, "", "list messages")
	}
	conversations = aggregateConversations(userID, messages)
	for i := range conversations {
		conversations[i].CounterpartDisplayName = s.displayName(ctx, conversations[i].CounterpartUserID)
	}
	return conversations, nil
}

// aggregateConversations folds messages, ordered by time ascending, into one
// summary per counterpart.
func aggregateConversations(userID string, messages []Message) []Conversation {
	byCounterpart := make(map[string]*Conversation)
	order := make([]string, 0)
	for _, msg := range messages {
		counterpart := msg.ReceiverUserID
		if msg.SenderUserID != userID {
			counterpart = msg.SenderUserID
		} else if msg.ReceiverUserID == userID {
			continue
		}
		conv, ok := byCounterpart[counterpart]
		if !ok {
			conv = &Conversation{CounterpartUserID: counterpart}
			byCounterpart[counterpart] = conv
			order = append(order, counterpart)
		}
		if conv.PostID == "" && msg.PostID != "" {
			conv.PostID = msg.PostID
		}
		if !msg.CreatedAt.Before(conv.LastMessageAt) {
			conv.LastMessage = msg.Content
			conv.LastMessageAt = msg.CreatedAt
		}
		if msg.ReceiverUserID == userID && !msg.Read {
			conv.UnreadCount++
		}
	}

	out := make([]Conversation, 0, len(order))
	for _, counterpart := range order {
		out = append(out, *byCounterpart[counterpart])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// ListMessages returns the thread between userID and otherUserID in
// ascending order. Messages the user received from otherUserID are marked
// read before the thread is read back.
func (s *Service) ListMessages(ctx context.Context, userID string, otherUserID string) (messages []Message, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "ListMessages")
	defer func() { endSpan(span, err) }()

	userID, err = requireUserID(userID)
	if err != nil {
		return nil, err
	}
	otherUserID, err = requireUserID(otherUserID)
	if err != nil {
		return nil, err
	}
	messages, err = s.store.ListThreadAndMarkRead(ctx, userID, otherUserID)
	if err != nil {
		return nil, storageError(err, "", "list thread")
	}
	return messages, nil
}

// SendMessage stores a direct message from sender to receiver.
func (s *Service) SendMessage(ctx context.Context, input SendMessageInput) (msg Message, err error) {
	if err := s.ready(); err != nil {
		return Message{}, err
	}
	ctx, span := s.startSpan(ctx, "SendMessage")
	defer func() { endSpan(span, err) }()

	content := norm.NFC.String(strings.TrimSpace(input.Content))
	if content == "" {
		return Message{}, apperrors.New(apperrors.CodeMessageEmpty, "message content is required")
	}
	if runeLen(content) > maxTextRunes {
		return Message{}, apperrors.New(apperrors.CodeMessageTooLong,
			fmt.Sprintf("message exceeds %d characters", maxTextRunes))
	}
	sender, err := requireUserID(input.SenderUserID)
	if err != nil {
		return Message{}, err
	}
	receiver, err := requireUserID(input.ReceiverUserID)
	if err != nil {
		return Message{}, err
	}
	if sender == receiver {
		return Message{}, apperrors.New(apperrors.CodeMessageSelf, "cannot message yourself")
	}
	if _, err := s.store.GetUser(ctx, receiver); err != nil {
		return Message{}, storageError(err, apperrors.CodeMessageNoReceiver, "receiver "+receiver+" not found")
	}
	postID := strings.TrimSpace(input.PostID)
	if postID != "" {
		if _, err := s.store.GetPost(ctx, postID); err != nil {
			return Message{}, storageError(err, apperrors.CodeMessagePostMissing, "post "+postID+" not found")
		}
	}

	messageID, err := generateID(s.newMessageID, "message")
	if err != nil {
		return Message{}, err
	}
	msg = Message{
		ID:             messageID,
		SenderUserID:   sender,
		ReceiverUserID: receiver,
		PostID:         postID,
		Content:        content,
		CreatedAt:      s.nowUTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Message{}, apperrors.Wrap(apperrors.CodeMessagePostMissing, "message references a missing post", err)
		}
		return Message{}, storageError(err, "", "create message")
	}
	return msg, nil
}
