package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
)

func (f *fixture) send(t *testing.T, sender string, receiver string, postID string, content string) Message {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		SenderUserID:   sender,
		ReceiverUserID: receiver,
		PostID:         postID,
		Content:        content,
	})
	if err != nil {
		t.Fatalf("send %s -> %s: %v", sender, receiver, err)
	}
	return msg
}

func TestSendMessage_Guards(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.putUsers(t, "ana", "ben")

	testCases := []struct {
		name  string
		input SendMessageInput
		want  apperrors.Code
	}{
		{name: "blank content", input: SendMessageInput{SenderUserID: "ana", ReceiverUserID: "ben", Content: "   "}, want: apperrors.CodeMessageEmpty},
		{name: "long content", input: SendMessageInput{SenderUserID: "ana", ReceiverUserID: "ben", Content: strings.Repeat("x", maxTextRunes+1)}, want: apperrors.CodeMessageTooLong},
		{name: "self", input: SendMessageInput{SenderUserID: "ana", ReceiverUserID: "ana", Content: "hi"}, want: apperrors.CodeMessageSelf},
		{name: "unknown receiver", input: SendMessageInput{SenderUserID: "ana", ReceiverUserID: "ghost", Content: "hi"}, want: apperrors.CodeMessageNoReceiver},
		{name: "unknown post", input: SendMessageInput{SenderUserID: "ana", ReceiverUserID: "ben", PostID: "missing", Content: "hi"}, want: apperrors.CodeMessagePostMissing},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, tc.input)
			requireCode(t, err, tc.want)
		})
	}
}

func TestSendMessage_NormalizesContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.putUsers(t, "ana", "ben")

	msg := f.send(t, "ana", "ben", "", "  Café at noon?  ")
	if msg.Content != "Café at noon?" {
		t.Fatalf("content = %q", msg.Content)
	}
	if msg.PostID != "" || msg.Read {
		t.Fatalf("message = %+v", msg)
	}

	exact := strings.Repeat("é", maxTextRunes)
	if _, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		SenderUserID:   "ana",
		ReceiverUserID: "ben",
		Content:        exact,
	}); err != nil {
		t.Fatalf("send %d runes: %v", maxTextRunes, err)
	}
}

func TestSendMessage_StorageFailure(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	f := newFixtureWithStore(t, store, faultyStore{Store: store, err: errors.New("disk full")})
	f.putUsers(t, "ana", "ben")

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		SenderUserID:   "ana",
		ReceiverUserID: "ben",
		Content:        "hi",
	})
	requireCode(t, err, apperrors.CodeStorageUnavailable)
}

func TestListConversations_GroupsByCounterpart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.putUsers(t, "ana", "ben", "cleo")
	post := f.publish(t, "ben", "")
	later := f.publish(t, "ben", "")

	f.send(t, "ana", "ben", "", "hello")
	f.clock.Advance(time.Minute)
	f.send(t, "ben", "ana", post.ID, "about the hedge")
	f.clock.Advance(time.Minute)
	f.send(t, "cleo", "ana", "", "are you around?")
	f.clock.Advance(time.Minute)
	f.send(t, "ben", "ana", later.ID, "see you saturday")
	f.clock.Advance(time.Minute)
	f.send(t, "cleo", "ben", "", "not for ana")

	conversations, err := f.svc.ListConversations(ctx, "ana")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("conversations = %+v", conversations)
	}

	ben := conversations[0]
	if ben.CounterpartUserID != "ben" || ben.CounterpartDisplayName != "Name ben" {
		t.Fatalf("first conversation = %+v", ben)
	}
	if ben.PostID != post.ID {
		t.Fatalf("post id = %q, want %q", ben.PostID, post.ID)
	}
	if ben.LastMessage != "see you saturday" || !ben.LastMessageAt.Equal(testStart.Add(3*time.Minute)) {
		t.Fatalf("last message = %q at %v", ben.LastMessage, ben.LastMessageAt)
	}
	if ben.UnreadCount != 2 {
		t.Fatalf("unread = %d, want 2", ben.UnreadCount)
	}

	cleo := conversations[1]
	if cleo.CounterpartUserID != "cleo" || cleo.UnreadCount != 1 || cleo.PostID != "" {
		t.Fatalf("second conversation = %+v", cleo)
	}
}

func TestListMessages_MarksIncomingReadBeforeReturning(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.putUsers(t, "ana", "ben")

	f.send(t, "ben", "ana", "", "one")
	f.clock.Advance(time.Second)
	f.send(t, "ana", "ben", "", "two")
	f.clock.Advance(time.Second)
	f.send(t, "ben", "ana", "", "three")

	thread, err := f.svc.ListMessages(ctx, "ana", "ben")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	var contents []string
	for _, msg := range thread {
		contents = append(contents, msg.Content)
		if msg.ReceiverUserID == "ana" && !msg.Read {
			t.Fatalf("incoming message %q not marked read", msg.Content)
		}
		if msg.ReceiverUserID == "ben" && msg.Read {
			t.Fatalf("outgoing message %q marked read", msg.Content)
		}
	}
	if got := strings.Join(contents, ","); got != "one,two,three" {
		t.Fatalf("thread = %s, want one,two,three", got)
	}

	badge, err := f.svc.UnreadBadgeCount(ctx, "ana")
	if err != nil {
		t.Fatalf("badge: %v", err)
	}
	if badge.UnreadMessages != 0 {
		t.Fatalf("unread messages = %d, want 0", badge.UnreadMessages)
	}
	badge, err = f.svc.UnreadBadgeCount(ctx, "ben")
	if err != nil {
		t.Fatalf("badge: %v", err)
	}
	if badge.UnreadMessages != 1 {
		t.Fatalf("ben unread messages = %d, want 1", badge.UnreadMessages)
	}
}

func TestAggregateConversations_SkipsSelfMessages(t *testing.T) {
	t.Parallel()

	got := aggregateConversations("ana", []Message{
		{ID: "m1", SenderUserID: "ana", ReceiverUserID: "ana", Content: "note", CreatedAt: testStart},
		{ID: "m2", SenderUserID: "ana", ReceiverUserID: "ben", Content: "hi", CreatedAt: testStart.Add(time.Minute)},
	})
	if len(got) != 1 || got[0].CounterpartUserID != "ben" || got[0].UnreadCount != 0 {
		t.Fatalf("conversations = %+v", got)
	}
}
