package usecase

import (
	"context"
	"testing"

	"arbitex/internal/domain/entity"
	"arbitex/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countEvents(b *recordingBroadcaster, room, event string) int {
	n := 0
	for _, e := range b.eventsFor(room) {
		if e == event {
			n++
		}
	}
	return n
}

func TestCreateSubChatAdminOnly(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)

	_, err := env.subChats.CreateSubChat(context.Background(), "seller-1", m.ID, CreateSubChatInput{
		Title:          "Seller side talk",
		ParticipantIDs: []string{"seller-1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestCreateSubChat(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)

	subChat, err := env.subChats.CreateSubChat(context.Background(), "admin-1", m.ID, CreateSubChatInput{
		Title:          "Buyer verification",
		ParticipantIDs: []string{"buyer-1", "mediator-1", "buyer-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.SubChatKindSide, subChat.Kind)
	assert.Equal(t, "admin-1", subChat.CreatedBy)
	require.Len(t, subChat.Participants, 2)
	assert.Equal(t, "buyer", subChat.Participants[0].Role)
	assert.Equal(t, "mediator", subChat.Participants[1].Role)
	assert.False(t, subChat.HasParticipant("seller-1"))

	// The aggregate's denormalized channel list includes the new channel.
	stored := env.reload(t, m.ID)
	var ids []string
	for _, s := range stored.SubChats {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, subChat.ID)
	assert.Contains(t, ids, m.MainChatID)

	assert.Contains(t, env.broadcaster.eventsFor(m.ID), "subchat_created")
	assert.Contains(t, env.notifier.kinds, "subchat_created")
}

func TestCreateSubChatOnClosedMediation(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toInProgress(t)

	_, err := env.uc.CompleteMediation(context.Background(), "mediator-1", m.ID)
	require.NoError(t, err)

	_, err = env.subChats.CreateSubChat(context.Background(), "admin-1", m.ID, CreateSubChatInput{
		Title:          "Too late",
		ParticipantIDs: []string{"buyer-1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "INVALID_STATE"))
}

func TestPostMessageAuthorization(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)

	_, err := env.subChats.PostMessage(context.Background(), "stranger-1", m.MainChatID, PostMessageInput{
		Type: "text", Body: "let me in",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	// Admins may post in any channel.
	_, err = env.subChats.PostMessage(context.Background(), "admin-1", m.MainChatID, PostMessageInput{
		Type: "text", Body: "admin here",
	})
	require.NoError(t, err)
}

func TestPostMessageValidation(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)

	_, err := env.subChats.PostMessage(context.Background(), "buyer-1", m.MainChatID, PostMessageInput{
		Type: "video", Body: "clip",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))

	_, err = env.subChats.PostMessage(context.Background(), "buyer-1", m.MainChatID, PostMessageInput{
		Type: "text", Body: "",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestPostMessageUpdatesChannel(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)

	msg, err := env.subChats.PostMessage(context.Background(), "seller-1", m.MainChatID, PostMessageInput{
		Type: "text", Body: "ready when you are",
	})
	require.NoError(t, err)

	subChat, err := env.subChatRepo.GetByID(context.Background(), m.MainChatID)
	require.NoError(t, err)
	assert.Equal(t, "ready when you are", subChat.LastMessage)
	assert.Equal(t, msg.CreatedAt, subChat.LastMessageAt)

	assert.Contains(t, env.broadcaster.eventsFor(m.MainChatID), "subchat_message")
}

// Unread totals are derived from receipts on the message log: they grow with
// unseen messages, drop to zero on read, and grow again afterwards.
func TestUnreadCountDerivation(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)
	ctx := context.Background()

	// The main channel already carries the two system messages.
	unread, err := env.subChats.UnreadCountFor(ctx, m.MainChatID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	_, err = env.subChats.PostMessage(ctx, "seller-1", m.MainChatID, PostMessageInput{Type: "text", Body: "first"})
	require.NoError(t, err)
	last, err := env.subChats.PostMessage(ctx, "seller-1", m.MainChatID, PostMessageInput{Type: "text", Body: "second"})
	require.NoError(t, err)

	unread, err = env.subChats.UnreadCountFor(ctx, m.MainChatID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 4, unread)

	// The sender's own messages are never unread for them.
	unread, err = env.subChats.UnreadCountFor(ctx, m.MainChatID, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	require.NoError(t, env.subChats.MarkRead(ctx, "buyer-1", m.MainChatID, last.ID))

	unread, err = env.subChats.UnreadCountFor(ctx, m.MainChatID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	_, err = env.subChats.PostMessage(ctx, "seller-1", m.MainChatID, PostMessageInput{Type: "text", Body: "third"})
	require.NoError(t, err)

	unread, err = env.subChats.UnreadCountFor(ctx, m.MainChatID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestMarkReadIdempotent(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)
	ctx := context.Background()

	last, err := env.subChats.PostMessage(ctx, "seller-1", m.MainChatID, PostMessageInput{Type: "text", Body: "hello"})
	require.NoError(t, err)

	require.NoError(t, env.subChats.MarkRead(ctx, "buyer-1", m.MainChatID, last.ID))
	receiptsAfterFirst := countEvents(env.broadcaster, m.MainChatID, "subchat_read_receipt")
	assert.Equal(t, 1, receiptsAfterFirst)

	// Re-marking already-read messages updates nothing and emits no receipt.
	require.NoError(t, env.subChats.MarkRead(ctx, "buyer-1", m.MainChatID, last.ID))
	assert.Equal(t, receiptsAfterFirst, countEvents(env.broadcaster, m.MainChatID, "subchat_read_receipt"))

	unread, err := env.subChats.UnreadCountFor(ctx, m.MainChatID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestMarkReadUnknownAnchor(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)

	err := env.subChats.MarkRead(context.Background(), "buyer-1", m.MainChatID, "no-such-message")
	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestListMessagesAuthorization(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)

	_, _, err := env.subChats.ListMessages(context.Background(), "stranger-1", m.MainChatID, 20, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	messages, total, err := env.subChats.ListMessages(context.Background(), "buyer-1", m.MainChatID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(messages)), total)
	assert.NotEmpty(t, messages)
}

func TestListMyChannels(t *testing.T) {
	env := newMediationEnv(200)
	m := env.toAccepted(t)

	channels, total, err := env.subChats.ListMyChannels(context.Background(), "buyer-1", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, channels, 1)
	assert.Equal(t, m.MainChatID, channels[0].ID)

	channels, _, err = env.subChats.ListMyChannels(context.Background(), "stranger-1", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, channels)
}
