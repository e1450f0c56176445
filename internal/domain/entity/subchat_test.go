package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnreadCount(t *testing.T) {
	now := time.Now()
	messages := []*ChatMessage{
		{ID: "m1", SenderID: "seller-1", Body: "hi"},
		{ID: "m2", SenderID: "buyer-1", Body: "hello"},
		{ID: "m3", SenderID: "seller-1", Body: "ready?", ReadBy: []ReadReceipt{{ReaderID: "buyer-1", ReadAt: now}}},
		{ID: "m4", SenderID: "system", Body: "Mediator joined the chat"},
	}

	// Own messages never count; a receipt clears the message for its reader
	// only.
	assert.Equal(t, 2, UnreadCount(messages, "buyer-1"))
	assert.Equal(t, 2, UnreadCount(messages, "seller-1"))
	assert.Equal(t, 3, UnreadCount(messages, "mediator-1"))
	assert.Equal(t, 0, UnreadCount(nil, "buyer-1"))
}

func TestSubChatParticipants(t *testing.T) {
	sc := &SubChat{
		Participants: []Participant{
			{UserID: "buyer-1", Role: "buyer"},
			{UserID: "seller-1", Role: "seller"},
		},
	}

	assert.True(t, sc.HasParticipant("buyer-1"))
	assert.False(t, sc.HasParticipant("mediator-1"))
	assert.Equal(t, []string{"buyer-1", "seller-1"}, sc.ParticipantIDs())
}
