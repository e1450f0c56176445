package entity

import "time"

const (
	SubChatKindMain = "main"
	SubChatKindSide = "side"
)

type Participant struct {
	UserID string `json:"user_id" firestore:"userId"`
	Role   string `json:"role" firestore:"role"` // "buyer", "seller", "mediator", "admin"
}

type SubChat struct {
	ID            string        `json:"id" firestore:"id"`
	MediationID   string        `json:"mediation_id" firestore:"mediationId"`
	Kind          string        `json:"kind" firestore:"kind"`
	Title         string        `json:"title" firestore:"title"`
	CreatedBy     string        `json:"created_by" firestore:"createdBy"`
	Participants  []Participant `json:"participants" firestore:"participants"`
	LastMessage   string        `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time     `json:"last_message_at" firestore:"lastMessageAt"`
	CreatedAt     time.Time     `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time     `json:"updated_at" firestore:"updatedAt"`
}

func (s *SubChat) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (s *SubChat) ParticipantIDs() []string {
	ids := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

type ReadReceipt struct {
	ReaderID string    `json:"reader_id" firestore:"readerId"`
	ReadAt   time.Time `json:"read_at" firestore:"readAt"`
}

type ChatMessage struct {
	ID        string                 `json:"id" firestore:"id"`
	SubChatID string                 `json:"sub_chat_id" firestore:"subChatId"`
	SenderID  string                 `json:"sender_id" firestore:"senderId"`
	Type      string                 `json:"type" firestore:"type"` // "text", "image", "file", "system"
	Body      string                 `json:"body" firestore:"body"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	ReadBy    []ReadReceipt          `json:"read_by" firestore:"readBy"`
	CreatedAt time.Time              `json:"created_at" firestore:"createdAt"`
}

func (m *ChatMessage) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.ReaderID == userID {
			return true
		}
	}
	return false
}

// UnreadCount derives the viewer's unread total from the message log; it is
// never stored as a counter that could drift.
func UnreadCount(messages []*ChatMessage, viewerID string) int {
	count := 0
	for _, m := range messages {
		if m.SenderID == viewerID {
			continue
		}
		if !m.ReadByUser(viewerID) {
			count++
		}
	}
	return count
}
