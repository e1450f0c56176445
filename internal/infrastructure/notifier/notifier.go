package notifier

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	ws "arbitex/internal/infrastructure/websocket"
)

// Notification is the per-user inbox entry persisted for later retrieval.
// A connected user also gets a realtime push; an offline user sees the
// document when they next sync.
type Notification struct {
	ID          string    `json:"id" firestore:"id"`
	UserID      string    `json:"user_id" firestore:"userId"`
	MediationID string    `json:"mediation_id" firestore:"mediationId"`
	Kind        string    `json:"kind" firestore:"kind"`
	Title       string    `json:"title" firestore:"title"`
	Body        string    `json:"body" firestore:"body"`
	Read        bool      `json:"read" firestore:"read"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
}

type FirestoreNotifier struct {
	client    *firestore.Client
	wsManager *ws.Manager
}

func NewFirestoreNotifier(client *firestore.Client, wsManager *ws.Manager) *FirestoreNotifier {
	return &FirestoreNotifier{
		client:    client,
		wsManager: wsManager,
	}
}

// Notify records a notification for each recipient and pushes it to any that
// are connected. Delivery is best-effort; failures are logged, never returned
// to the caller's workflow.
func (n *FirestoreNotifier) Notify(ctx context.Context, userIDs []string, mediationID, kind, title, body string) {
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}

		notification := Notification{
			ID:          uuid.New().String(),
			UserID:      userID,
			MediationID: mediationID,
			Kind:        kind,
			Title:       title,
			Body:        body,
			Read:        false,
			CreatedAt:   time.Now(),
		}

		_, err := n.client.Collection("notifications").Doc(notification.ID).Set(ctx, notification)
		if err != nil {
			log.Printf("Failed to store notification for user %s: %v", userID, err)
		}

		if n.wsManager != nil {
			payload, err := json.Marshal(map[string]interface{}{
				"event":   "notification",
				"payload": notification,
			})
			if err != nil {
				log.Printf("Failed to marshal notification for user %s: %v", userID, err)
				continue
			}
			n.wsManager.SendToUser(userID, payload)
		}
	}
}
