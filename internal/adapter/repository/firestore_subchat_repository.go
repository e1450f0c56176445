package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"cloud.google.com/go/firestore"

	"arbitex/internal/domain/entity"
	"arbitex/internal/domain/repository"
	"arbitex/pkg/errors"
)

type firestoreSubChatRepository struct {
	client *firestore.Client
}

func NewFirestoreSubChatRepository(client *firestore.Client) repository.SubChatRepository {
	return &firestoreSubChatRepository{
		client: client,
	}
}

func (r *firestoreSubChatRepository) Create(ctx context.Context, subChat *entity.SubChat) error {
	if subChat.ID == "" {
		subChat.ID = uuid.New().String()
	}

	now := time.Now()
	if subChat.CreatedAt.IsZero() {
		subChat.CreatedAt = now
	}
	subChat.UpdatedAt = now

	_, err := r.client.Collection("subchats").Doc(subChat.ID).Set(ctx, subChat)
	if err != nil {
		return errors.Internal("Failed to create channel", err)
	}

	return nil
}

func (r *firestoreSubChatRepository) GetByID(ctx context.Context, id string) (*entity.SubChat, error) {
	doc, err := r.client.Collection("subchats").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Channel", err)
		}
		return nil, errors.Internal("Failed to get channel", err)
	}

	var subChat entity.SubChat
	if err := doc.DataTo(&subChat); err != nil {
		return nil, errors.Internal("Failed to parse channel data", err)
	}

	return &subChat, nil
}

func (r *firestoreSubChatRepository) Update(ctx context.Context, subChat *entity.SubChat) error {
	subChat.UpdatedAt = time.Now()

	_, err := r.client.Collection("subchats").Doc(subChat.ID).Set(ctx, subChat)
	if err != nil {
		return errors.Internal("Failed to update channel", err)
	}

	return nil
}

func (r *firestoreSubChatRepository) ListByMediationID(ctx context.Context, mediationID string) ([]*entity.SubChat, error) {
	iter := r.client.Collection("subchats").
		Where("mediationId", "==", mediationID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)

	var subChats []*entity.SubChat
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to list channels", err)
		}

		var subChat entity.SubChat
		if err := doc.DataTo(&subChat); err != nil {
			return nil, errors.Internal("Failed to parse channel data", err)
		}
		subChats = append(subChats, &subChat)
	}

	return subChats, nil
}

func (r *firestoreSubChatRepository) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.SubChat, int64, error) {
	query := r.client.Collection("subchats").
		Where("participants", "array-contains", map[string]interface{}{"userId": userID}).
		OrderBy("lastMessageAt", firestore.Desc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count channels", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var subChats []*entity.SubChat
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to list channels", err)
		}

		var subChat entity.SubChat
		if err := doc.DataTo(&subChat); err != nil {
			return nil, 0, errors.Internal("Failed to parse channel data", err)
		}
		subChats = append(subChats, &subChat)
	}

	return subChats, total, nil
}

func (r *firestoreSubChatRepository) CreateMessage(ctx context.Context, message *entity.ChatMessage) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	if message.ReadBy == nil {
		message.ReadBy = []entity.ReadReceipt{}
	}

	_, err := r.client.Collection("subchats").Doc(message.SubChatID).
		Collection("messages").Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreSubChatRepository) GetMessageByID(ctx context.Context, subChatID, messageID string) (*entity.ChatMessage, error) {
	doc, err := r.client.Collection("subchats").Doc(subChatID).
		Collection("messages").Doc(messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.ChatMessage
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}

	return &message, nil
}

func (r *firestoreSubChatRepository) ListMessages(ctx context.Context, subChatID string, limit, offset int) ([]*entity.ChatMessage, int64, error) {
	collection := r.client.Collection("subchats").Doc(subChatID).Collection("messages")
	query := collection.OrderBy("createdAt", firestore.Asc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var messages []*entity.ChatMessage
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to list messages", err)
		}

		var message entity.ChatMessage
		if err := doc.DataTo(&message); err != nil {
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, &message)
	}

	return messages, total, nil
}

// MarkMessagesRead stamps the reader's receipt onto every message at or
// before the anchor message. Messages the reader already stamped are left
// untouched, so re-marking is a no-op.
func (r *firestoreSubChatRepository) MarkMessagesRead(ctx context.Context, subChatID, readerID, uptoMessageID string, at time.Time) ([]string, error) {
	anchor, err := r.GetMessageByID(ctx, subChatID, uptoMessageID)
	if err != nil {
		return nil, err
	}

	iter := r.client.Collection("subchats").Doc(subChatID).
		Collection("messages").
		Where("createdAt", "<=", anchor.CreatedAt).
		Documents(ctx)

	var updated []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to scan messages", err)
		}

		var message entity.ChatMessage
		if err := doc.DataTo(&message); err != nil {
			return nil, errors.Internal("Failed to parse message data", err)
		}

		if message.SenderID == readerID || message.ReadByUser(readerID) {
			continue
		}

		message.ReadBy = append(message.ReadBy, entity.ReadReceipt{
			ReaderID: readerID,
			ReadAt:   at,
		})

		if _, err := doc.Ref.Set(ctx, message); err != nil {
			return nil, errors.Internal("Failed to update message read status", err)
		}
		updated = append(updated, message.ID)
	}

	return updated, nil
}
