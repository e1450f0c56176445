package repository

import (
	"context"
	"time"

	"arbitex/internal/domain/entity"
)

type SubChatRepository interface {
	Create(ctx context.Context, subChat *entity.SubChat) error
	GetByID(ctx context.Context, id string) (*entity.SubChat, error)
	Update(ctx context.Context, subChat *entity.SubChat) error
	ListByMediationID(ctx context.Context, mediationID string) ([]*entity.SubChat, error)
	ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.SubChat, int64, error)

	CreateMessage(ctx context.Context, message *entity.ChatMessage) error
	GetMessageByID(ctx context.Context, subChatID, messageID string) (*entity.ChatMessage, error)
	ListMessages(ctx context.Context, subChatID string, limit, offset int) ([]*entity.ChatMessage, int64, error)

	// MarkMessagesRead appends a read receipt for readerID to every message up
	// to and including uptoMessageID that does not already carry one. Returns
	// the ids of messages actually updated; re-marking is a no-op.
	MarkMessagesRead(ctx context.Context, subChatID, readerID, uptoMessageID string, at time.Time) ([]string, error)
}
