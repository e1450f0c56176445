package repository

import (
	"context"

	"arbitex/internal/domain/entity"
)

type MediationRepository interface {
	Create(ctx context.Context, mediation *entity.MediationRequest) error
	GetByID(ctx context.Context, id string) (*entity.MediationRequest, error)

	// UpdateWithVersion persists the aggregate only if the stored version
	// still equals expectedVersion, incrementing the version on success.
	// Returns a VERSION_CONFLICT error when the optimistic lock was lost.
	UpdateWithVersion(ctx context.Context, mediation *entity.MediationRequest, expectedVersion int64) error

	ListByStatus(ctx context.Context, status entity.Status, limit, offset int) ([]*entity.MediationRequest, int64, error)
	ListByMediator(ctx context.Context, mediatorID string, statuses []entity.Status, limit, offset int) ([]*entity.MediationRequest, int64, error)
	ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.MediationRequest, int64, error)

	// SetSubChatSummaries replaces the denormalized sub-chat slice on the
	// aggregate. Called by the sub-chat coordinator only.
	SetSubChatSummaries(ctx context.Context, mediationID string, summaries []entity.SubChatSummary) error

	CreateLog(ctx context.Context, log *entity.MediationLog) error
	ListLogsByMediationID(ctx context.Context, mediationID string) ([]*entity.MediationLog, error)
}
