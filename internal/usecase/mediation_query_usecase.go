package usecase

import (
	"context"

	"arbitex/internal/domain/entity"
	"arbitex/internal/domain/repository"
	"arbitex/pkg/logger"
)

// MediationQueryUseCase serves the read-side projections. They are
// recomputed on demand from the aggregate store, never persisted separately,
// and a failed projection degrades to an empty list instead of erroring past
// the API boundary.
type MediationQueryUseCase struct {
	mediationRepo repository.MediationRepository
	subChatRepo   repository.SubChatRepository
}

func NewMediationQueryUseCase(
	mediationRepo repository.MediationRepository,
	subChatRepo repository.SubChatRepository,
) *MediationQueryUseCase {
	return &MediationQueryUseCase{
		mediationRepo: mediationRepo,
		subChatRepo:   subChatRepo,
	}
}

// ProjectionResult wraps a projection's items. Degraded is set when the
// underlying read failed and the list is empty rather than authoritative.
type ProjectionResult struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Degraded bool        `json:"degraded"`
}

// MediationSummary is the buyer/seller view of one request, annotated with
// the unread total across every channel the viewer participates in.
type MediationSummary struct {
	Mediation   *entity.MediationRequest `json:"mediation"`
	UnreadCount int                      `json:"unread_count"`
}

// PendingAssignments lists requests still waiting for a mediator. Admin
// view.
func (uc *MediationQueryUseCase) PendingAssignments(ctx context.Context, limit, offset int) *ProjectionResult {
	mediations, total, err := uc.mediationRepo.ListByStatus(ctx, entity.StatusPendingMediatorSelection, limit, offset)
	if err != nil {
		logger.Error("Pending-assignments projection failed: %v", err)
		return degraded()
	}
	return &ProjectionResult{Items: mediations, Total: total}
}

// PendingDecision lists requests awaiting the current mediator's accept or
// reject.
func (uc *MediationQueryUseCase) PendingDecision(ctx context.Context, mediatorID string, limit, offset int) *ProjectionResult {
	mediations, total, err := uc.mediationRepo.ListByMediator(ctx, mediatorID,
		[]entity.Status{entity.StatusMediatorAssigned}, limit, offset)
	if err != nil {
		logger.Error("Pending-decision projection failed for mediator %s: %v", mediatorID, err)
		return degraded()
	}
	return &ProjectionResult{Items: mediations, Total: total}
}

// AwaitingParties lists accepted requests where the mediator is waiting on
// funding or readiness confirmation.
func (uc *MediationQueryUseCase) AwaitingParties(ctx context.Context, mediatorID string, limit, offset int) *ProjectionResult {
	mediations, total, err := uc.mediationRepo.ListByMediator(ctx, mediatorID,
		[]entity.Status{entity.StatusMediationOfferAccepted, entity.StatusEscrowFunded}, limit, offset)
	if err != nil {
		logger.Error("Awaiting-parties projection failed for mediator %s: %v", mediatorID, err)
		return degraded()
	}
	return &ProjectionResult{Items: mediations, Total: total}
}

// MySummaries lists every request involving the user, each annotated with
// the derived unread count across the user's channels.
func (uc *MediationQueryUseCase) MySummaries(ctx context.Context, userID string, limit, offset int) *ProjectionResult {
	mediations, total, err := uc.mediationRepo.ListByParticipant(ctx, userID, limit, offset)
	if err != nil {
		logger.Error("Summaries projection failed for user %s: %v", userID, err)
		return degraded()
	}

	summaries := make([]*MediationSummary, 0, len(mediations))
	for _, m := range mediations {
		summary := &MediationSummary{Mediation: m}
		summary.UnreadCount = uc.unreadAcrossChannels(ctx, m.ID, userID)
		summaries = append(summaries, summary)
	}

	return &ProjectionResult{Items: summaries, Total: total}
}

// unreadAcrossChannels sums the derived unread counts over every channel of
// the mediation the viewer belongs to. A read failure counts as zero; the
// summary list itself is still served.
func (uc *MediationQueryUseCase) unreadAcrossChannels(ctx context.Context, mediationID, viewerID string) int {
	subChats, err := uc.subChatRepo.ListByMediationID(ctx, mediationID)
	if err != nil {
		logger.Error("Failed to list channels for mediation %s: %v", mediationID, err)
		return 0
	}

	total := 0
	for _, sc := range subChats {
		if !sc.HasParticipant(viewerID) {
			continue
		}
		messages, _, err := uc.subChatRepo.ListMessages(ctx, sc.ID, 0, 0)
		if err != nil {
			logger.Error("Failed to read channel %s for unread count: %v", sc.ID, err)
			continue
		}
		total += entity.UnreadCount(messages, viewerID)
	}
	return total
}

func degraded() *ProjectionResult {
	return &ProjectionResult{Items: []interface{}{}, Degraded: true}
}
