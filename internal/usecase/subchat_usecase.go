package usecase

import (
	"context"
	"log"
	"time"

	"arbitex/internal/domain/entity"
	"arbitex/internal/domain/repository"
	"arbitex/internal/infrastructure/metrics"
	"arbitex/pkg/errors"
)

// SubChatUseCase owns every write to sub-chat message logs and read
// receipts. The main channel of each mediation is a sub-chat of kind "main";
// admins open additional side channels.
type SubChatUseCase struct {
	subChatRepo   repository.SubChatRepository
	mediationRepo repository.MediationRepository
	userRepo      repository.UserRepository
	broadcaster   Broadcaster
	notifier      Notifier
	metrics       *metrics.MediationMetrics
}

func NewSubChatUseCase(
	subChatRepo repository.SubChatRepository,
	mediationRepo repository.MediationRepository,
	userRepo repository.UserRepository,
	broadcaster Broadcaster,
	notifier Notifier,
	m *metrics.MediationMetrics,
) *SubChatUseCase {
	return &SubChatUseCase{
		subChatRepo:   subChatRepo,
		mediationRepo: mediationRepo,
		userRepo:      userRepo,
		broadcaster:   broadcaster,
		notifier:      notifier,
		metrics:       m,
	}
}

// CreateMainChannel opens the buyer/seller channel that every mediation
// starts with. The mediator joins on acceptance.
func (uc *SubChatUseCase) CreateMainChannel(ctx context.Context, mediation *entity.MediationRequest) (*entity.SubChat, error) {
	now := time.Now()
	subChat := &entity.SubChat{
		MediationID: mediation.ID,
		Kind:        entity.SubChatKindMain,
		Title:       "Mediation chat",
		CreatedBy:   SystemActor,
		Participants: []entity.Participant{
			{UserID: mediation.BuyerID, Role: "buyer"},
			{UserID: mediation.SellerID, Role: "seller"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.subChatRepo.Create(ctx, subChat); err != nil {
		return nil, err
	}

	uc.sendSystemMessage(ctx, subChat, "Chat started")
	uc.refreshSummaries(ctx, mediation.ID)

	return subChat, nil
}

// AddMediatorToMain joins the accepted mediator to the mediation's main
// channel.
func (uc *SubChatUseCase) AddMediatorToMain(ctx context.Context, mediation *entity.MediationRequest) error {
	if mediation.MainChatID == "" || mediation.MediatorID == "" {
		return nil
	}

	subChat, err := uc.subChatRepo.GetByID(ctx, mediation.MainChatID)
	if err != nil {
		return err
	}
	if subChat.HasParticipant(mediation.MediatorID) {
		return nil
	}

	subChat.Participants = append(subChat.Participants, entity.Participant{
		UserID: mediation.MediatorID,
		Role:   "mediator",
	})
	subChat.UpdatedAt = time.Now()

	if err := uc.subChatRepo.Update(ctx, subChat); err != nil {
		return err
	}

	uc.sendSystemMessage(ctx, subChat, "Mediator joined the chat")
	uc.refreshSummaries(ctx, mediation.ID)

	return nil
}

type CreateSubChatInput struct {
	Title          string
	ParticipantIDs []string
}

// CreateSubChat opens an admin side channel scoped to one mediation. The
// mediation must not be terminal.
func (uc *SubChatUseCase) CreateSubChat(ctx context.Context, adminID, mediationID string, input CreateSubChatInput) (*entity.SubChat, error) {
	admin, err := uc.userRepo.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, errors.Forbidden("Only an admin can create a side channel", nil)
	}

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}
	if mediation.Status.IsTerminal() {
		return nil, errors.InvalidState("Cannot open a side channel on a closed mediation")
	}

	if len(input.ParticipantIDs) == 0 {
		return nil, errors.BadRequest("A side channel needs at least one participant", nil)
	}

	now := time.Now()
	subChat := &entity.SubChat{
		MediationID: mediationID,
		Kind:        entity.SubChatKindSide,
		Title:       input.Title,
		CreatedBy:   adminID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	seen := map[string]bool{}
	for _, userID := range input.ParticipantIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		subChat.Participants = append(subChat.Participants, entity.Participant{
			UserID: userID,
			Role:   uc.roleFor(userID, mediation),
		})
	}

	if err := uc.subChatRepo.Create(ctx, subChat); err != nil {
		return nil, err
	}

	uc.sendSystemMessage(ctx, subChat, "Chat started")
	uc.refreshSummaries(ctx, mediationID)

	uc.broadcast(subChat.ID, "subchat_created", subChat)
	uc.broadcast(mediationID, "subchat_created", subChat)
	if uc.notifier != nil {
		uc.notifier.Notify(ctx, subChat.ParticipantIDs(), mediationID, "subchat_created",
			"New mediation channel", "An admin opened a channel: "+subChat.Title)
	}

	log.Printf("Admin %s created side channel %s for mediation %s", adminID, subChat.ID, mediationID)

	return subChat, nil
}

type PostMessageInput struct {
	Type string
	Body string
}

// PostMessage appends a message to a channel the actor belongs to (admins
// may post anywhere).
func (uc *SubChatUseCase) PostMessage(ctx context.Context, actorID, subChatID string, input PostMessageInput) (*entity.ChatMessage, error) {
	subChat, err := uc.authorize(ctx, actorID, subChatID)
	if err != nil {
		return nil, err
	}

	switch input.Type {
	case "text", "image", "file":
	default:
		return nil, errors.BadRequest("Unsupported message type", nil)
	}
	if input.Body == "" {
		return nil, errors.BadRequest("Message body is required", nil)
	}

	message := &entity.ChatMessage{
		SubChatID: subChatID,
		SenderID:  actorID,
		Type:      input.Type,
		Body:      input.Body,
		CreatedAt: time.Now(),
	}

	if err := uc.subChatRepo.CreateMessage(ctx, message); err != nil {
		return nil, err
	}

	subChat.LastMessage = input.Body
	subChat.LastMessageAt = message.CreatedAt
	subChat.UpdatedAt = message.CreatedAt
	if err := uc.subChatRepo.Update(ctx, subChat); err != nil {
		log.Printf("Failed to update last message on channel %s: %v", subChatID, err)
	}

	uc.refreshSummaries(ctx, subChat.MediationID)
	uc.broadcast(subChatID, "subchat_message", message)

	if uc.metrics != nil {
		uc.metrics.RecordSubChatMessage(subChat.Kind, message.Type)
	}

	return message, nil
}

// MarkRead stamps the actor's read receipt on every message up to and
// including uptoMessageID. Re-marking already-read messages is a no-op.
func (uc *SubChatUseCase) MarkRead(ctx context.Context, actorID, subChatID, uptoMessageID string) error {
	subChat, err := uc.authorize(ctx, actorID, subChatID)
	if err != nil {
		return err
	}

	if _, err := uc.subChatRepo.GetMessageByID(ctx, subChatID, uptoMessageID); err != nil {
		return err
	}

	readAt := time.Now()
	updated, err := uc.subChatRepo.MarkMessagesRead(ctx, subChatID, actorID, uptoMessageID, readAt)
	if err != nil {
		return err
	}

	if len(updated) > 0 {
		uc.broadcast(subChatID, "subchat_read_receipt", map[string]interface{}{
			"sub_chat_id": subChat.ID,
			"reader_id":   actorID,
			"message_ids": updated,
			"read_at":     readAt,
		})
	}

	return nil
}

// ListMessages returns a page of a channel's log to a participant or admin.
func (uc *SubChatUseCase) ListMessages(ctx context.Context, actorID, subChatID string, limit, offset int) ([]*entity.ChatMessage, int64, error) {
	if _, err := uc.authorize(ctx, actorID, subChatID); err != nil {
		return nil, 0, err
	}
	return uc.subChatRepo.ListMessages(ctx, subChatID, limit, offset)
}

// ListMyChannels returns the channels the user participates in.
func (uc *SubChatUseCase) ListMyChannels(ctx context.Context, userID string, limit, offset int) ([]*entity.SubChat, int64, error) {
	return uc.subChatRepo.ListByParticipant(ctx, userID, limit, offset)
}

// UnreadCountFor derives the viewer's unread total for one channel from its
// message log.
func (uc *SubChatUseCase) UnreadCountFor(ctx context.Context, subChatID, viewerID string) (int, error) {
	messages, _, err := uc.subChatRepo.ListMessages(ctx, subChatID, 0, 0)
	if err != nil {
		return 0, err
	}
	return entity.UnreadCount(messages, viewerID), nil
}

func (uc *SubChatUseCase) authorize(ctx context.Context, actorID, subChatID string) (*entity.SubChat, error) {
	subChat, err := uc.subChatRepo.GetByID(ctx, subChatID)
	if err != nil {
		return nil, err
	}

	if subChat.HasParticipant(actorID) {
		return subChat, nil
	}

	user, err := uc.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, errors.Forbidden("Not a participant of this channel", nil)
	}
	return subChat, nil
}

func (uc *SubChatUseCase) roleFor(userID string, mediation *entity.MediationRequest) string {
	switch userID {
	case mediation.BuyerID:
		return "buyer"
	case mediation.SellerID:
		return "seller"
	case mediation.MediatorID:
		return "mediator"
	}
	return "member"
}

func (uc *SubChatUseCase) sendSystemMessage(ctx context.Context, subChat *entity.SubChat, body string) {
	message := &entity.ChatMessage{
		SubChatID: subChat.ID,
		SenderID:  SystemActor,
		Type:      "system",
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := uc.subChatRepo.CreateMessage(ctx, message); err != nil {
		log.Printf("Failed to write system message to channel %s: %v", subChat.ID, err)
		return
	}

	subChat.LastMessage = body
	subChat.LastMessageAt = message.CreatedAt
	if err := uc.subChatRepo.Update(ctx, subChat); err != nil {
		log.Printf("Failed to update channel %s after system message: %v", subChat.ID, err)
	}

	uc.broadcast(subChat.ID, "subchat_message", message)
}

// refreshSummaries rebuilds the denormalized sub-chat slice on the
// aggregate. Best-effort; the channel documents stay authoritative.
func (uc *SubChatUseCase) refreshSummaries(ctx context.Context, mediationID string) {
	subChats, err := uc.subChatRepo.ListByMediationID(ctx, mediationID)
	if err != nil {
		log.Printf("Failed to list channels for mediation %s: %v", mediationID, err)
		return
	}

	summaries := make([]entity.SubChatSummary, 0, len(subChats))
	for _, sc := range subChats {
		summaries = append(summaries, entity.SubChatSummary{
			ID:             sc.ID,
			Title:          sc.Title,
			Kind:           sc.Kind,
			ParticipantIDs: sc.ParticipantIDs(),
			LastMessageAt:  sc.LastMessageAt,
		})
	}

	if err := uc.mediationRepo.SetSubChatSummaries(ctx, mediationID, summaries); err != nil {
		log.Printf("Failed to refresh channel summaries for mediation %s: %v", mediationID, err)
	}
}

func (uc *SubChatUseCase) broadcast(room, event string, payload interface{}) {
	if uc.broadcaster == nil {
		return
	}
	uc.broadcaster.BroadcastToRoom(room, event, payload)
}
