package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"arbitex/internal/domain/entity"
	"arbitex/internal/domain/repository"
	"arbitex/internal/domain/service"
	"arbitex/internal/infrastructure/kafka"
	"arbitex/internal/infrastructure/metrics"
	"arbitex/pkg/errors"
)

// SystemActor is recorded on transitions applied by the engine itself, such
// as assignment timeouts.
const SystemActor = "system"

type FeeCalculator interface {
	CalculateFee(amount float64) float64
}

type defaultFeeCalculator struct{}

func (fc *defaultFeeCalculator) CalculateFee(amount float64) float64 {
	return amount * 0.025
}

// MediationUseCase owns every write to the MediationRequest aggregate. All
// external actors issue commands through it; nothing else mutates status,
// mediator, confirmation flags, or escrow fields.
type MediationUseCase struct {
	mediationRepo repository.MediationRepository
	productRepo   repository.ProductRepository
	userRepo      repository.UserRepository
	ledger        service.Ledger
	broadcaster   Broadcaster
	notifier      Notifier
	publisher     *kafka.EventPublisher
	metrics       *metrics.MediationMetrics
	feeCalculator FeeCalculator
	ledgerTimeout time.Duration

	timer    AssignmentScheduler
	subChats *SubChatUseCase

	// Serializes commands per aggregate within this process. Cross-process
	// races are still caught by the version check on persist.
	locks sync.Map
}

func NewMediationUseCase(
	mediationRepo repository.MediationRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	ledger service.Ledger,
	broadcaster Broadcaster,
	notifier Notifier,
	publisher *kafka.EventPublisher,
	m *metrics.MediationMetrics,
	ledgerTimeout time.Duration,
) *MediationUseCase {
	if ledgerTimeout <= 0 {
		ledgerTimeout = 5 * time.Second
	}
	return &MediationUseCase{
		mediationRepo: mediationRepo,
		productRepo:   productRepo,
		userRepo:      userRepo,
		ledger:        ledger,
		broadcaster:   broadcaster,
		notifier:      notifier,
		publisher:     publisher,
		metrics:       m,
		feeCalculator: &defaultFeeCalculator{},
		ledgerTimeout: ledgerTimeout,
	}
}

// SetAssignmentScheduler wires the timer manager after construction; the
// manager needs this usecase to apply timeout transitions.
func (uc *MediationUseCase) SetAssignmentScheduler(timer AssignmentScheduler) {
	uc.timer = timer
}

// SetSubChatUseCase wires the sub-chat coordinator so mediation creation can
// open the main channel and acceptance can join the mediator to it.
func (uc *MediationUseCase) SetSubChatUseCase(subChats *SubChatUseCase) {
	uc.subChats = subChats
}

func (uc *MediationUseCase) lockFor(mediationID string) *sync.Mutex {
	mu, _ := uc.locks.LoadOrStore(mediationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

type CreateMediationInput struct {
	ProductID   string
	AgreedPrice float64
	Currency    string
}

// CreateMediation is the bid-acceptance entry point: the commerce subsystem
// reports an accepted bid and the workflow starts in mediator selection.
func (uc *MediationUseCase) CreateMediation(ctx context.Context, buyerID string, input CreateMediationInput) (*entity.MediationRequest, error) {
	product, err := uc.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	if product.SellerID == buyerID {
		return nil, errors.BadRequest("Cannot open a mediation on your own product", nil)
	}

	if input.AgreedPrice <= 0 {
		return nil, errors.BadRequest("Agreed price must be positive", nil)
	}

	currency := input.Currency
	if currency == "" {
		currency = product.Currency
	}

	now := time.Now()
	mediation := &entity.MediationRequest{
		ProductID:   input.ProductID,
		SellerID:    product.SellerID,
		BuyerID:     buyerID,
		AgreedPrice: input.AgreedPrice,
		FeeAmount:   uc.feeCalculator.CalculateFee(input.AgreedPrice),
		Currency:    currency,
		Status:      entity.StatusPendingMediatorSelection,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.mediationRepo.Create(ctx, mediation); err != nil {
		return nil, err
	}

	if uc.subChats != nil {
		mainChat, err := uc.subChats.CreateMainChannel(ctx, mediation)
		if err != nil {
			log.Printf("Failed to create main channel for mediation %s: %v", mediation.ID, err)
		} else {
			mediation.MainChatID = mainChat.ID
			if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, mediation.Version); err != nil {
				log.Printf("Failed to attach main channel to mediation %s: %v", mediation.ID, err)
			}
		}
	}

	uc.appendLog(ctx, mediation.ID, mediation.Status, "Mediation request created", buyerID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediation.SellerID}, mediation.ID, "mediation_created",
		"New mediation request", "A buyer accepted your bid; select a mediator to proceed")

	if uc.metrics != nil {
		uc.metrics.RecordMediationCreated(mediation.Currency)
	}

	return mediation, nil
}

// AssignMediator proposes a mediator for a pending request. Only the seller
// (or an admin acting for them) may assign; concurrent assignments lose the
// version race and fail with CONCURRENT_ASSIGNMENT.
func (uc *MediationUseCase) AssignMediator(ctx context.Context, actorID, mediationID, mediatorID string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	actor, err := uc.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actorID != mediation.SellerID && !actor.IsAdmin() {
		return nil, errors.Forbidden("Only the seller can assign a mediator", nil)
	}

	if mediation.Status != entity.StatusPendingMediatorSelection {
		uc.recordInvalid(mediation.Status, entity.StatusMediatorAssigned)
		return nil, errors.InvalidState("Mediator can only be assigned while a request is pending selection")
	}

	mediator, err := uc.userRepo.GetByID(ctx, mediatorID)
	if err != nil {
		return nil, err
	}
	if !mediator.IsMediator() {
		return nil, errors.BadRequest("Selected user is not a mediator", nil)
	}
	if mediatorID == mediation.BuyerID || mediatorID == mediation.SellerID {
		return nil, errors.BadRequest("Mediator must be a neutral party", nil)
	}

	expectedVersion := mediation.Version
	assignedAt := time.Now()
	mediation.MediatorID = mediatorID
	mediation.MediatorAssignedAt = &assignedAt
	mediation.Status = entity.StatusMediatorAssigned
	mediation.UpdatedAt = assignedAt

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("assign_mediator")
			return nil, errors.ConcurrentAssignment("Another mediator assignment already succeeded for this request")
		}
		return nil, err
	}

	if uc.timer != nil {
		uc.timer.Schedule(mediation.ID, assignedAt)
	}

	uc.recordTransition(entity.StatusPendingMediatorSelection, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, "Mediator "+mediatorID+" assigned", actorID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediatorID}, mediation.ID, "mediator_assigned",
		"Mediation offer", "You have been selected to mediate a sale; accept or reject within the decision window")
	uc.notify(ctx, []string{mediation.BuyerID}, mediation.ID, "mediator_assigned",
		"Mediator selected", "The seller selected a mediator for your purchase")

	return mediation, nil
}

// MediatorAccept moves an assigned request to the accepted state and stops
// the decision timer.
func (uc *MediationUseCase) MediatorAccept(ctx context.Context, actorID, mediationID string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if mediation.Status != entity.StatusMediatorAssigned {
		uc.recordInvalid(mediation.Status, entity.StatusMediationOfferAccepted)
		return nil, errors.InvalidState("Request is not awaiting a mediator decision")
	}
	if mediation.MediatorID != actorID {
		return nil, errors.Forbidden("Only the assigned mediator can accept", nil)
	}

	expectedVersion := mediation.Version
	mediation.Status = entity.StatusMediationOfferAccepted
	mediation.UpdatedAt = time.Now()

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("mediator_accept")
		}
		return nil, err
	}

	if uc.timer != nil {
		uc.timer.Cancel(mediation.ID)
	}

	if uc.subChats != nil {
		if err := uc.subChats.AddMediatorToMain(ctx, mediation); err != nil {
			log.Printf("Failed to join mediator to main channel of mediation %s: %v", mediation.ID, err)
		}
	}

	uc.recordTransition(entity.StatusMediatorAssigned, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, "Mediator accepted the offer", actorID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediation.BuyerID, mediation.SellerID}, mediation.ID, "mediator_accepted",
		"Mediator accepted", "The mediator accepted; the buyer can now fund escrow")

	return mediation, nil
}

// MediatorReject reverts an assigned request to mediator selection and
// records the rejection for later seller withdrawal.
func (uc *MediationUseCase) MediatorReject(ctx context.Context, actorID, mediationID, reason string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if mediation.Status != entity.StatusMediatorAssigned {
		uc.recordInvalid(mediation.Status, entity.StatusPendingMediatorSelection)
		return nil, errors.InvalidState("Request is not awaiting a mediator decision")
	}
	if mediation.MediatorID != actorID {
		return nil, errors.Forbidden("Only the assigned mediator can reject", nil)
	}

	return uc.revertAssignment(ctx, mediation, actorID, reason)
}

// revertAssignment applies the shared reject/timeout transition back to
// mediator selection. Caller holds the aggregate lock.
func (uc *MediationUseCase) revertAssignment(ctx context.Context, mediation *entity.MediationRequest, actorID, reason string) (*entity.MediationRequest, error) {
	now := time.Now()
	expectedVersion := mediation.Version
	rejectedMediator := mediation.MediatorID

	mediation.LastRejection = &entity.RejectionNote{
		MediatorID: rejectedMediator,
		Reason:     reason,
		RejectedAt: now,
	}
	mediation.MediatorID = ""
	mediation.MediatorAssignedAt = nil
	mediation.Status = entity.StatusPendingMediatorSelection
	mediation.UpdatedAt = now

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("mediator_reject")
		}
		return nil, err
	}

	if uc.timer != nil {
		uc.timer.Cancel(mediation.ID)
	}

	uc.recordTransition(entity.StatusMediatorAssigned, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, "Mediator rejected: "+reason, actorID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediation.SellerID}, mediation.ID, "mediator_rejected",
		"Mediator declined", "Mediator declined the offer ("+reason+"); select another mediator")

	return mediation, nil
}

// ExpireAssignment is invoked by the timer manager when the decision window
// lapses. It re-reads the aggregate and only acts when the same assignment is
// still pending, so duplicate firings are no-ops.
func (uc *MediationUseCase) ExpireAssignment(ctx context.Context, mediationID string, assignedAt time.Time) error {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return err
	}

	if mediation.Status != entity.StatusMediatorAssigned {
		return nil
	}
	if mediation.MediatorAssignedAt == nil || !mediation.MediatorAssignedAt.Equal(assignedAt) {
		// A newer assignment superseded the one this timer was armed for.
		return nil
	}

	log.Printf("Assignment window expired for mediation %s (mediator %s)", mediationID, mediation.MediatorID)

	if _, err := uc.revertAssignment(ctx, mediation, SystemActor, "timeout"); err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.RecordAssignmentTimeout("timer")
	}

	return nil
}

// FundEscrow places the buyer's funds on hold. The ledger call runs inside
// the aggregate lock with a bounded timeout so a concurrent transition can
// never observe a half-applied funds state.
func (uc *MediationUseCase) FundEscrow(ctx context.Context, actorID, mediationID string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if actorID != mediation.BuyerID {
		return nil, errors.Forbidden("Only the buyer can fund escrow", nil)
	}
	if mediation.Status != entity.StatusMediationOfferAccepted {
		uc.recordInvalid(mediation.Status, entity.StatusEscrowFunded)
		return nil, errors.InvalidState("Escrow can only be funded after the mediator accepts")
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, uc.ledgerTimeout)
	defer cancel()

	holdRef, err := uc.ledger.HoldFunds(ledgerCtx, mediation.BuyerID, mediation.AgreedPrice, mediation.ID)
	if err != nil {
		if ledgerCtx.Err() != nil {
			uc.recordLedgerFailure("hold_funds")
			return nil, errors.LedgerUnavailable("Ledger did not respond in time", err)
		}
		if !errors.Is(err, "INSUFFICIENT_FUNDS") {
			uc.recordLedgerFailure("hold_funds")
		}
		return nil, err
	}

	expectedVersion := mediation.Version
	mediation.EscrowFunded = true
	mediation.EscrowHoldRef = holdRef
	mediation.Status = entity.StatusEscrowFunded
	mediation.UpdatedAt = time.Now()

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("fund_escrow")
		}
		// The hold exists but the transition lost; undo it so funds are not
		// stranded.
		if reverseErr := uc.ledger.ReverseHold(context.Background(), holdRef); reverseErr != nil {
			log.Printf("Failed to reverse orphaned hold %s for mediation %s: %v", holdRef, mediation.ID, reverseErr)
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.RecordEscrowHold(mediation.Currency, mediation.AgreedPrice)
	}

	uc.recordTransition(entity.StatusMediationOfferAccepted, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, "Escrow funded", actorID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediation.SellerID, mediation.MediatorID}, mediation.ID, "escrow_funded",
		"Escrow funded", "Buyer placed the agreed amount in escrow; confirm readiness to begin")

	return mediation, nil
}

// ConfirmReadiness records a party's readiness flag. Once both parties have
// confirmed, the request auto-advances through PartiesConfirmed into
// InProgress with no separate human trigger; confirmation order does not
// matter.
func (uc *MediationUseCase) ConfirmReadiness(ctx context.Context, actorID, mediationID string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if actorID != mediation.BuyerID && actorID != mediation.SellerID {
		return nil, errors.Forbidden("Only the buyer or seller can confirm readiness", nil)
	}
	if mediation.Status != entity.StatusEscrowFunded {
		uc.recordInvalid(mediation.Status, entity.StatusPartiesConfirmed)
		return nil, errors.InvalidState("Readiness can only be confirmed after escrow is funded")
	}

	if actorID == mediation.SellerID {
		mediation.SellerConfirmedStart = true
	} else {
		mediation.BuyerConfirmedStart = true
	}

	expectedVersion := mediation.Version
	previous := mediation.Status
	bothConfirmed := mediation.SellerConfirmedStart && mediation.BuyerConfirmedStart
	if bothConfirmed {
		mediation.Status = entity.StatusInProgress
	}
	mediation.UpdatedAt = time.Now()

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("confirm_readiness")
		}
		return nil, err
	}

	if bothConfirmed {
		uc.recordTransition(previous, entity.StatusPartiesConfirmed)
		uc.recordTransition(entity.StatusPartiesConfirmed, entity.StatusInProgress)
		uc.appendLog(ctx, mediation.ID, entity.StatusPartiesConfirmed, "Both parties confirmed readiness", actorID)
		uc.appendLog(ctx, mediation.ID, entity.StatusInProgress, "Mediation started", SystemActor)
		uc.notify(ctx, []string{mediation.BuyerID, mediation.SellerID, mediation.MediatorID}, mediation.ID,
			"mediation_started", "Mediation started", "Both parties are ready; the supervised exchange is now active")
	} else {
		uc.appendLog(ctx, mediation.ID, mediation.Status, "Readiness confirmed by "+actorID, actorID)
	}
	uc.emitUpdated(mediation)

	return mediation, nil
}

// OpenDispute escalates an active mediation. A second call from the other
// party while already Disputed is accepted as a no-op and recorded as an
// additional note.
func (uc *MediationUseCase) OpenDispute(ctx context.Context, actorID, mediationID, reason string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if actorID != mediation.BuyerID && actorID != mediation.SellerID {
		return nil, errors.Forbidden("Only the buyer or seller can open a dispute", nil)
	}

	if mediation.Status == entity.StatusDisputed {
		uc.appendLog(ctx, mediation.ID, mediation.Status, "Additional dispute note from "+actorID+": "+reason, actorID)
		return mediation, nil
	}

	if mediation.Status != entity.StatusPartiesConfirmed && mediation.Status != entity.StatusInProgress {
		uc.recordInvalid(mediation.Status, entity.StatusDisputed)
		return nil, errors.InvalidState("Disputes can only be opened during active mediation")
	}

	now := time.Now()
	expectedVersion := mediation.Version
	previous := mediation.Status
	mediation.DisputeOpenedBy = actorID
	mediation.DisputeReason = reason
	mediation.DisputeOpenedAt = &now
	mediation.Status = entity.StatusDisputed
	mediation.UpdatedAt = now

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("open_dispute")
		}
		return nil, err
	}

	uc.recordTransition(previous, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, "Dispute opened: "+reason, actorID)
	uc.emitUpdated(mediation)

	counterpart := mediation.SellerID
	if actorID == mediation.SellerID {
		counterpart = mediation.BuyerID
	}
	uc.notify(ctx, []string{counterpart, mediation.MediatorID}, mediation.ID, "dispute_opened",
		"Dispute opened", "A dispute was opened; an admin will review and resolve it")

	return mediation, nil
}

// ResolveDispute settles a disputed mediation. The ledger settlement runs
// first and the command fails closed: if the ledger call does not succeed,
// status does not change.
func (uc *MediationUseCase) ResolveDispute(ctx context.Context, adminID, mediationID string, outcome entity.ResolutionOutcome, notes string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	admin, err := uc.userRepo.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, errors.Forbidden("Only an admin can resolve a dispute", nil)
	}

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if mediation.Status != entity.StatusDisputed {
		uc.recordInvalid(mediation.Status, entity.StatusCompleted)
		return nil, errors.InvalidState("Only disputed mediations can be resolved")
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, uc.ledgerTimeout)
	defer cancel()

	var target entity.Status
	switch outcome {
	case entity.OutcomeReleaseToSeller:
		err = uc.ledger.ReleaseFunds(ledgerCtx, mediation.EscrowHoldRef, mediation.SellerID)
		target = entity.StatusCompleted
	case entity.OutcomeRefundToBuyer:
		err = uc.ledger.ReverseHold(ledgerCtx, mediation.EscrowHoldRef)
		target = entity.StatusCancelled
	case entity.OutcomeSplit:
		err = uc.ledger.SplitFunds(ledgerCtx, mediation.EscrowHoldRef, mediation.SellerID)
		target = entity.StatusCompleted
	default:
		return nil, errors.BadRequest("Unknown resolution outcome", nil)
	}

	if err != nil {
		uc.recordLedgerFailure("settle_" + string(outcome))
		if ledgerCtx.Err() != nil {
			return nil, errors.LedgerUnavailable("Ledger did not respond in time", err)
		}
		return nil, err
	}

	now := time.Now()
	expectedVersion := mediation.Version
	mediation.Resolution = &entity.Resolution{
		Outcome:    outcome,
		ResolvedBy: adminID,
		Notes:      notes,
		ResolvedAt: now,
	}
	mediation.Status = target
	mediation.UpdatedAt = now
	if target == entity.StatusCompleted {
		mediation.CompletedAt = &now
	} else {
		mediation.CancelledAt = &now
	}

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("resolve_dispute")
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.RecordEscrowSettlement(string(outcome))
	}

	uc.recordTransition(entity.StatusDisputed, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, "Dispute resolved ("+string(outcome)+"): "+notes, adminID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediation.BuyerID, mediation.SellerID, mediation.MediatorID}, mediation.ID,
		"dispute_resolved", "Dispute resolved", "An admin resolved the dispute: "+string(outcome))
	uc.finalize(ctx, mediation)

	return mediation, nil
}

// CompleteMediation is the mediator's sign-off on a successful exchange:
// escrow is released to the seller and the mediation terminates. Fails
// closed on ledger failure.
func (uc *MediationUseCase) CompleteMediation(ctx context.Context, actorID, mediationID string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if mediation.MediatorID != actorID {
		return nil, errors.Forbidden("Only the assigned mediator can complete the mediation", nil)
	}
	if mediation.Status != entity.StatusInProgress {
		uc.recordInvalid(mediation.Status, entity.StatusCompleted)
		return nil, errors.InvalidState("Only an active mediation can be completed")
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, uc.ledgerTimeout)
	defer cancel()

	if err := uc.ledger.ReleaseFunds(ledgerCtx, mediation.EscrowHoldRef, mediation.SellerID); err != nil {
		uc.recordLedgerFailure("release_funds")
		if ledgerCtx.Err() != nil {
			return nil, errors.LedgerUnavailable("Ledger did not respond in time", err)
		}
		return nil, err
	}

	now := time.Now()
	expectedVersion := mediation.Version
	mediation.Resolution = &entity.Resolution{
		Outcome:    entity.OutcomeReleaseToSeller,
		ResolvedBy: actorID,
		Notes:      "Completed by mediator",
		ResolvedAt: now,
	}
	mediation.Status = entity.StatusCompleted
	mediation.CompletedAt = &now
	mediation.UpdatedAt = now

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("complete_mediation")
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.RecordEscrowSettlement(string(entity.OutcomeReleaseToSeller))
	}

	uc.recordTransition(entity.StatusInProgress, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, "Mediation completed, funds released to seller", actorID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediation.BuyerID, mediation.SellerID}, mediation.ID, "mediation_completed",
		"Mediation completed", "The mediator confirmed the exchange; escrow was released to the seller")
	uc.finalize(ctx, mediation)

	return mediation, nil
}

// BuyerRejectMediation lets the buyer walk away at any point before escrow
// is funded.
func (uc *MediationUseCase) BuyerRejectMediation(ctx context.Context, actorID, mediationID, reason string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if actorID != mediation.BuyerID {
		return nil, errors.Forbidden("Only the buyer can reject the mediation", nil)
	}
	if !mediation.Status.CanTransition(entity.StatusRejectedByBuyer) {
		uc.recordInvalid(mediation.Status, entity.StatusRejectedByBuyer)
		return nil, errors.InvalidState("Mediation can no longer be rejected by the buyer")
	}

	now := time.Now()
	expectedVersion := mediation.Version
	previous := mediation.Status
	mediation.MediatorID = ""
	mediation.MediatorAssignedAt = nil
	mediation.Status = entity.StatusRejectedByBuyer
	mediation.CancelledAt = &now
	mediation.UpdatedAt = now

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("buyer_reject")
		}
		return nil, err
	}

	if uc.timer != nil {
		uc.timer.Cancel(mediation.ID)
	}

	uc.recordTransition(previous, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, "Buyer rejected mediation: "+reason, actorID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediation.SellerID}, mediation.ID, "buyer_rejected",
		"Mediation rejected", "The buyer withdrew from the mediation: "+reason)
	uc.finalize(ctx, mediation)

	return mediation, nil
}

// WithdrawRequest lets the seller abandon a request that never reached
// funding. When a mediator rejection or timeout was recorded the terminal
// status reflects that history; otherwise it is a plain cancellation.
func (uc *MediationUseCase) WithdrawRequest(ctx context.Context, actorID, mediationID, reason string) (*entity.MediationRequest, error) {
	mu := uc.lockFor(mediationID)
	mu.Lock()
	defer mu.Unlock()

	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if actorID != mediation.SellerID {
		return nil, errors.Forbidden("Only the seller can withdraw the request", nil)
	}
	if mediation.Status != entity.StatusPendingMediatorSelection && mediation.Status != entity.StatusMediatorAssigned {
		uc.recordInvalid(mediation.Status, entity.StatusCancelled)
		return nil, errors.InvalidState("Request can only be withdrawn before escrow is funded")
	}

	target := entity.StatusCancelled
	note := "Seller withdrew the request: " + reason
	if mediation.LastRejection != nil {
		target = entity.StatusRejectedByMediator
		note = "Seller withdrew after mediator rejection: " + reason
	}

	now := time.Now()
	expectedVersion := mediation.Version
	previous := mediation.Status
	mediation.MediatorID = ""
	mediation.MediatorAssignedAt = nil
	mediation.Status = target
	mediation.CancelledAt = &now
	mediation.UpdatedAt = now

	if err := uc.mediationRepo.UpdateWithVersion(ctx, mediation, expectedVersion); err != nil {
		if errors.Is(err, "VERSION_CONFLICT") {
			uc.recordConflict("withdraw_request")
		}
		return nil, err
	}

	if uc.timer != nil {
		uc.timer.Cancel(mediation.ID)
	}

	uc.recordTransition(previous, mediation.Status)
	uc.appendLog(ctx, mediation.ID, mediation.Status, note, actorID)
	uc.emitUpdated(mediation)
	uc.notify(ctx, []string{mediation.BuyerID}, mediation.ID, "request_withdrawn",
		"Mediation withdrawn", "The seller withdrew the mediation request")
	uc.finalize(ctx, mediation)

	return mediation, nil
}

// GetMediation returns the aggregate to a participant, the mediator, or an
// admin.
func (uc *MediationUseCase) GetMediation(ctx context.Context, userID, mediationID string) (*entity.MediationRequest, error) {
	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if err := uc.authorizeView(ctx, userID, mediation); err != nil {
		return nil, err
	}

	return mediation, nil
}

// GetMediationLogs returns the audit trail for a mediation.
func (uc *MediationUseCase) GetMediationLogs(ctx context.Context, userID, mediationID string) ([]*entity.MediationLog, error) {
	mediation, err := uc.mediationRepo.GetByID(ctx, mediationID)
	if err != nil {
		return nil, err
	}

	if err := uc.authorizeView(ctx, userID, mediation); err != nil {
		return nil, err
	}

	return uc.mediationRepo.ListLogsByMediationID(ctx, mediationID)
}

func (uc *MediationUseCase) authorizeView(ctx context.Context, userID string, mediation *entity.MediationRequest) error {
	if userID == mediation.BuyerID || userID == mediation.SellerID || userID == mediation.MediatorID {
		return nil
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return errors.Forbidden("Not authorized to view this mediation", nil)
	}
	return nil
}

// finalize runs terminal-only side effects: the downstream event and the
// resolution-duration observation.
func (uc *MediationUseCase) finalize(ctx context.Context, mediation *entity.MediationRequest) {
	if !mediation.Status.IsTerminal() {
		return
	}

	if uc.metrics != nil {
		uc.metrics.RecordResolutionDuration(string(mediation.Status), time.Since(mediation.CreatedAt).Seconds())
	}

	if uc.publisher != nil {
		outcome := ""
		if mediation.Resolution != nil {
			outcome = string(mediation.Resolution.Outcome)
		}
		uc.publisher.PublishMediationEvent(ctx, kafka.MediationEvent{
			MediationID: mediation.ID,
			ProductID:   mediation.ProductID,
			SellerID:    mediation.SellerID,
			BuyerID:     mediation.BuyerID,
			MediatorID:  mediation.MediatorID,
			Status:      string(mediation.Status),
			Outcome:     outcome,
			AgreedPrice: mediation.AgreedPrice,
			Currency:    mediation.Currency,
			OccurredAt:  time.Now(),
		})
	}
}

func (uc *MediationUseCase) appendLog(ctx context.Context, mediationID string, status entity.Status, notes, createdBy string) {
	entry := &entity.MediationLog{
		MediationID: mediationID,
		Status:      status,
		Notes:       notes,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
	}
	if err := uc.mediationRepo.CreateLog(ctx, entry); err != nil {
		log.Printf("Failed to write mediation log for %s: %v", mediationID, err)
	}
}

func (uc *MediationUseCase) emitUpdated(mediation *entity.MediationRequest) {
	if uc.broadcaster == nil {
		return
	}
	uc.broadcaster.BroadcastToRoom(mediation.ID, "mediation_updated", mediation)
}

func (uc *MediationUseCase) notify(ctx context.Context, userIDs []string, mediationID, kind, title, body string) {
	if uc.notifier == nil {
		return
	}
	uc.notifier.Notify(ctx, userIDs, mediationID, kind, title, body)
}

func (uc *MediationUseCase) recordTransition(from, to entity.Status) {
	if uc.metrics != nil {
		uc.metrics.RecordTransition(string(from), string(to))
	}
}

func (uc *MediationUseCase) recordInvalid(from, to entity.Status) {
	if uc.metrics != nil {
		uc.metrics.RecordInvalidTransition(string(from), string(to))
	}
}

func (uc *MediationUseCase) recordConflict(action string) {
	if uc.metrics != nil {
		uc.metrics.RecordVersionConflict(action)
	}
}

func (uc *MediationUseCase) recordLedgerFailure(operation string) {
	if uc.metrics != nil {
		uc.metrics.RecordLedgerFailure(operation)
	}
}
