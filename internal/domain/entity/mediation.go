package entity

import (
	"time"
)

// Status is the single source of truth for a mediation's workflow position.
// Transitions not present in the transition table are rejected.
type Status string

const (
	StatusPendingMediatorSelection Status = "pending_mediator_selection"
	StatusMediatorAssigned         Status = "mediator_assigned"
	StatusMediationOfferAccepted   Status = "mediation_offer_accepted"
	StatusEscrowFunded             Status = "escrow_funded"
	StatusPartiesConfirmed         Status = "parties_confirmed"
	StatusInProgress               Status = "in_progress"
	StatusDisputed                 Status = "disputed"
	StatusCompleted                Status = "completed"
	StatusCancelled                Status = "cancelled"
	StatusRejectedByBuyer          Status = "rejected_by_buyer"
	StatusRejectedByMediator       Status = "rejected_by_mediator"
)

var transitions = map[Status][]Status{
	StatusPendingMediatorSelection: {
		StatusMediatorAssigned,
		StatusRejectedByBuyer,
		StatusRejectedByMediator,
		StatusCancelled,
	},
	StatusMediatorAssigned: {
		StatusMediationOfferAccepted,
		StatusPendingMediatorSelection,
		StatusRejectedByBuyer,
		StatusRejectedByMediator,
		StatusCancelled,
	},
	StatusMediationOfferAccepted: {
		StatusEscrowFunded,
		StatusRejectedByBuyer,
	},
	StatusEscrowFunded: {
		StatusPartiesConfirmed,
	},
	StatusPartiesConfirmed: {
		StatusInProgress,
		StatusDisputed,
	},
	StatusInProgress: {
		StatusCompleted,
		StatusDisputed,
	},
	StatusDisputed: {
		StatusCompleted,
		StatusCancelled,
	},
	// Terminal statuses have no outgoing transitions.
	StatusCompleted:          {},
	StatusCancelled:          {},
	StatusRejectedByBuyer:    {},
	StatusRejectedByMediator: {},
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the transition table allows s -> to.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// RequiresMediator reports whether a mediation in this status must have a
// mediator attached.
func (s Status) RequiresMediator() bool {
	switch s {
	case StatusMediatorAssigned, StatusMediationOfferAccepted, StatusEscrowFunded,
		StatusPartiesConfirmed, StatusInProgress, StatusDisputed:
		return true
	}
	return false
}

// EscrowHeld reports whether buyer funds must be on hold in this status.
func (s Status) EscrowHeld() bool {
	switch s {
	case StatusEscrowFunded, StatusPartiesConfirmed, StatusInProgress, StatusDisputed:
		return true
	}
	return false
}

type ResolutionOutcome string

const (
	OutcomeReleaseToSeller ResolutionOutcome = "release_to_seller"
	OutcomeRefundToBuyer   ResolutionOutcome = "refund_to_buyer"
	OutcomeSplit           ResolutionOutcome = "split"
)

// Resolution records who received the escrowed funds and who decided.
type Resolution struct {
	Outcome    ResolutionOutcome `json:"outcome" firestore:"outcome"`
	ResolvedBy string            `json:"resolved_by" firestore:"resolvedBy"`
	Notes      string            `json:"notes,omitempty" firestore:"notes,omitempty"`
	ResolvedAt time.Time         `json:"resolved_at" firestore:"resolvedAt"`
}

// RejectionNote captures the most recent mediator rejection or assignment
// timeout, used when the seller later withdraws the request.
type RejectionNote struct {
	MediatorID string    `json:"mediator_id" firestore:"mediatorId"`
	Reason     string    `json:"reason" firestore:"reason"`
	RejectedAt time.Time `json:"rejected_at" firestore:"rejectedAt"`
}

// SubChatSummary is denormalized onto the aggregate for fast reads; the
// sub-chat coordinator owns the underlying documents.
type SubChatSummary struct {
	ID             string    `json:"id" firestore:"id"`
	Title          string    `json:"title" firestore:"title"`
	Kind           string    `json:"kind" firestore:"kind"`
	ParticipantIDs []string  `json:"participant_ids" firestore:"participantIds"`
	LastMessageAt  time.Time `json:"last_message_at" firestore:"lastMessageAt"`
}

type MediationRequest struct {
	ID          string  `json:"id" firestore:"id"`
	ProductID   string  `json:"product_id" firestore:"productId"`
	SellerID    string  `json:"seller_id" firestore:"sellerId"`
	BuyerID     string  `json:"buyer_id" firestore:"buyerId"`
	MediatorID  string  `json:"mediator_id,omitempty" firestore:"mediatorId,omitempty"`
	AgreedPrice float64 `json:"agreed_price" firestore:"agreedPrice"`
	FeeAmount   float64 `json:"fee_amount" firestore:"feeAmount"`
	Currency    string  `json:"currency" firestore:"currency"`

	Status Status `json:"status" firestore:"status"`

	// Version is the optimistic lock; every committed transition increments it.
	Version int64 `json:"version" firestore:"version"`

	SellerConfirmedStart bool `json:"seller_confirmed_start" firestore:"sellerConfirmedStart"`
	BuyerConfirmedStart  bool `json:"buyer_confirmed_start" firestore:"buyerConfirmedStart"`

	EscrowFunded  bool   `json:"escrow_funded" firestore:"escrowFunded"`
	EscrowHoldRef string `json:"escrow_hold_ref,omitempty" firestore:"escrowHoldRef,omitempty"`

	// Starts the mediator-acceptance countdown; cleared on every re-assignment.
	MediatorAssignedAt *time.Time `json:"mediator_assigned_at,omitempty" firestore:"mediatorAssignedAt,omitempty"`

	DisputeOpenedBy string     `json:"dispute_opened_by,omitempty" firestore:"disputeOpenedBy,omitempty"`
	DisputeReason   string     `json:"dispute_reason,omitempty" firestore:"disputeReason,omitempty"`
	DisputeOpenedAt *time.Time `json:"dispute_opened_at,omitempty" firestore:"disputeOpenedAt,omitempty"`

	Resolution    *Resolution    `json:"resolution,omitempty" firestore:"resolution,omitempty"`
	LastRejection *RejectionNote `json:"last_rejection,omitempty" firestore:"lastRejection,omitempty"`

	MainChatID string           `json:"main_chat_id,omitempty" firestore:"mainChatId,omitempty"`
	SubChats   []SubChatSummary `json:"sub_chats,omitempty" firestore:"subChats,omitempty"`

	CreatedAt   time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time  `json:"updated_at" firestore:"updatedAt"`
	CompletedAt *time.Time `json:"completed_at,omitempty" firestore:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" firestore:"cancelledAt,omitempty"`
}

// MediationLog is an append-only audit row written for every transition.
type MediationLog struct {
	ID          string    `json:"id" firestore:"id"`
	MediationID string    `json:"mediation_id" firestore:"mediationId"`
	Status      Status    `json:"status" firestore:"status"`
	Notes       string    `json:"notes,omitempty" firestore:"notes,omitempty"`
	CreatedBy   string    `json:"created_by" firestore:"createdBy"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
}
