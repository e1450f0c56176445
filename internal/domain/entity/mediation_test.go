package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusPendingMediatorSelection,
	StatusMediatorAssigned,
	StatusMediationOfferAccepted,
	StatusEscrowFunded,
	StatusPartiesConfirmed,
	StatusInProgress,
	StatusDisputed,
	StatusCompleted,
	StatusCancelled,
	StatusRejectedByBuyer,
	StatusRejectedByMediator,
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	terminals := []Status{StatusCompleted, StatusCancelled, StatusRejectedByBuyer, StatusRejectedByMediator}

	for _, terminal := range terminals {
		assert.True(t, terminal.IsTerminal(), "%s", terminal)
		for _, to := range allStatuses {
			assert.False(t, terminal.CanTransition(to), "%s -> %s", terminal, to)
		}
	}
}

func TestActiveStatusesAreNotTerminal(t *testing.T) {
	active := []Status{
		StatusPendingMediatorSelection,
		StatusMediatorAssigned,
		StatusMediationOfferAccepted,
		StatusEscrowFunded,
		StatusPartiesConfirmed,
		StatusInProgress,
		StatusDisputed,
	}
	for _, s := range active {
		assert.False(t, s.IsTerminal(), "%s", s)
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPendingMediatorSelection, StatusMediatorAssigned},
		{StatusPendingMediatorSelection, StatusRejectedByBuyer},
		{StatusPendingMediatorSelection, StatusCancelled},
		{StatusMediatorAssigned, StatusMediationOfferAccepted},
		{StatusMediatorAssigned, StatusPendingMediatorSelection},
		{StatusMediatorAssigned, StatusRejectedByBuyer},
		{StatusMediationOfferAccepted, StatusEscrowFunded},
		{StatusMediationOfferAccepted, StatusRejectedByBuyer},
		{StatusEscrowFunded, StatusPartiesConfirmed},
		{StatusPartiesConfirmed, StatusInProgress},
		{StatusPartiesConfirmed, StatusDisputed},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusDisputed},
		{StatusDisputed, StatusCompleted},
		{StatusDisputed, StatusCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, tr.from.CanTransition(tr.to), "%s -> %s", tr.from, tr.to)
	}

	denied := []struct{ from, to Status }{
		// Escrow cannot be funded before the mediator accepts.
		{StatusPendingMediatorSelection, StatusEscrowFunded},
		{StatusMediatorAssigned, StatusEscrowFunded},
		// Once funded the buyer can no longer walk away unilaterally.
		{StatusEscrowFunded, StatusRejectedByBuyer},
		{StatusEscrowFunded, StatusCancelled},
		// The active exchange only ends through completion or a dispute.
		{StatusInProgress, StatusCancelled},
		{StatusInProgress, StatusPendingMediatorSelection},
		// A dispute cannot be un-disputed back into the exchange.
		{StatusDisputed, StatusInProgress},
		// No skipping the confirmation step.
		{StatusEscrowFunded, StatusInProgress},
	}
	for _, tr := range denied {
		assert.False(t, tr.from.CanTransition(tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestRequiresMediator(t *testing.T) {
	withMediator := []Status{
		StatusMediatorAssigned,
		StatusMediationOfferAccepted,
		StatusEscrowFunded,
		StatusPartiesConfirmed,
		StatusInProgress,
		StatusDisputed,
	}
	for _, s := range withMediator {
		assert.True(t, s.RequiresMediator(), "%s", s)
	}

	assert.False(t, StatusPendingMediatorSelection.RequiresMediator())
	assert.False(t, StatusCompleted.RequiresMediator())
	assert.False(t, StatusCancelled.RequiresMediator())
}

func TestEscrowHeld(t *testing.T) {
	held := []Status{StatusEscrowFunded, StatusPartiesConfirmed, StatusInProgress, StatusDisputed}
	for _, s := range held {
		assert.True(t, s.EscrowHeld(), "%s", s)
	}

	notHeld := []Status{
		StatusPendingMediatorSelection,
		StatusMediatorAssigned,
		StatusMediationOfferAccepted,
		StatusCompleted,
		StatusCancelled,
	}
	for _, s := range notHeld {
		assert.False(t, s.EscrowHeld(), "%s", s)
	}
}
