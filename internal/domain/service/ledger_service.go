package service

import (
	"context"

	"arbitex/internal/domain/repository"
)

// Ledger is the balance-hold collaborator the workflow engine funds escrow
// and settles resolutions against. Calls may block on the backing store, so
// callers bound them with a timeout.
type Ledger interface {
	HoldFunds(ctx context.Context, userID string, amount float64, reference string) (string, error)
	ReleaseFunds(ctx context.Context, holdRef, toUserID string) error
	ReverseHold(ctx context.Context, holdRef string) error
	SplitFunds(ctx context.Context, holdRef, toUserID string) error
}

type walletLedger struct {
	walletRepo repository.WalletRepository
}

func NewWalletLedger(walletRepo repository.WalletRepository) Ledger {
	return &walletLedger{walletRepo: walletRepo}
}

func (l *walletLedger) HoldFunds(ctx context.Context, userID string, amount float64, reference string) (string, error) {
	hold, err := l.walletRepo.CreateHold(ctx, userID, amount, reference)
	if err != nil {
		return "", err
	}
	return hold.ID, nil
}

func (l *walletLedger) ReleaseFunds(ctx context.Context, holdRef, toUserID string) error {
	return l.walletRepo.ReleaseHold(ctx, holdRef, toUserID)
}

func (l *walletLedger) ReverseHold(ctx context.Context, holdRef string) error {
	return l.walletRepo.ReverseHold(ctx, holdRef)
}

func (l *walletLedger) SplitFunds(ctx context.Context, holdRef, toUserID string) error {
	return l.walletRepo.SplitHold(ctx, holdRef, toUserID)
}
