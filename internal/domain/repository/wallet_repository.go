package repository

import (
	"context"

	"arbitex/internal/domain/entity"
)

type WalletRepository interface {
	GetWalletByUserID(ctx context.Context, userID string) (*entity.Wallet, error)

	// CreateHold atomically moves amount out of the user's spendable balance
	// into a new hold document. Returns INSUFFICIENT_FUNDS when the balance
	// does not cover the amount.
	CreateHold(ctx context.Context, userID string, amount float64, reference string) (*entity.FundsHold, error)

	// ReleaseHold atomically marks the hold released and credits toUserID.
	ReleaseHold(ctx context.Context, holdID, toUserID string) error

	// ReverseHold atomically marks the hold reversed and restores the
	// holder's balance.
	ReverseHold(ctx context.Context, holdID string) error

	// SplitHold atomically releases half the hold to toUserID and restores
	// the remainder to the holder's balance.
	SplitHold(ctx context.Context, holdID, toUserID string) error

	GetHoldByID(ctx context.Context, holdID string) (*entity.FundsHold, error)
}
