package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"arbitex/internal/domain/entity"
	"arbitex/internal/domain/repository"
	"arbitex/pkg/errors"
)

type firestoreWalletRepository struct {
	client *firestore.Client
}

func NewFirestoreWalletRepository(client *firestore.Client) repository.WalletRepository {
	return &firestoreWalletRepository{
		client: client,
	}
}

func (r *firestoreWalletRepository) GetWalletByUserID(ctx context.Context, userID string) (*entity.Wallet, error) {
	iter := r.client.Collection("wallets").Where("userId", "==", userID).Limit(1).Documents(ctx)
	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, errors.NotFound("Wallet", nil)
	}
	if err != nil {
		return nil, errors.Internal("Failed to get wallet", err)
	}

	var wallet entity.Wallet
	if err := doc.DataTo(&wallet); err != nil {
		return nil, errors.Internal("Failed to parse wallet data", err)
	}

	return &wallet, nil
}

// CreateHold moves amount out of the user's spendable balance and writes the
// hold document in one transaction, so a concurrent spend cannot double-use
// the balance.
func (r *firestoreWalletRepository) CreateHold(ctx context.Context, userID string, amount float64, reference string) (*entity.FundsHold, error) {
	if amount <= 0 {
		return nil, errors.BadRequest("Hold amount must be positive", nil)
	}

	wallet, err := r.GetWalletByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	hold := &entity.FundsHold{
		ID:        uuid.New().String(),
		WalletID:  wallet.ID,
		UserID:    userID,
		Amount:    amount,
		Currency:  wallet.Currency,
		Status:    entity.HoldStatusHeld,
		Reference: reference,
		CreatedAt: time.Now(),
	}

	walletRef := r.client.Collection("wallets").Doc(wallet.ID)
	holdRef := r.client.Collection("fund_holds").Doc(hold.ID)

	err = r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(walletRef)
		if err != nil {
			return errors.Internal("Failed to read wallet", err)
		}

		var current entity.Wallet
		if err := doc.DataTo(&current); err != nil {
			return errors.Internal("Failed to parse wallet data", err)
		}

		if current.Status != "active" {
			return errors.Forbidden("Wallet is not active", nil)
		}
		if current.Balance < amount {
			return errors.InsufficientFunds("Balance does not cover the agreed price")
		}

		now := time.Now()
		if err := tx.Update(walletRef, []firestore.Update{
			{Path: "balance", Value: current.Balance - amount},
			{Path: "lastTxnAt", Value: now},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return errors.Internal("Failed to debit wallet", err)
		}

		return tx.Set(holdRef, hold)
	})
	if err != nil {
		return nil, err
	}

	return hold, nil
}

// ReleaseHold credits the held amount to toUserID and marks the hold
// released.
func (r *firestoreWalletRepository) ReleaseHold(ctx context.Context, holdID, toUserID string) error {
	return r.settleHold(ctx, holdID, func(hold *entity.FundsHold) []payout {
		return []payout{{userID: toUserID, amount: hold.Amount}}
	}, entity.HoldStatusReleased)
}

// ReverseHold restores the full held amount to the original holder.
func (r *firestoreWalletRepository) ReverseHold(ctx context.Context, holdID string) error {
	return r.settleHold(ctx, holdID, func(hold *entity.FundsHold) []payout {
		return []payout{{userID: hold.UserID, amount: hold.Amount}}
	}, entity.HoldStatusReversed)
}

// SplitHold releases half to toUserID and returns the remainder to the
// holder.
func (r *firestoreWalletRepository) SplitHold(ctx context.Context, holdID, toUserID string) error {
	return r.settleHold(ctx, holdID, func(hold *entity.FundsHold) []payout {
		half := hold.Amount / 2
		return []payout{
			{userID: toUserID, amount: half},
			{userID: hold.UserID, amount: hold.Amount - half},
		}
	}, entity.HoldStatusReleased)
}

func (r *firestoreWalletRepository) GetHoldByID(ctx context.Context, holdID string) (*entity.FundsHold, error) {
	doc, err := r.client.Collection("fund_holds").Doc(holdID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Hold", err)
		}
		return nil, errors.Internal("Failed to get hold", err)
	}

	var hold entity.FundsHold
	if err := doc.DataTo(&hold); err != nil {
		return nil, errors.Internal("Failed to parse hold data", err)
	}

	return &hold, nil
}

type payout struct {
	userID string
	amount float64
}

// settleHold terminates a hold exactly once: the credits and the status flip
// commit in one transaction, and a hold that is no longer "held" is
// rejected.
func (r *firestoreWalletRepository) settleHold(ctx context.Context, holdID string, split func(*entity.FundsHold) []payout, finalStatus string) error {
	holdRef := r.client.Collection("fund_holds").Doc(holdID)

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(holdRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Hold", err)
			}
			return errors.Internal("Failed to read hold", err)
		}

		var hold entity.FundsHold
		if err := doc.DataTo(&hold); err != nil {
			return errors.Internal("Failed to parse hold data", err)
		}

		if hold.Status != entity.HoldStatusHeld {
			return errors.InvalidState("Hold is already settled")
		}

		// All wallet reads must happen before any write in a Firestore
		// transaction.
		type credit struct {
			ref     *firestore.DocumentRef
			balance float64
			amount  float64
		}
		var credits []credit
		for _, p := range split(&hold) {
			if p.amount == 0 {
				continue
			}

			walletDocs, err := tx.Documents(
				r.client.Collection("wallets").Where("userId", "==", p.userID).Limit(1),
			).GetAll()
			if err != nil {
				return errors.Internal("Failed to read wallet", err)
			}
			if len(walletDocs) == 0 {
				return errors.NotFound("Wallet", nil)
			}

			var wallet entity.Wallet
			if err := walletDocs[0].DataTo(&wallet); err != nil {
				return errors.Internal("Failed to parse wallet data", err)
			}

			credits = append(credits, credit{
				ref:     walletDocs[0].Ref,
				balance: wallet.Balance,
				amount:  p.amount,
			})
		}

		now := time.Now()
		for _, c := range credits {
			if err := tx.Update(c.ref, []firestore.Update{
				{Path: "balance", Value: c.balance + c.amount},
				{Path: "lastTxnAt", Value: now},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return errors.Internal("Failed to credit wallet", err)
			}
		}

		return tx.Update(holdRef, []firestore.Update{
			{Path: "status", Value: finalStatus},
			{Path: "releasedAt", Value: now},
		})
	})
}
