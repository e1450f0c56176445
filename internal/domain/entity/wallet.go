package entity

import "time"

type Wallet struct {
	ID        string    `json:"id" firestore:"id"`
	UserID    string    `json:"user_id" firestore:"userId"`
	Balance   float64   `json:"balance" firestore:"balance"`
	Currency  string    `json:"currency" firestore:"currency"`
	Status    string    `json:"status" firestore:"status"` // "active", "suspended", "frozen"
	LastTxnAt time.Time `json:"last_txn_at" firestore:"lastTxnAt"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}

const (
	HoldStatusHeld     = "held"
	HoldStatusReleased = "released"
	HoldStatusReversed = "reversed"
)

// FundsHold is an escrow hold against a wallet: the amount is moved out of
// the spendable balance until released to a counterparty or reversed.
type FundsHold struct {
	ID         string     `json:"id" firestore:"id"`
	WalletID   string     `json:"wallet_id" firestore:"walletId"`
	UserID     string     `json:"user_id" firestore:"userId"`
	Amount     float64    `json:"amount" firestore:"amount"`
	Currency   string     `json:"currency" firestore:"currency"`
	Status     string     `json:"status" firestore:"status"`
	Reference  string     `json:"reference,omitempty" firestore:"reference,omitempty"` // mediation id
	CreatedAt  time.Time  `json:"created_at" firestore:"createdAt"`
	ReleasedAt *time.Time `json:"released_at,omitempty" firestore:"releasedAt,omitempty"`
}
