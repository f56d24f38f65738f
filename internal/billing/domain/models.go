package domain

import (
	"time"

	"gorm.io/datatypes"
)

// TransactionKind classifies an immutable billing ledger entry.
type TransactionKind string

const (
	// KindFund is a manual prepaid top-up (positive amount).
	KindFund TransactionKind = "fund"
	// KindLeadCharge is the automatic deduction for a delivered lead
	// (negative amount).
	KindLeadCharge TransactionKind = "lead_charge"
	// KindRefund is a manual reversal (positive amount).
	KindRefund TransactionKind = "refund"
)

// Transaction is one append-only financial ledger entry. BalanceAfterCents is
// the buyer's balance immediately after the amount was applied, captured at
// write time and never recomputed.
type Transaction struct {
	ID                string            `json:"id"`
	BuyerID           string            `json:"buyer_id"`
	Kind              TransactionKind   `json:"kind"`
	AmountCents       int64             `json:"amount_cents"`
	BalanceAfterCents int64             `json:"balance_after_cents"`
	Meta              datatypes.JSONMap `json:"meta,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Entry describes the ledger entry to pair with a buyer credit mutation. The
// amount and resulting balance come from the mutation itself so that the buyer
// record and the ledger can never diverge.
type Entry struct {
	Kind TransactionKind
	Meta map[string]any
}

// SignedAmount applies the kind's sign convention: charges are stored
// negative, funding and refunds positive.
func SignedAmount(kind TransactionKind, amountCents int64) int64 {
	abs := amountCents
	if abs < 0 {
		abs = -abs
	}
	if kind == KindLeadCharge {
		return -abs
	}
	return abs
}

func ValidKind(kind TransactionKind) bool {
	switch kind {
	case KindFund, KindLeadCharge, KindRefund:
		return true
	default:
		return false
	}
}
