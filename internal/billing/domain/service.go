package domain

import (
	"context"
	"errors"
)

type ListTransactionsRequest struct {
	Limit   int
	BuyerID string
}

type FundRequest struct {
	BuyerID     string
	AmountCents int64
	Note        string
}

type RefundRequest struct {
	BuyerID     string
	AmountCents int64
	Note        string
	LeadID      string
}

type ChargeLeadRequest struct {
	BuyerID    string
	PriceCents int64
	LeadID     string
	Score      int
}

type Service interface {
	// Fund tops up a buyer's prepaid balance and records the ledger entry in
	// the same durable operation.
	Fund(ctx context.Context, req FundRequest) (Transaction, error)
	// Refund returns money to a buyer's balance with a paired ledger entry.
	Refund(ctx context.Context, req RefundRequest) (Transaction, error)
	// ChargeLead deducts the price of one delivered lead with a paired ledger
	// entry.
	ChargeLead(ctx context.Context, req ChargeLeadRequest) (Transaction, error)
	// List returns transactions newest first, optionally filtered by buyer and
	// capped.
	List(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error)
	// CheckLowBalances alerts buyers whose balance is at or below their
	// threshold, at most once per 24h. Returns the alerted buyer ids.
	CheckLowBalances(ctx context.Context) ([]string, error)
}

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidBuyer  = errors.New("invalid_buyer")
)
