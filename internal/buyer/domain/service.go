package domain

import (
	"context"
	"errors"

	billingdomain "github.com/brushline/leadrail/internal/billing/domain"
)

type CreateBuyerRequest struct {
	Name           string
	ContactEmail   string
	Active         bool
	MinScore       int
	Services       []string
	PostalPrefixes []string
	DailyCap       int
	WebhookURL     string

	PricePerLeadCents        *int64
	CreditCents              *int64
	LowBalanceThresholdCents *int64
}

// UpdateBuyerRequest is a partial patch; nil fields are left untouched.
type UpdateBuyerRequest struct {
	Name           *string
	ContactEmail   *string
	Active         *bool
	MinScore       *int
	Services       *[]string
	PostalPrefixes *[]string
	DailyCap       *int
	WebhookURL     *string

	PricePerLeadCents        *int64
	LowBalanceThresholdCents *int64
	LastLowBalanceAlertAt    *string
}

// AdjustCreditRequest adds DeltaCents (positive or negative) to the buyer's
// balance. When Entry is set, the paired billing transaction is appended in
// the same atomic store batch as the buyer snapshot; the transaction's amount
// and balance-after are derived from the mutation itself.
type AdjustCreditRequest struct {
	BuyerID    string
	DeltaCents int64
	Entry      *billingdomain.Entry
}

type Service interface {
	Create(ctx context.Context, req CreateBuyerRequest) (Buyer, error)
	Get(ctx context.Context, id string) (Buyer, error)
	// List returns all buyers sorted by name.
	List(ctx context.Context) ([]Buyer, error)
	Update(ctx context.Context, id string, req UpdateBuyerRequest) (Buyer, error)
	// IncrementDelivery resets the counter when the stamped date is stale,
	// then increments and stamps today.
	IncrementDelivery(ctx context.Context, id string) (Buyer, error)
	AdjustCredit(ctx context.Context, req AdjustCreditRequest) (Buyer, *billingdomain.Transaction, error)
}

var (
	ErrNotFound     = errors.New("not_found")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidEntry = errors.New("invalid_entry")
)
