package domain

import (
	"context"

	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
)

// Context carries routing hints that are not part of the lead record.
type Context struct {
	PostalCode string
}

// Service selects at most one exclusive buyer for a scored lead. A nil buyer
// with a nil error means no candidate survived filtering, which is a valid
// terminal state, not an error.
type Service interface {
	SelectBuyer(ctx context.Context, lead leaddomain.Lead, rctx Context) (*buyerdomain.Buyer, error)
}
