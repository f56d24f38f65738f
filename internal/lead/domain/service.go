package domain

import (
	"context"
	"errors"
)

type IntakeRequest struct {
	Name    string
	Email   string
	Phone   string
	Service string
	Message string

	Urgency      string
	BudgetBand   string
	Addons       []string
	UTM          map[string]string
	Photos       int
	ConsentShare bool

	// PostalCode is a routing hint only; it is not stored on the lead.
	PostalCode string
}

type ListLeadsRequest struct {
	Status   Status
	MinScore int
	Limit    int
}

type UpdateStatusRequest struct {
	ID     string
	Status Status
}

type Service interface {
	// Intake validates, scores and persists a lead, schedules follow-ups and
	// hands the lead to the background delivery dispatcher. Everything past
	// persistence is detached from the caller.
	Intake(ctx context.Context, req IntakeRequest) (Lead, error)
	Get(ctx context.Context, id string) (Lead, error)
	// List returns leads newest first.
	List(ctx context.Context, req ListLeadsRequest) ([]Lead, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (Lead, error)
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrMissingField    = errors.New("missing_field")
	ErrConsentRequired = errors.New("consent_required")
)
