package domain

import "time"

// Template names a follow-up email variant, keyed by its delay after intake.
type Template string

const (
	TemplateFollow24h Template = "follow_24h"
	TemplateFollow72h Template = "follow_72h"
)

const (
	Follow24hDelay = 24 * time.Hour
	Follow72hDelay = 72 * time.Hour
)

// Event is one scheduled follow-up. Marking an event sent appends a newer
// snapshot with SentAt set; an event whose latest snapshot carries SentAt is
// never due again.
type Event struct {
	ID       string     `json:"id"`
	LeadID   string     `json:"lead_id"`
	RunAt    time.Time  `json:"run_at"`
	Template Template   `json:"template"`
	SentAt   *time.Time `json:"sent_at,omitempty"`
}

func ValidTemplate(t Template) bool {
	return t == TemplateFollow24h || t == TemplateFollow72h
}
