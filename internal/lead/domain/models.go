package domain

import "time"

// Status is a lead's pipeline state, mutated only by explicit status updates,
// never by routing.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQuoted    Status = "quoted"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusContacted, StatusQuoted, StatusWon, StatusLost:
		return true
	default:
		return false
	}
}

// Lead is one prospective customer inquiry. Core intake fields are immutable;
// status and computed fields are amended by appending a newer snapshot under
// the same id.
type Lead struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Service string `json:"service"`
	Message string `json:"message"`

	Urgency      string            `json:"urgency,omitempty"`
	BudgetBand   string            `json:"budget_band,omitempty"`
	Addons       []string          `json:"addons,omitempty"`
	UTM          map[string]string `json:"utm,omitempty"`
	Photos       int               `json:"photos"`
	ConsentShare bool              `json:"consent_share"`

	DuplicateRecent bool `json:"duplicate_recent"`
	RawScore        int  `json:"raw_score"`
	NormalizedScore int  `json:"normalized_score"`

	Status Status `json:"status"`
}
