package domain

import "time"

// Method is the channel a lead was handed to a buyer on.
type Method string

const (
	MethodEmail   Method = "email"
	MethodWebhook Method = "webhook"
)

// Status is the terminal outcome of one delivery attempt.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Delivery is one attempt to hand a lead to a buyer. Attempts are recorded
// whether they succeed or fail; only successful attempts trigger a charge.
type Delivery struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	BuyerID   string    `json:"buyer_id"`
	Method    Method    `json:"method"`
	Status    Status    `json:"status"`
	LatencyMS int64     `json:"latency_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
