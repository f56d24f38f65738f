package domain

import "time"

// DateLayout formats the calendar day DeliveredToday applies to.
const DateLayout = "2006-01-02"

const (
	DefaultPricePerLeadCents        int64 = 2500
	DefaultLowBalanceThresholdCents int64 = 5000
)

// Buyer is a purchaser of exclusive lead delivery rights. Mutations never
// update in place: every change appends a full snapshot to the store and
// current state is the newest snapshot per id.
type Buyer struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	ContactEmail   string   `json:"contact_email"`
	Active         bool     `json:"active"`
	MinScore       int      `json:"min_score"`
	Services       []string `json:"services"`
	PostalPrefixes []string `json:"postal_prefixes"`
	DailyCap       int      `json:"daily_cap"`
	// DeliveredToday only counts for LastDeliveryDate; reads on a stale date
	// must treat the effective count as zero.
	DeliveredToday   int    `json:"delivered_today"`
	LastDeliveryDate string `json:"last_delivery_date,omitempty"`
	WebhookURL       string `json:"webhook_url,omitempty"`

	PricePerLeadCents        int64      `json:"price_per_lead_cents"`
	CreditCents              int64      `json:"credit_cents"`
	LowBalanceThresholdCents int64      `json:"low_balance_threshold_cents"`
	LastLowBalanceAlertAt    *time.Time `json:"last_low_balance_alert_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveDeliveredToday returns the delivery count valid for the given day.
func (b Buyer) EffectiveDeliveredToday(today string) int {
	if b.LastDeliveryDate != today {
		return 0
	}
	return b.DeliveredToday
}
