// Package scoring maps raw lead attributes to a 0-100 priority score. It is
// pure and deterministic: the same input always produces the same result.
package scoring

import (
	"math"
	"strings"
)

const (
	UrgencyASAP     = "asap"
	Urgency30Days   = "30d"
	UrgencyPlanning = "planning"

	BudgetUnder2K = "under2k"
	Budget2To5K   = "2to5k"
	Budget5To10K  = "5to10k"
	Budget10KPlus = "10kplus"
)

// maxRaw is the raw score of a maxed-out lead (40+40+24+20); normalization
// rescales so that such a lead scores 100.
const maxRaw = 124.0

type Input struct {
	Urgency    string
	BudgetBand string
	Photos     int
	Addons     int
}

type Result struct {
	Raw        int
	Normalized int
	Breakdown  Breakdown
}

// Breakdown exposes per-component scores for observability and tests.
type Breakdown struct {
	Urgency int `json:"urgency"`
	Budget  int `json:"budget"`
	Photos  int `json:"photos"`
	Addons  int `json:"addons"`
}

func Score(in Input) Result {
	b := Breakdown{
		Urgency: urgencyScore(in.Urgency),
		Budget:  budgetScore(in.BudgetBand),
		Photos:  min(24, max(0, in.Photos)*8),
		Addons:  min(20, max(0, in.Addons)*5),
	}
	raw := b.Urgency + b.Budget + b.Photos + b.Addons
	normalized := int(math.Round(float64(raw) / (maxRaw / 100)))
	if normalized > 100 {
		normalized = 100
	}
	if normalized < 0 {
		normalized = 0
	}
	return Result{Raw: raw, Normalized: normalized, Breakdown: b}
}

func urgencyScore(u string) int {
	switch u {
	case UrgencyASAP:
		return 40
	case Urgency30Days:
		return 25
	case UrgencyPlanning:
		return 10
	default:
		return 0
	}
}

func budgetScore(b string) int {
	switch b {
	case Budget10KPlus:
		return 40
	case Budget5To10K:
		return 30
	case Budget2To5K:
		return 15
	case BudgetUnder2K:
		return 5
	default:
		return 0
	}
}

// NormalizeServiceKey reduces a free-text service name to the lowercase,
// underscore-joined key used for buyer matching ("Interior Painting" ->
// "interior_painting").
func NormalizeServiceKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), "_")
}
