package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	buyerdomain "github.com/brushline/leadrail/internal/buyer/domain"
	"github.com/brushline/leadrail/internal/delivery/domain"
	leaddomain "github.com/brushline/leadrail/internal/lead/domain"
	"github.com/brushline/leadrail/internal/providers/email"
	"go.uber.org/zap"
)

const webhookTimeout = 10 * time.Second

// Notifier delivers a lead over the buyer's configured channel: webhook when
// the buyer has one, email otherwise.
type Notifier struct {
	email  email.Provider
	client *http.Client
	log    *zap.Logger
}

func NewNotifier(provider email.Provider, log *zap.Logger) domain.Notifier {
	return &Notifier{
		email:  provider,
		client: &http.Client{Timeout: webhookTimeout},
		log:    log.Named("delivery.notifier"),
	}
}

func (n *Notifier) Notify(ctx context.Context, buyer buyerdomain.Buyer, lead leaddomain.Lead) (domain.Result, error) {
	start := time.Now()
	if strings.TrimSpace(buyer.WebhookURL) != "" {
		err := n.notifyWebhook(ctx, buyer, lead)
		return domain.Result{Method: domain.MethodWebhook, LatencyMS: time.Since(start).Milliseconds()}, err
	}
	err := n.notifyEmail(ctx, buyer, lead)
	return domain.Result{Method: domain.MethodEmail, LatencyMS: time.Since(start).Milliseconds()}, err
}

func (n *Notifier) notifyEmail(ctx context.Context, buyer buyerdomain.Buyer, lead leaddomain.Lead) error {
	subject := fmt.Sprintf("[Lead] %s | Score %d | %s", lead.Service, lead.NormalizedScore, lead.Name)

	var b strings.Builder
	b.WriteString("New lead\n")
	b.WriteString("Name: " + lead.Name + "\n")
	b.WriteString("Phone: " + lead.Phone + "\n")
	b.WriteString("Email: " + lead.Email + "\n")
	b.WriteString("Service: " + lead.Service + "\n")
	b.WriteString("Urgency: " + lead.Urgency + "\n")
	b.WriteString("Budget: " + lead.BudgetBand + "\n")
	b.WriteString("Score: " + strconv.Itoa(lead.NormalizedScore) + "\n")
	b.WriteString("Message:\n" + lead.Message + "\n")

	return n.email.Send(ctx, []string{buyer.ContactEmail}, subject, b.String())
}

// webhookPayload is the JSON body posted to a buyer's webhook. Contact
// details are only shared on an exclusive, consented delivery.
type webhookPayload struct {
	LeadID          string `json:"lead_id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Service         string `json:"service"`
	Urgency         string `json:"urgency,omitempty"`
	BudgetBand      string `json:"budget_band,omitempty"`
	Message         string `json:"message,omitempty"`
	NormalizedScore int    `json:"normalized_score"`
	DuplicateRecent bool   `json:"duplicate_recent"`
}

func (n *Notifier) notifyWebhook(ctx context.Context, buyer buyerdomain.Buyer, lead leaddomain.Lead) error {
	body, err := json.Marshal(webhookPayload{
		LeadID:          lead.ID,
		Name:            lead.Name,
		Email:           lead.Email,
		Phone:           lead.Phone,
		Service:         lead.Service,
		Urgency:         lead.Urgency,
		BudgetBand:      lead.BudgetBand,
		Message:         lead.Message,
		NormalizedScore: lead.NormalizedScore,
		DuplicateRecent: lead.DuplicateRecent,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, buyer.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lead-Id", lead.ID)
	req.Header.Set("X-Score", strconv.Itoa(lead.NormalizedScore))
	req.Header.Set("X-Buyer-Id", buyer.ID)
	req.Header.Set("X-Duplicate-Recent", strconv.FormatBool(lead.DuplicateRecent))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
