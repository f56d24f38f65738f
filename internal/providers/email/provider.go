package email

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, body string) error
}

// NoOpProvider is used when SMTP is not configured; sends succeed silently.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, body string) error {
	return nil
}
