package reminder

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"
)

// AlertMailer emails operators when a processing batch finishes with
// errors, via Resend.
type AlertMailer struct {
	client *resend.Client
	from   string
	to     []string
}

func NewAlertMailer(apiKey, from string, to []string) *AlertMailer {
	return &AlertMailer{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}

func (m *AlertMailer) BatchAlert(ctx context.Context, errs []string) error {
	var b strings.Builder
	b.WriteString("<p>A reminder processing batch finished with errors:</p><pre>")
	for _, e := range errs {
		b.WriteString(html.EscapeString(e))
		b.WriteString("\n")
	}
	b.WriteString("</pre>")

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      m.to,
		Subject: fmt.Sprintf("[reminders] batch finished with %d errors", len(errs)),
		Html:    b.String(),
	}

	_, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send alert via Resend: %w", err)
	}
	return nil
}
