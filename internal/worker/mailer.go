package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/farmconnect/marketplace/internal/email"
	"github.com/farmconnect/marketplace/internal/messaging"
)

// Mailer posts messages to the email service.
type Mailer struct {
	baseURL    string
	httpClient *http.Client
}

func NewMailer(baseURL string, client *http.Client) *Mailer {
	return &Mailer{baseURL: baseURL, httpClient: client}
}

// Send delivers msg through POST /send. A 4xx answer means the message itself
// is unacceptable and is reported as a permanent error; anything else that
// fails may succeed on redelivery.
func (m *Mailer) Send(ctx context.Context, msg email.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return messaging.Permanent(fmt.Errorf("marshal email: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/send", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return messaging.Permanent(fmt.Errorf("email service rejected message with status %d", resp.StatusCode))
	default:
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}
}
