package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// smsGateway posts messages to an HTTP SMS provider. The request shape
// follows the common transactional-SMS form API: api key, sender id,
// destination number and message as form fields.
type smsGateway struct {
	apiKey   string
	senderID string
	baseURL  string
	client   *http.Client
}

// NewSMSGateway creates a Notifier backed by an HTTP SMS provider.
func NewSMSGateway(apiKey, senderID, baseURL string) Notifier {
	return &smsGateway{
		apiKey:   apiKey,
		senderID: senderID,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *smsGateway) Notify(ctx context.Context, phoneNumber, message string) error {
	if phoneNumber == "" {
		return fmt.Errorf("phone number is required")
	}

	form := url.Values{}
	form.Set("apikey", g.apiKey)
	form.Set("sender", g.senderID)
	form.Set("to", phoneNumber)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
