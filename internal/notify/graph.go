package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/spec-kit/facility-requests/internal/config"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphMailer sends through the Microsoft Graph sendMail endpoint using an app-only token.
type GraphMailer struct {
	client  *http.Client
	baseURL string
	sender  string
}

// NewGraphMailer builds a mailer authenticated with client credentials.
func NewGraphMailer(ctx context.Context, cfg config.GraphConfig) *GraphMailer {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID)),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return &GraphMailer{client: creds.Client(ctx), baseURL: graphBaseURL, sender: cfg.Sender}
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphSendMail struct {
	Message struct {
		Subject string `json:"subject"`
		Body    struct {
			ContentType string `json:"contentType"`
			Content     string `json:"content"`
		} `json:"body"`
		ToRecipients []graphAddress `json:"toRecipients"`
	} `json:"message"`
	SaveToSentItems bool `json:"saveToSentItems"`
}

// Send posts the message on behalf of the configured sender mailbox.
func (m *GraphMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	var payload graphSendMail
	payload.Message.Subject = msg.Subject
	payload.Message.Body.ContentType = "HTML"
	payload.Message.Body.Content = msg.HTML
	var to graphAddress
	to.EmailAddress.Address = msg.To
	payload.Message.ToRecipients = []graphAddress{to}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/users/%s/sendMail", m.baseURL, url.PathEscape(m.sender))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph rejected message: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	return nil
}
