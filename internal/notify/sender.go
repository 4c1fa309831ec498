// Package notify delivers customer-facing ticket notifications.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Message is one status-change notice addressed to a customer.
type Message struct {
	RecipientEmail  string `json:"recipient_email"`
	RecipientName   string `json:"recipient_name"`
	TicketDisplayID string `json:"ticket_display_id"`
	ProductModel    string `json:"product_model"`
	NewStatus       string `json:"new_status"`
}

// Sender delivers a message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	from   string
	logger *zap.Logger
}

// NewLogSender returns a sender that only logs.
func NewLogSender(from string, logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{from: from, logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("status notification",
		zap.String("from", s.from),
		zap.String("to", msg.RecipientEmail),
		zap.String("ticket", msg.TicketDisplayID),
		zap.String("model", msg.ProductModel),
		zap.String("status", msg.NewStatus))
	return nil
}

// WebhookSender POSTs each message as JSON to a fixed URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender builds a sender with the given per-request timeout.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notify webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
