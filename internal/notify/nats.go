package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"alertcore/internal/config"
	"alertcore/internal/domain"

	"github.com/nats-io/nats.go"
)

// NATSChannel publishes the alert JSON to a NATS subject.
// Params: connection and target subject.
// Returns: NATS notification channel.
type NATSChannel struct {
	nc      *nats.Conn
	subject string
}

// NewNATSChannel creates a NATS publish channel from config.
// Params: NATS notify config with URLs and subject.
// Returns: connected channel or connect error.
func NewNATSChannel(cfg config.NATSNotifyConfig) (*NATSChannel, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats notify: %w", err)
	}
	return &NATSChannel{nc: nc, subject: cfg.Subject}, nil
}

// Name returns the channel name.
// Params: none.
// Returns: static channel key.
func (c *NATSChannel) Name() string {
	return "nats"
}

// Send publishes one alert document to the subject.
// Params: context (unused by core NATS publish) and alert payload.
// Returns: encode or publish error.
func (c *NATSChannel) Send(_ context.Context, alert domain.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := c.nc.Publish(c.subject, body); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// Close drains and closes the NATS connection.
// Params: none.
// Returns: nil; close is best-effort like delivery itself.
func (c *NATSChannel) Close() error {
	c.nc.Close()
	return nil
}
