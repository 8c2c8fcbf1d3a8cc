package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"alertcore/internal/config"
	"alertcore/internal/domain"
	"alertcore/internal/metrics"
)

// Channel sends one outbound notification for one newly created alert.
// Params: context and alert payload.
// Returns: transport error; the dispatcher never propagates it further.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert domain.Alert) error
}

// Dispatcher fans one alert out to all configured channels, best-effort.
// Params: channel list, closers for channel resources, and logger.
// Returns: fire-and-forget notify helper for the lifecycle manager.
type Dispatcher struct {
	channels []Channel
	closers  []io.Closer
	logger   *slog.Logger
	inflight sync.WaitGroup
}

// NewDispatcher builds a dispatcher from explicit channels.
// Params: logger and channel implementations (tests inject fakes here).
// Returns: configured dispatcher.
func NewDispatcher(logger *slog.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, logger: logger}
}

// NewDispatcherFromConfig builds a dispatcher from enabled notify channels.
// Params: notify config snapshot and logger.
// Returns: dispatcher with available senders, or channel setup error.
func NewDispatcherFromConfig(cfg config.NotifyConfig, logger *slog.Logger) (*Dispatcher, error) {
	dispatcher := &Dispatcher{logger: logger}

	if cfg.Telegram.Enabled {
		sender, err := NewTelegramChannel(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("build telegram channel: %w", err)
		}
		dispatcher.channels = append(dispatcher.channels, sender)
	}
	if cfg.Webhook.Enabled {
		dispatcher.channels = append(dispatcher.channels, NewWebhookChannel(cfg.Webhook))
	}
	if cfg.NATS.Enabled {
		sender, err := NewNATSChannel(cfg.NATS)
		if err != nil {
			dispatcher.closeChannels()
			return nil, fmt.Errorf("build nats channel: %w", err)
		}
		dispatcher.channels = append(dispatcher.channels, sender)
		dispatcher.closers = append(dispatcher.closers, sender)
	}

	return dispatcher, nil
}

// Notify delivers one alert to every channel, swallowing all failures.
// Delivery runs in its own goroutine so a slow channel never stalls the
// creating path; the call returns once dispatch is issued.
// Params: context and newly created alert.
// Returns: nothing; errors and panics become diagnostics, never caller errors.
func (d *Dispatcher) Notify(ctx context.Context, alert domain.Alert) {
	// Detach from the caller's cancellation: the request that created the
	// alert may finish before delivery does.
	deliveryCtx := context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		for _, channel := range d.channels {
			d.sendIsolated(deliveryCtx, channel, alert)
		}
	}()
}

// Flush blocks until all in-flight deliveries have finished.
// Params: none.
// Returns: nothing; used by shutdown and by tests asserting delivery.
func (d *Dispatcher) Flush() {
	d.inflight.Wait()
}

// sendIsolated runs one channel send inside its own error boundary.
// Params: context, destination channel, and alert payload.
// Returns: nothing; the boundary exists only around the dispatch call.
func (d *Dispatcher) sendIsolated(ctx context.Context, channel Channel, alert domain.Alert) {
	defer func() {
		if recovered := recover(); recovered != nil {
			metrics.NotifyFailuresTotal.WithLabelValues(channel.Name()).Inc()
			if d.logger != nil {
				d.logger.Error("notify channel panicked", "channel", channel.Name(), "alert_id", alert.ID, "panic", fmt.Sprint(recovered))
			}
		}
	}()

	if err := channel.Send(ctx, alert); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues(channel.Name()).Inc()
		if d.logger != nil {
			d.logger.Warn("notify send failed", "channel", channel.Name(), "alert_id", alert.ID, "error", err.Error())
		}
		return
	}
	metrics.NotifySentTotal.WithLabelValues(channel.Name()).Inc()
}

// Channels returns configured channel names.
// Params: none.
// Returns: channel name list in construction order.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, channel := range d.channels {
		names = append(names, channel.Name())
	}
	return names
}

// Close waits out in-flight deliveries and releases channel resources.
// Params: none.
// Returns: first close error.
func (d *Dispatcher) Close() error {
	d.inflight.Wait()
	return d.closeChannels()
}

// closeChannels closes all channel-held resources.
// Params: none.
// Returns: first close error.
func (d *Dispatcher) closeChannels() error {
	var firstErr error
	for _, closer := range d.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
