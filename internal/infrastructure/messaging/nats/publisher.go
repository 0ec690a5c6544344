package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

// SubjectItemCreated — subject для событий создания item
const SubjectItemCreated = "items.created"

// NATSPublisher implements port.EventPublisher for NATS JetStream
type NATSPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	emitter *logging.Emitter
}

// NewNATSPublisher creates a new NATS publisher
func NewNATSPublisher(natsURL string, emitter *logging.Emitter) (*NATSPublisher, error) {
	// Connect to NATS with retry
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				emitter.Emit("nats_disconnected", map[string]any{
					"level": logging.LevelWarn,
					"error": err.Error(),
				})
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			emitter.Emit("nats_reconnected", map[string]any{"url": nc.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Get JetStream context
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	return &NATSPublisher{
		nc:      nc,
		js:      js,
		emitter: emitter,
	}, nil
}

// PublishEvent publishes an event to NATS (async, fire-and-forget)
func (p *NATSPublisher) PublishEvent(ctx context.Context, subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err = p.js.PublishAsync(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
