package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/schoolroute/backend/internal/domain"
)

// SubjectRouteCalculated carries domain.RouteCalculatedEvent payloads
const SubjectRouteCalculated = "schoolroute.route.calculated"

type NATSPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("schoolroute-backend"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publisher: failed to connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, logger: logger}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) PublishRouteCalculated(ctx context.Context, event domain.RouteCalculatedEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("publisher: failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(SubjectRouteCalculated, b); err != nil {
		return fmt.Errorf("publisher: failed to publish %s: %w", SubjectRouteCalculated, err)
	}
	return nil
}

// NoopPublisher drops every event; used when NATS is not configured
type NoopPublisher struct{}

func (NoopPublisher) PublishRouteCalculated(context.Context, domain.RouteCalculatedEvent) error {
	return nil
}

func (NoopPublisher) Close() {}
