// internal/events/nats.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"comport-service/internal/config"
	"comport-service/internal/model"
)

// publishConn is the subset of *nats.Conn used by the publisher
type publishConn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher forwards port events to a NATS subject tree
type NATSPublisher struct {
	conn    publishConn
	subject string
	logger  *zap.Logger
}

// NewNATSPublisher connects to the configured NATS server
func NewNATSPublisher(cfg config.NATSConfig, appName string, logger *zap.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newNATSPublisher(nc, cfg.Subject, logger), nil
}

func newNATSPublisher(conn publishConn, subject string, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With(zap.String("component", "nats-publisher")),
	}
}

// SubjectFor returns the subject an event is published on, e.g.
// comport.events.port_added
func (p *NATSPublisher) SubjectFor(event model.PortEvent) string {
	return p.subject + "." + strings.ToLower(string(event.EventType))
}

// Run publishes events from sub until its channel is closed or ctx is done
func (p *NATSPublisher) Run(ctx context.Context, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := p.publish(event); err != nil {
				p.logger.Warn("Failed to publish port event",
					zap.String("event_type", string(event.EventType)),
					zap.Error(err),
				)
			}
		}
	}
}

func (p *NATSPublisher) publish(event model.PortEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.conn.Publish(p.SubjectFor(event), data)
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if err := p.conn.FlushTimeout(time.Second); err != nil {
		p.logger.Debug("NATS flush failed", zap.Error(err))
	}
	p.conn.Close()
}
