// Package notify publishes counting events and alerts to NATS for external notifiers
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// NATSConfig holds connection parameters
type NATSConfig struct {
	URL            string
	Name           string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// DefaultNATSConfig returns connection defaults for the given url
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:            url,
		Name:           "linecount",
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  60,
	}
}

// Service is a thin JSON publisher over a NATS connection
type Service struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewService connects to NATS
func NewService(cfg NATSConfig, logger zerolog.Logger) (*Service, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Info().Str("url", conn.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't connect to NATS '%s'", cfg.URL)
	}
	logger.Info().Str("url", cfg.URL).Msg("NATS connection established")
	return &Service{
		conn:   conn,
		logger: logger,
	}, nil
}

// Publish marshals data to JSON and publishes it to subject
func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "Can't marshal payload")
	}
	return s.conn.Publish(subject, payload)
}

// IsConnected reports connection state
func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Shutdown drains connection, falling back to immediate close
func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
		s.conn.Close()
		return nil
	}
	// Drain is asynchronous
	for s.conn.IsDraining() {
		select {
		case <-ctx.Done():
			s.conn.Close()
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}
