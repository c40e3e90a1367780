package config

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const rabbitMQDialTries = 5

// URI builds the broker address; credentials are escaped by amqp.URI.
func (r *RabbitMQ) URI() string {
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     r.Host,
		Port:     r.Port,
		Username: r.User,
		Password: r.Pass,
		Vhost:    "/",
	}
	return uri.String()
}

// NewRabbitMQConn dials with exponential backoff and closes the connection
// when ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQ) (*amqp.Connection, error) {
	logger := zerolog.Ctx(ctx).With().Str("host", cfg.Host).Int("port", cfg.Port).Logger()

	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(cfg.URI())
		if err != nil {
			logger.Warn().Err(err).Msg("failed to connect to rabbitmq, retrying")
			return nil, err
		}
		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(rabbitMQDialTries))
	if err != nil {
		logger.Error().Err(err).Msg("giving up connecting to rabbitmq")
		return nil, err
	}

	logger.Info().Msg("connected to rabbitmq")
	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil && !conn.IsClosed() {
			logger.Error().Err(err).Msg("failed to close rabbitmq connection")
		}
		logger.Info().Msg("rabbitmq connection closed")
	}()

	return conn, nil
}
