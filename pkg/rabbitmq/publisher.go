package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"material-pipeline/config"
	"material-pipeline/dto"
)

// Publisher sends job messages. One channel is shared and guarded by mu,
// since amqp channels are not safe for concurrent publishing.
type Publisher struct {
	conn     *amqp.Connection
	cfg      *config.RabbitMQ
	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]bool
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) *Publisher {
	return &Publisher{conn: conn, cfg: cfg, declared: map[string]bool{}}
}

func (p *Publisher) PublishGeneration(ctx context.Context, msg dto.GenerationMessage) error {
	return p.publish(ctx, GenerationTopology, msg)
}

func (p *Publisher) PublishTranscode(ctx context.Context, msg dto.TranscodeMessage) error {
	return p.publish(ctx, TranscodeTopology, msg)
}

func (p *Publisher) publish(ctx context.Context, topology Topology, msg interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	if !p.declared[topology.Exchange] {
		if err := topology.declare(ch, p.cfg.Kind); err != nil {
			p.reset()
			return err
		}
		p.declared[topology.Exchange] = true
	}

	err = ch.PublishWithContext(ctx, topology.Exchange, topology.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return err
	}

	zerolog.Ctx(ctx).Debug().
		Str("exchange", topology.Exchange).
		Str("routing_key", topology.RoutingKey).
		Msg("job published")
	return nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	p.ch = ch
	p.declared = map[string]bool{}
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	p.ch = nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
