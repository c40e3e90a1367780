package rabbitmq

import amqp "github.com/rabbitmq/amqp091-go"

// Topology names the exchange, queue and dead-letter wiring of one job type.
type Topology struct {
	Exchange      string
	Queue         string
	RoutingKey    string
	DLX           string
	DLQ           string
	DLQRoutingKey string
	// MaxTries bounds handler attempts per delivery before it is dead-lettered.
	MaxTries uint
}

var (
	// GenerationTopology gets a single attempt: a generation run is not
	// retried against the oracle, its outcome is recorded on the material.
	GenerationTopology = Topology{
		Exchange:      "generation_exchange",
		Queue:         "generation_queue",
		RoutingKey:    "generation.request",
		DLX:           "material_pipeline_dlx",
		DLQ:           "generation_queue_dlq",
		DLQRoutingKey: "dlq.generation.request",
		MaxTries:      1,
	}

	TranscodeTopology = Topology{
		Exchange:      "transcoding_exchange",
		Queue:         "transcoding_queue",
		RoutingKey:    "transcoding.request",
		DLX:           "material_pipeline_dlx",
		DLQ:           "transcoding_queue_dlq",
		DLQRoutingKey: "dlq.transcoding.request",
		MaxTries:      5,
	}
)

func (t Topology) queueArgs() amqp.Table {
	if t.DLX == "" {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    t.DLX,
		"x-dead-letter-routing-key": t.DLQRoutingKey,
	}
}

func (t Topology) maxTries() uint {
	if t.MaxTries == 0 {
		return 1
	}
	return t.MaxTries
}

// declare is idempotent; both the publisher and the consumer call it.
func (t Topology) declare(ch *amqp.Channel, kind string) error {
	if err := ch.ExchangeDeclare(t.Exchange, kind, true, false, false, false, nil); err != nil {
		return err
	}
	if t.DLX != "" {
		if err := ch.ExchangeDeclare(t.DLX, kind, true, false, false, false, nil); err != nil {
			return err
		}
		dlq, err := ch.QueueDeclare(t.DLQ, true, false, false, false, nil)
		if err != nil {
			return err
		}
		if err := ch.QueueBind(dlq.Name, t.DLQRoutingKey, t.DLX, false, nil); err != nil {
			return err
		}
	}
	q, err := ch.QueueDeclare(t.Queue, true, false, false, false, t.queueArgs())
	if err != nil {
		return err
	}
	return ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil)
}
