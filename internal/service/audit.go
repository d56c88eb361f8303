package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"library-backend/pkg/circuit_breaker"
	"library-backend/pkg/kafka"
)

// Notifier records who did what after a successful state-changing operation.
// Delivery is fire-and-forget: a lost audit record never rolls back the
// business transaction.
type Notifier interface {
	Notify(ctx context.Context, actorID, description, verb string)
}

type AuditMessage struct {
	ActorID     string    `json:"actorId"`
	Description string    `json:"description"`
	Verb        string    `json:"verb"`
	At          time.Time `json:"at"`
}

type kafkaNotifier struct {
	producer sarama.SyncProducer
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

func NewKafkaNotifier(producer sarama.SyncProducer, log *zap.Logger) Notifier {
	return &kafkaNotifier{
		producer: producer,
		cb:       circuit_breaker.New(20, 30*time.Second, 0.5, 3),
		log:      log.Named("audit"),
	}
}

func (n *kafkaNotifier) Notify(_ context.Context, actorID, description, verb string) {
	msg := AuditMessage{
		ActorID:     actorID,
		Description: description,
		Verb:        verb,
		At:          time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		n.log.Error("marshal audit message", zap.Error(err))
		return
	}
	err = n.cb.Call(func() error {
		_, _, err := n.producer.SendMessage(&sarama.ProducerMessage{
			Topic: kafka.AuditTopic,
			Value: sarama.StringEncoder(data),
		})
		return err
	})
	if err != nil {
		n.log.Warn("audit notify", zap.String("actor", actorID), zap.Error(err))
	}
}
