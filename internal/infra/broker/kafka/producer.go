package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	appoutbox "rentals/internal/app/outbox"
)

const defaultSource = "app://rentals"

// Producer publishes outbox records as CloudEvents, one topic per aggregate kind
// ("booking.created" goes to "booking.events.v1").
type Producer struct {
	sync        sarama.SyncProducer
	TopicPrefix string
	Source      string
}

func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	cfg.Net.MaxOpenRequests = 1
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(sync), nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(sync sarama.SyncProducer) *Producer {
	return &Producer{sync: sync}
}

func (p *Producer) Publish(ctx context.Context, rec appoutbox.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := p.envelope(rec)
	if err != nil {
		return err
	}
	hs := []sarama.RecordHeader{{Key: []byte("content-type"), Value: []byte("application/cloudevents+json")}}
	for k, v := range rec.Headers {
		if k == "content-type" {
			continue
		}
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	msg := &sarama.ProducerMessage{
		Topic:   p.TopicFor(rec.Name),
		Key:     sarama.StringEncoder(rec.Aggregate),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}
	_, _, err = p.sync.SendMessage(msg)
	return err
}

// Envelope is the CloudEvents 1.0 structured form written to Kafka.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            string          `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

func (p *Producer) envelope(rec appoutbox.EventRecord) ([]byte, error) {
	if !json.Valid(rec.Payload) {
		return nil, fmt.Errorf("kafka: event %s payload is not JSON", rec.ID)
	}
	source := p.Source
	if source == "" {
		source = defaultSource
	}
	return json.Marshal(Envelope{
		SpecVersion:     "1.0",
		ID:              rec.ID,
		Type:            rec.Name + ".v1",
		Source:          source,
		Subject:         rec.Aggregate,
		Time:            rec.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		DataContentType: "application/json",
		Data:            rec.Payload,
	})
}

func (p *Producer) TopicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return p.TopicPrefix + base + ".events.v1"
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}

var _ appoutbox.Publisher = (*Producer)(nil)
