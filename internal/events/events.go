// Package events publishes committed market trades.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/segmentio/kafka-go"
)

type Kind string

const (
	KindPurchase Kind = "purchase"
	KindSell     Kind = "sell"
)

// TradeEvent describes one committed ownership transfer.
type TradeEvent struct {
	Kind     Kind         `json:"kind"`
	ItemID   int64        `json:"item_id"`
	ItemName string       `json:"item_name"`
	UserID   int64        `json:"user_id"`
	Price    models.Money `json:"price"`
	Budget   models.Money `json:"budget"`
	At       time.Time    `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event TradeEvent) error
	Close() error
}

// Producer writes trade events to a Kafka topic, keyed by item id so events
// for one item stay ordered within a partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, event TradeEvent) error {
	msg, err := message(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func message(event TradeEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.ItemID, 10)),
		Value: value,
		Time:  event.At,
	}, nil
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, TradeEvent) error { return nil }
func (Nop) Close() error                              { return nil }
