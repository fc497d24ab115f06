package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := message(TradeEvent{
		Kind:     KindPurchase,
		ItemID:   17,
		ItemName: "Laptop",
		UserID:   3,
		Price:    1000_00,
		Budget:   0,
		At:       at,
	})
	if err != nil {
		t.Fatalf("message: %v", err)
	}

	if string(msg.Key) != "17" {
		t.Errorf("expected key 17, got %q", msg.Key)
	}
	if !msg.Time.Equal(at) {
		t.Errorf("expected time %v, got %v", at, msg.Time)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded["kind"] != "purchase" || decoded["item_name"] != "Laptop" {
		t.Errorf("unexpected payload %v", decoded)
	}
	if decoded["price"] != float64(1000) || decoded["budget"] != float64(0) {
		t.Errorf("unexpected amounts %v", decoded)
	}
}

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:9092", "localhost:9093"}, "market.trades")
	defer p.Close()

	if p.writer.Topic != "market.trades" {
		t.Errorf("unexpected topic %q", p.writer.Topic)
	}
	if p.writer.RequiredAcks != kafka.RequireAll {
		t.Errorf("expected RequireAll acks, got %v", p.writer.RequiredAcks)
	}
	if _, ok := p.writer.Balancer.(*kafka.Hash); !ok {
		t.Errorf("expected key hash balancer, got %T", p.writer.Balancer)
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), TradeEvent{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
