package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/orderbot/internal/bus"
	"github.com/matheus3301/orderbot/internal/order"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer is the part of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEvent is the JSON body written for every accepted order.
type OrderEvent struct {
	Kind      string         `json:"kind"`
	OrderID   string         `json:"order_id"`
	OrderDate string         `json:"order_date"`
	ChatID    int64          `json:"chat_id"`
	ChatTitle string         `json:"chat_title"`
	Sender    string         `json:"sender"`
	SenderID  int64          `json:"sender_id"`
	MessageID int64          `json:"message_id"`
	Orders    []CustomerLine `json:"orders"`
	At        time.Time      `json:"at"`
}

// CustomerLine is one customer's share of an order.
type CustomerLine struct {
	Customer string     `json:"customer"`
	Items    []ItemLine `json:"items"`
}

// ItemLine is an item and its quantity.
type ItemLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Publisher forwards order.* bus events to a Kafka topic. Delivery is best
// effort: failures are logged and the event is dropped.
type Publisher struct {
	writer Writer
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaWriter returns a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// NewPublisher creates a publisher writing through w.
func NewPublisher(w Writer, b *bus.Bus, logger *zap.Logger) *Publisher {
	return &Publisher{writer: w, bus: b, logger: logger}
}

// Start subscribes to order events on the bus.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	ch, unsub := p.bus.Subscribe("order.", 256)

	go func() {
		defer close(p.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if err := p.publish(ctx, evt); err != nil {
					p.logger.Warn("order event not published", zap.String("kind", evt.Kind), zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription and closes the writer.
func (p *Publisher) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("closing kafka writer", zap.Error(err))
	}
}

func (p *Publisher) publish(ctx context.Context, evt bus.Event) error {
	a, ok := evt.Payload.(*order.Accepted)
	if !ok {
		return nil
	}
	body, err := json.Marshal(NewOrderEvent(evt.Kind, a, evt.Timestamp))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return p.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", a.ChatID)),
		Value: body,
		Time:  evt.Timestamp,
	})
}

// NewOrderEvent builds the wire form of an accepted order.
func NewOrderEvent(kind string, a *order.Accepted, at time.Time) OrderEvent {
	evt := OrderEvent{
		Kind:      kind,
		OrderID:   a.ID,
		OrderDate: a.Date,
		ChatID:    a.ChatID,
		ChatTitle: a.ChatTitle,
		Sender:    a.Sender,
		SenderID:  a.SenderID,
		MessageID: a.MessageID,
		Orders:    make([]CustomerLine, 0, len(a.Orders)),
		At:        at,
	}
	for _, o := range a.Orders {
		line := CustomerLine{Customer: o.CustomerName, Items: make([]ItemLine, 0, len(o.Items))}
		for _, it := range o.Items {
			line.Items = append(line.Items, ItemLine{Name: it.Name, Quantity: it.Quantity})
		}
		evt.Orders = append(evt.Orders, line)
	}
	return evt
}
