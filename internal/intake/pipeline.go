package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/orderbot/internal/bus"
	"github.com/matheus3301/orderbot/internal/order"
	"github.com/matheus3301/orderbot/internal/store"
	"go.uber.org/zap"
)

// Message is an inbound chat message as delivered by the transport.
type Message struct {
	Text            string
	ChatID          int64
	ChatTitle       string
	SenderUsername  string
	SenderID        int64
	SenderFirstName string
	MessageID       int64
}

// Outcome says how a message was disposed of.
type Outcome string

const (
	OutcomeAlreadyParsed Outcome = "already_parsed"
	OutcomeInactive      Outcome = "inactive"
	OutcomeNoKeyword     Outcome = "no_keyword"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeNoOrders      Outcome = "no_orders"
	OutcomeAccepted      Outcome = "accepted"
	OutcomeFailed        Outcome = "failed"
)

// Store is the persistence the pipeline needs.
type Store interface {
	IsMessageParsed(ctx context.Context, chatID, msgID int64) (bool, error)
	FindOrdersBySender(ctx context.Context, chatID, senderID int64) ([]store.Order, error)
	SaveOrder(ctx context.Context, o *store.Order, items []store.OrderItem, rec *store.TrackingRecord) error
}

// KeywordSource supplies the current trigger keyword.
type KeywordSource interface {
	Keyword(ctx context.Context) (string, error)
}

// Activity reports whether the bot is currently taking orders.
type Activity interface {
	Active() bool
}

// Mirror replicates accepted orders to an external sheet.
type Mirror interface {
	AppendOrder(ctx context.Context, a *order.Accepted) error
}

// RetryQueue holds orders whose mirror append failed.
type RetryQueue interface {
	Enqueue(ctx context.Context, a *order.Accepted) error
}

// Replier sends a reply to a specific chat message.
type Replier interface {
	Reply(ctx context.Context, chatID, replyTo int64, text string) error
}

// Recorder observes pipeline results. metrics.Metrics implements it.
type Recorder interface {
	MessageHandled(outcome Outcome)
	OrderAccepted(items int)
	MirrorFailed()
}

// Pipeline turns chat messages into stored orders.
type Pipeline struct {
	store    Store
	keywords KeywordSource
	activity Activity
	ids      *order.Generator
	mirror   Mirror
	retry    RetryQueue
	replier  Replier
	bus      *bus.Bus
	recorder Recorder
	onlyLast bool
	logger   *zap.Logger
}

// Options holds the pipeline's optional collaborators and flags.
type Options struct {
	// OnlyLast keeps only the final customer block of a message.
	OnlyLast bool
	Bus      *bus.Bus
	Recorder Recorder
	// Retry receives orders the mirror rejected.
	Retry RetryQueue
}

// NewPipeline wires a pipeline. mirror, replier and the Options fields may be nil.
func NewPipeline(st Store, keywords KeywordSource, activity Activity, ids *order.Generator, mirror Mirror, replier Replier, opts Options, logger *zap.Logger) *Pipeline {
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Pipeline{
		store:    st,
		keywords: keywords,
		activity: activity,
		ids:      ids,
		mirror:   mirror,
		retry:    opts.Retry,
		replier:  replier,
		bus:      opts.Bus,
		recorder: opts.Recorder,
		onlyLast: opts.OnlyLast,
		logger:   logger,
	}
}

// Handle runs msg through the tracking guard, activity check, keyword match,
// duplicate guard and parser, then stores, mirrors and acknowledges the
// order. An error means processing stopped part way and no reply was sent.
func (p *Pipeline) Handle(ctx context.Context, msg *Message) (Outcome, error) {
	log := p.logger.With(
		zap.String("trace_id", uuid.NewString()),
		zap.Int64("chat_id", msg.ChatID),
		zap.Int64("msg_id", msg.MessageID),
	)

	outcome, err := p.handle(ctx, msg, log)
	if err != nil {
		outcome = OutcomeFailed
		log.Error("message processing aborted", zap.Error(err))
	}
	p.recorder.MessageHandled(outcome)
	return outcome, err
}

func (p *Pipeline) handle(ctx context.Context, msg *Message, log *zap.Logger) (Outcome, error) {
	parsed, err := p.store.IsMessageParsed(ctx, msg.ChatID, msg.MessageID)
	if err != nil {
		return "", fmt.Errorf("check message tracking: %w", err)
	}
	if parsed {
		log.Info("message already parsed, ignoring")
		return OutcomeAlreadyParsed, nil
	}

	if !p.activity.Active() {
		log.Info("bot inactive, ignoring message",
			zap.String("sender", msg.SenderUsername), zap.String("group", msg.ChatTitle))
		return OutcomeInactive, nil
	}

	keyword, err := p.keywords.Keyword(ctx)
	if err != nil {
		return "", fmt.Errorf("read keyword: %w", err)
	}
	if keyword == "" {
		log.Warn("no keyword configured, ignoring message")
		return OutcomeNoKeyword, nil
	}
	if !strings.Contains(strings.ToLower(msg.Text), strings.ToLower(keyword)) {
		return OutcomeNoKeyword, nil
	}
	log.Debug("received order message", zap.String("text", msg.Text))

	existing, err := p.store.FindOrdersBySender(ctx, msg.ChatID, msg.SenderID)
	if err != nil {
		return "", fmt.Errorf("find existing orders: %w", err)
	}
	if len(existing) > 0 {
		log.Info("sender already placed an order in this group, ignoring",
			zap.String("sender", msg.SenderUsername),
			zap.String("first_name", msg.SenderFirstName),
			zap.String("group", msg.ChatTitle),
			zap.String("previous_order_id", existing[0].OrderID))
		return OutcomeDuplicate, nil
	}

	orders := order.Process(msg.Text, keyword, p.onlyLast)
	if len(orders) == 0 {
		log.Warn("no valid orders found in message")
		return OutcomeNoOrders, nil
	}
	log.Debug("parsed orders", zap.Any("orders", orders))

	accepted := &order.Accepted{
		ID:        p.ids.NewID(),
		Date:      p.ids.OrderDate(),
		ChatID:    msg.ChatID,
		ChatTitle: msg.ChatTitle,
		Sender:    msg.SenderUsername,
		SenderID:  msg.SenderID,
		MessageID: msg.MessageID,
		Orders:    orders,
	}
	if err := p.persist(ctx, accepted); err != nil {
		return "", err
	}
	log.Info("order stored",
		zap.String("order_id", accepted.ID),
		zap.Int("customers", len(orders)),
		zap.Int("items", accepted.ItemCount()))
	p.recorder.OrderAccepted(accepted.ItemCount())
	p.bus.Publish(bus.Event{Kind: bus.KindOrderAccepted, Timestamp: time.Now(), Payload: accepted})

	if p.mirror != nil {
		if err := p.mirror.AppendOrder(ctx, accepted); err != nil {
			p.recorder.MirrorFailed()
			if p.retry != nil {
				if qerr := p.retry.Enqueue(ctx, accepted); qerr != nil {
					log.Error("could not queue order for sheet retry", zap.Error(qerr))
				}
			}
			return "", fmt.Errorf("mirror order %s: %w", accepted.ID, err)
		}
	}

	if p.replier != nil {
		if err := p.replier.Reply(ctx, msg.ChatID, msg.MessageID, Acknowledgement(msg.SenderFirstName, accepted.ID)); err != nil {
			return "", fmt.Errorf("reply: %w", err)
		}
	}
	return OutcomeAccepted, nil
}

// persist stores the order header, item rows and tracking record together.
// The header carries the first customer's name.
func (p *Pipeline) persist(ctx context.Context, a *order.Accepted) error {
	header := &store.Order{
		OrderID:      a.ID,
		OrderDate:    a.Date,
		ChatID:       a.ChatID,
		ChatTitle:    a.ChatTitle,
		Sender:       a.Sender,
		SenderID:     a.SenderID,
		CustomerName: a.Orders[0].CustomerName,
	}
	items := make([]store.OrderItem, 0, a.ItemCount())
	for _, o := range a.Orders {
		for _, it := range o.Items {
			items = append(items, store.OrderItem{OrderID: a.ID, Name: it.Name, Quantity: it.Quantity})
		}
	}
	rec := &store.TrackingRecord{ChatID: a.ChatID, ChatTitle: a.ChatTitle, MsgID: a.MessageID}

	if err := p.store.SaveOrder(ctx, header, items, rec); err != nil {
		return fmt.Errorf("save order %s: %w", a.ID, err)
	}
	return nil
}

// Acknowledgement is the reply sent once an order is stored.
func Acknowledgement(firstName, orderID string) string {
	return fmt.Sprintf("Thank you so much for your support %s 😁 Your order has been noted down 🙂\n\nOrder-ID: %s", firstName, orderID)
}

type nopRecorder struct{}

func (nopRecorder) MessageHandled(Outcome) {}
func (nopRecorder) OrderAccepted(int)      {}
func (nopRecorder) MirrorFailed()          {}
