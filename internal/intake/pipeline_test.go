package intake

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/matheus3301/orderbot/internal/bus"
	"github.com/matheus3301/orderbot/internal/order"
	"github.com/matheus3301/orderbot/internal/store"
	"go.uber.org/zap"
)

type staticKeyword string

func (k staticKeyword) Keyword(context.Context) (string, error) { return string(k), nil }

type switchActivity bool

func (a switchActivity) Active() bool { return bool(a) }

type fakeMirror struct {
	calls []*order.Accepted
	err   error
}

func (m *fakeMirror) AppendOrder(_ context.Context, a *order.Accepted) error {
	m.calls = append(m.calls, a)
	return m.err
}

type reply struct {
	ChatID  int64
	ReplyTo int64
	Text    string
}

type fakeReplier struct {
	replies []reply
}

func (r *fakeReplier) Reply(_ context.Context, chatID, replyTo int64, text string) error {
	r.replies = append(r.replies, reply{chatID, replyTo, text})
	return nil
}

type countingRecorder struct {
	outcomes []Outcome
	items    int
	mirror   int
}

func (c *countingRecorder) MessageHandled(o Outcome) { c.outcomes = append(c.outcomes, o) }
func (c *countingRecorder) OrderAccepted(n int)      { c.items += n }
func (c *countingRecorder) MirrorFailed()            { c.mirror++ }

type fakeRetry struct {
	queued []string
}

func (r *fakeRetry) Enqueue(_ context.Context, a *order.Accepted) error {
	r.queued = append(r.queued, a.ID)
	return nil
}

type harness struct {
	db       *store.DB
	mirror   *fakeMirror
	replier  *fakeReplier
	recorder *countingRecorder
	retry    *fakeRetry
	bus      *bus.Bus
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newPipeline(t *testing.T, active bool, onlyLast bool) (*Pipeline, *harness) {
	t.Helper()
	h := &harness{
		db:       testDB(t),
		mirror:   &fakeMirror{},
		replier:  &fakeReplier{},
		recorder: &countingRecorder{},
		retry:    &fakeRetry{},
		bus:      bus.New(),
	}
	gen, err := order.NewGenerator(order.DefaultTimezone)
	if err != nil {
		t.Fatal(err)
	}
	gen.Clock = func() time.Time { return time.Date(2024, 10, 5, 4, 0, 0, 0, time.UTC) }

	p := NewPipeline(h.db, staticKeyword("Order"), switchActivity(active), gen, h.mirror, h.replier,
		Options{OnlyLast: onlyLast, Bus: h.bus, Recorder: h.recorder, Retry: h.retry}, zap.NewNop())
	return p, h
}

func msg(id int64, sender int64, text string) *Message {
	return &Message{
		Text:            text,
		ChatID:          -100200,
		ChatTitle:       "Bake Sale",
		SenderUsername:  "bob",
		SenderID:        sender,
		SenderFirstName: "Bob",
		MessageID:       id,
	}
}

const twoCustomers = "Order please\nAlice: coffee 2, tea\nBob: cake 1"

func TestHandleAcceptsAllBlocks(t *testing.T) {
	p, h := newPipeline(t, true, false)
	ctx := context.Background()

	outcome, err := p.Handle(ctx, msg(1, 42, twoCustomers))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if outcome != OutcomeAccepted {
		t.Fatalf("outcome = %s, want accepted", outcome)
	}

	if len(h.mirror.calls) != 1 {
		t.Fatalf("mirror calls = %d, want 1", len(h.mirror.calls))
	}
	acc := h.mirror.calls[0]
	if len(acc.Orders) != 2 || acc.Orders[0].CustomerName != "Alice" || acc.Orders[1].CustomerName != "Bob" {
		t.Errorf("orders = %+v", acc.Orders)
	}
	if !regexp.MustCompile(`^051024-\d{6}$`).MatchString(acc.ID) {
		t.Errorf("order id = %q", acc.ID)
	}

	items, err := h.db.ListOrderItems(ctx, acc.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []store.OrderItem{
		{OrderID: acc.ID, Name: "coffee", Quantity: 2},
		{OrderID: acc.ID, Name: "tea", Quantity: 1},
		{OrderID: acc.ID, Name: "cake", Quantity: 1},
	}
	if len(items) != len(want) {
		t.Fatalf("items = %+v, want %+v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}

	orders, err := h.db.FindOrdersBySender(ctx, -100200, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].CustomerName != "Alice" || orders[0].OrderDate != "05/10/24 12:00" {
		t.Errorf("stored orders = %+v", orders)
	}

	if len(h.replier.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(h.replier.replies))
	}
	r := h.replier.replies[0]
	if r.ReplyTo != 1 || r.Text != Acknowledgement("Bob", acc.ID) {
		t.Errorf("reply = %+v", r)
	}
	if h.recorder.items != 3 {
		t.Errorf("recorded items = %d, want 3", h.recorder.items)
	}
}

func TestHandleOnlyLastKeepsFinalBlock(t *testing.T) {
	p, h := newPipeline(t, true, true)
	ctx := context.Background()

	if _, err := p.Handle(ctx, msg(1, 42, twoCustomers)); err != nil {
		t.Fatal(err)
	}

	orders, err := h.db.FindOrdersBySender(ctx, -100200, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].CustomerName != "Bob" {
		t.Fatalf("stored orders = %+v, want Bob only", orders)
	}
	items, err := h.db.ListOrderItems(ctx, orders[0].OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Name != "cake" || items[0].Quantity != 1 {
		t.Errorf("items = %+v, want [cake 1]", items)
	}
}

func TestHandleDuplicateSenderIgnored(t *testing.T) {
	p, h := newPipeline(t, true, false)
	ctx := context.Background()

	if _, err := p.Handle(ctx, msg(1, 42, twoCustomers)); err != nil {
		t.Fatal(err)
	}
	outcome, err := p.Handle(ctx, msg(2, 42, "order\nCarol: bread 4"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeDuplicate {
		t.Errorf("outcome = %s, want duplicate", outcome)
	}

	n, err := h.db.CountOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("orders = %d, want 1", n)
	}
	if len(h.replier.replies) != 1 {
		t.Errorf("replies = %d, want only the first acknowledgement", len(h.replier.replies))
	}

	// A different sender in the same chat is still accepted.
	if outcome, _ := p.Handle(ctx, msg(3, 43, "order\nCarol: bread 4")); outcome != OutcomeAccepted {
		t.Errorf("other sender outcome = %s, want accepted", outcome)
	}
}

func TestHandleRedeliveryIsIgnored(t *testing.T) {
	p, h := newPipeline(t, true, false)
	ctx := context.Background()

	if _, err := p.Handle(ctx, msg(7, 42, twoCustomers)); err != nil {
		t.Fatal(err)
	}
	stored, err := h.db.FindOrdersBySender(ctx, -100200, 42)
	if err != nil || len(stored) != 1 {
		t.Fatalf("stored orders = %v, %v", stored, err)
	}
	itemsBefore, err := h.db.ListOrderItems(ctx, stored[0].OrderID)
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := p.Handle(ctx, msg(7, 42, twoCustomers))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeAlreadyParsed {
		t.Errorf("outcome = %s, want already_parsed", outcome)
	}
	if len(h.mirror.calls) != 1 || len(h.replier.replies) != 1 {
		t.Errorf("redelivery caused side effects: mirror=%d replies=%d", len(h.mirror.calls), len(h.replier.replies))
	}
	if n, _ := h.db.CountOrders(ctx); n != 1 {
		t.Errorf("orders after redelivery = %d, want 1", n)
	}
	itemsAfter, err := h.db.ListOrderItems(ctx, stored[0].OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if len(itemsAfter) != len(itemsBefore) {
		t.Errorf("items after redelivery = %d, want %d", len(itemsAfter), len(itemsBefore))
	}
}

func TestHandleInactiveIgnoresEverything(t *testing.T) {
	p, h := newPipeline(t, false, false)

	outcome, err := p.Handle(context.Background(), msg(1, 42, twoCustomers))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeInactive {
		t.Errorf("outcome = %s, want inactive", outcome)
	}
	if n, _ := h.db.CountOrders(context.Background()); n != 0 {
		t.Errorf("orders = %d, want 0", n)
	}
}

func TestHandleWithoutKeyword(t *testing.T) {
	p, h := newPipeline(t, true, false)

	outcome, err := p.Handle(context.Background(), msg(1, 42, "Alice: coffee 2"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeNoKeyword {
		t.Errorf("outcome = %s, want no_keyword", outcome)
	}
	if len(h.replier.replies) != 0 {
		t.Error("reply sent for message without keyword")
	}
}

func TestHandleKeywordButNoOrders(t *testing.T) {
	p, h := newPipeline(t, true, true)

	outcome, err := p.Handle(context.Background(), msg(1, 42, "who wants to ORDER lunch?\nanyone?"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeNoOrders {
		t.Errorf("outcome = %s, want no_orders", outcome)
	}
	if parsed, _ := h.db.IsMessageParsed(context.Background(), -100200, 1); parsed {
		t.Error("message without orders was marked parsed")
	}
}

// A mirror outage leaves the order stored but suppresses the acknowledgement.
func TestHandleMirrorFailure(t *testing.T) {
	p, h := newPipeline(t, true, false)
	h.mirror.err = errors.New("sheets unavailable")
	ctx := context.Background()

	outcome, err := p.Handle(ctx, msg(1, 42, twoCustomers))
	if err == nil {
		t.Fatal("Handle() expected mirror error")
	}
	if outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", outcome)
	}
	if n, _ := h.db.CountOrders(ctx); n != 1 {
		t.Errorf("orders = %d, want 1 (stored before mirroring)", n)
	}
	if len(h.replier.replies) != 0 {
		t.Error("acknowledgement sent despite mirror failure")
	}
	if h.recorder.mirror != 1 {
		t.Errorf("mirror failures = %d, want 1", h.recorder.mirror)
	}
	if len(h.retry.queued) != 1 {
		t.Errorf("queued for retry = %d, want 1", len(h.retry.queued))
	}
}

func TestHandlePublishesAcceptedEvent(t *testing.T) {
	p, h := newPipeline(t, true, false)
	ch, unsub := h.bus.Subscribe("order.", 4)
	defer unsub()

	if _, err := p.Handle(context.Background(), msg(1, 42, twoCustomers)); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		acc, ok := evt.Payload.(*order.Accepted)
		if !ok {
			t.Fatalf("payload type = %T", evt.Payload)
		}
		if acc.MessageID != 1 || acc.Sender != "bob" {
			t.Errorf("accepted = %+v", acc)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for order.accepted")
	}
}

type failingStore struct{ Store }

func (failingStore) IsMessageParsed(context.Context, int64, int64) (bool, error) {
	return false, errors.New("disk I/O error")
}

func TestHandleStoreErrorAborts(t *testing.T) {
	_, h := newPipeline(t, true, false)
	gen, _ := order.NewGenerator("")
	p := NewPipeline(failingStore{}, staticKeyword("order"), switchActivity(true), gen, h.mirror, h.replier, Options{}, zap.NewNop())

	if _, err := p.Handle(context.Background(), msg(1, 42, twoCustomers)); err == nil {
		t.Fatal("Handle() expected error")
	}
	if len(h.replier.replies) != 0 {
		t.Error("reply sent after store failure")
	}
}
