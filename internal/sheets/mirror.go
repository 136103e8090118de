package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/orderbot/internal/order"
	"go.uber.org/zap"
)

// DefaultTab receives orders from chats without a title.
const DefaultTab = "Uncategorised"

// Client is the spreadsheet API surface the mirror uses.
type Client interface {
	HasSheet(ctx context.Context, spreadsheetID, title string) (bool, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
	AppendRow(ctx context.Context, spreadsheetID, rng string, row []any) error
}

// Mirror appends accepted orders to a spreadsheet, one tab per group chat.
type Mirror struct {
	client        Client
	spreadsheetID string
	logger        *zap.Logger

	mu    sync.Mutex
	known map[string]bool
}

// NewMirror creates a mirror writing to spreadsheetID.
func NewMirror(client Client, spreadsheetID string, logger *zap.Logger) *Mirror {
	return &Mirror{
		client:        client,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		known:         make(map[string]bool),
	}
}

// AppendOrder writes a as a single row on the tab named after its chat,
// creating the tab on first use.
func (m *Mirror) AppendOrder(ctx context.Context, a *order.Accepted) error {
	tab := TabName(a.ChatTitle)
	log := m.logger.With(zap.String("tab", tab), zap.String("order_id", a.ID))

	if err := m.ensureTab(ctx, tab, log); err != nil {
		log.Error("error adding order to sheet", zap.Error(err))
		return err
	}
	if err := m.client.AppendRow(ctx, m.spreadsheetID, A1(tab), Row(a)); err != nil {
		// The tab may have been deleted; look it up again next time.
		m.forget(tab)
		log.Error("error adding order to sheet", zap.Error(err))
		return fmt.Errorf("append row: %w", err)
	}
	log.Info("order added to sheet")
	return nil
}

func (m *Mirror) ensureTab(ctx context.Context, tab string, log *zap.Logger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.known[tab] {
		return nil
	}

	exists, err := m.client.HasSheet(ctx, m.spreadsheetID, tab)
	if err != nil {
		return fmt.Errorf("check sheet %q: %w", tab, err)
	}
	if !exists {
		log.Info("sheet does not exist, creating")
		if err := m.client.AddSheet(ctx, m.spreadsheetID, tab); err != nil {
			return fmt.Errorf("create sheet %q: %w", tab, err)
		}
	}
	m.known[tab] = true
	return nil
}

func (m *Mirror) forget(tab string) {
	m.mu.Lock()
	delete(m.known, tab)
	m.mu.Unlock()
}

// TabName maps a chat title to its sheet tab.
func TabName(chatTitle string) string {
	if strings.TrimSpace(chatTitle) == "" {
		return DefaultTab
	}
	return chatTitle
}

// A1 returns the anchor range for appending to tab.
func A1(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!A1"
}

// Row flattens an order into date, order ID, sender, then each customer
// followed by that customer's item and quantity pairs.
func Row(a *order.Accepted) []any {
	row := []any{a.Date, a.ID, a.Sender}
	for _, o := range a.Orders {
		row = append(row, o.CustomerName)
		for _, it := range o.Items {
			row = append(row, it.Name, it.Quantity)
		}
	}
	return row
}

// Disabled is the mirror used when no spreadsheet is configured.
type Disabled struct {
	Logger *zap.Logger
}

// AppendOrder logs and skips the order.
func (d Disabled) AppendOrder(_ context.Context, a *order.Accepted) error {
	d.Logger.Debug("sheet mirror disabled, skipping", zap.String("order_id", a.ID))
	return nil
}
