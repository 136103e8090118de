package store

import (
	"context"
	"fmt"
	"time"
)

// SaveOrder writes the order, its items and the message tracking row in a
// single transaction. Nothing is written if any statement fails.
func (db *DB) SaveOrder(ctx context.Context, o *Order, items []OrderItem, rec *TrackingRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (order_id, order_date, chat_id, chat_title, msg_sender, msg_sender_id, customer_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.OrderDate, o.ChatID, o.ChatTitle, o.Sender, o.SenderID, o.CustomerName, now)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		o.ID = id
	}

	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, item_name, item_qty) VALUES (?, ?, ?)`,
			o.OrderID, it.Name, it.Quantity); err != nil {
			return fmt.Errorf("insert order item %q: %w", it.Name, err)
		}
	}

	if rec != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO message_tracking (chat_id, chat_title, msg_id, created_at) VALUES (?, ?, ?, ?)`,
			rec.ChatID, rec.ChatTitle, rec.MsgID, now); err != nil {
			return fmt.Errorf("insert message tracking: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

// FindOrdersBySender returns every order previously placed by senderID in chatID.
func (db *DB) FindOrdersBySender(ctx context.Context, chatID, senderID int64) ([]Order, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, order_id, order_date, chat_id, chat_title, msg_sender, msg_sender_id, customer_name
		FROM orders
		WHERE chat_id = ? AND msg_sender_id = ?
		ORDER BY id ASC`, chatID, senderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderID, &o.OrderDate, &o.ChatID, &o.ChatTitle, &o.Sender, &o.SenderID, &o.CustomerName); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListOrderItems returns the items stored for orderID in insertion order.
func (db *DB) ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT order_id, item_name, item_qty FROM order_items WHERE order_id = ? ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.Name, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CountOrders returns the number of stored orders.
func (db *DB) CountOrders(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n)
	return n, err
}
