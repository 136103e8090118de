package store

import (
	"context"
	"database/sql"
	"time"
)

// Mirror outbox statuses.
const (
	OutboxQueued = "queued"
	OutboxDone   = "done"
	OutboxFailed = "failed"
)

// OutboxEntry is an order waiting to be re-sent to the spreadsheet.
type OutboxEntry struct {
	ID           int64
	OrderID      string
	Payload      []byte
	Status       string
	Attempts     int
	ErrorMessage sql.NullString
}

// QueueMirror adds an order to the mirror outbox. Queuing an order that is
// already present is a no-op.
func (db *DB) QueueMirror(ctx context.Context, orderID string, payload []byte) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO mirror_outbox (order_id, payload, status, created_at, updated_at)
		VALUES (?, ?, 'queued', ?, ?)
		ON CONFLICT(order_id) DO NOTHING`,
		orderID, string(payload), now, now)
	return err
}

// PendingMirror returns up to limit queued entries, oldest first.
func (db *DB) PendingMirror(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, order_id, payload, status, attempts, error_message
		FROM mirror_outbox WHERE status = 'queued' ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var payload string
		if err := rows.Scan(&e.ID, &e.OrderID, &payload, &e.Status, &e.Attempts, &e.ErrorMessage); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkMirrorDone records a successful re-send.
func (db *DB) MarkMirrorDone(ctx context.Context, orderID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE mirror_outbox SET status = 'done', attempts = attempts + 1, error_message = NULL, updated_at = ?
		WHERE order_id = ?`, time.Now().UnixMilli(), orderID)
	return err
}

// MarkMirrorAttempt records a failed attempt. The entry stays queued until
// maxAttempts is reached, then moves to failed.
func (db *DB) MarkMirrorAttempt(ctx context.Context, orderID, errMsg string, maxAttempts int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE mirror_outbox SET
			attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'queued' END,
			error_message = ?,
			updated_at = ?
		WHERE order_id = ?`, maxAttempts, errMsg, time.Now().UnixMilli(), orderID)
	return err
}
