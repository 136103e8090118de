package store

import "context"

// IsMessageParsed reports whether a tracking row exists for the message.
func (db *DB) IsMessageParsed(ctx context.Context, chatID, msgID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM message_tracking WHERE chat_id = ? AND msg_id = ?)`,
		chatID, msgID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
