package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	settingKeyword = "keyword"
	settingAdmins  = "admins"
)

// Settings keeps the runtime bot settings (keyword and admin allow-list) in
// the settings table.
type Settings struct {
	db *DB
}

// NewSettings returns a settings service backed by db.
func NewSettings(db *DB) *Settings {
	return &Settings{db: db}
}

func (s *Settings) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Settings) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// Keyword returns the trigger keyword, or "" when unset.
func (s *Settings) Keyword(ctx context.Context) (string, error) {
	v, _, err := s.get(ctx, settingKeyword)
	return v, err
}

// SetKeyword replaces the trigger keyword.
func (s *Settings) SetKeyword(ctx context.Context, keyword string) error {
	return s.put(ctx, settingKeyword, keyword)
}

// Admins returns the usernames allowed to run administrative commands.
func (s *Settings) Admins(ctx context.Context) ([]string, error) {
	v, ok, err := s.get(ctx, settingAdmins)
	if err != nil || !ok {
		return nil, err
	}
	var admins []string
	if err := json.Unmarshal([]byte(v), &admins); err != nil {
		return nil, fmt.Errorf("decode admins: %w", err)
	}
	return admins, nil
}

// SetAdmins replaces the admin allow-list.
func (s *Settings) SetAdmins(ctx context.Context, admins []string) error {
	if admins == nil {
		admins = []string{}
	}
	data, err := json.Marshal(admins)
	if err != nil {
		return fmt.Errorf("encode admins: %w", err)
	}
	return s.put(ctx, settingAdmins, string(data))
}

// Seed stores keyword and admins only for keys that have never been set.
func (s *Settings) Seed(ctx context.Context, keyword string, admins []string) error {
	if _, ok, err := s.get(ctx, settingKeyword); err != nil {
		return err
	} else if !ok {
		if err := s.SetKeyword(ctx, keyword); err != nil {
			return err
		}
	}
	if _, ok, err := s.get(ctx, settingAdmins); err != nil {
		return err
	} else if !ok {
		return s.SetAdmins(ctx, admins)
	}
	return nil
}
