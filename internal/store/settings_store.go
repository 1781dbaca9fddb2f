package store

import (
	"context"

	"merchantpay/internal/config"
)

type SettingsStore struct {
	db DB
}

func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

type settingRow struct {
	Key   string `db:"key"`
	Kind  string `db:"kind"`
	Value string `db:"value"`
}

// Get returns the parsed setting, or a not_found error when the key is unset.
func (s *SettingsStore) Get(ctx context.Context, key string) (config.Setting, error) {
	var row settingRow
	err := s.db.GetContext(ctx, &row, `SELECT key, kind, value FROM platform_settings WHERE key = $1`, key)
	if err != nil {
		return config.Setting{}, notFound(err, "setting")
	}
	return config.ParseSetting(row.Key, config.SettingKind(row.Kind), row.Value)
}

func (s *SettingsStore) Put(ctx context.Context, tx Execer, key string, kind config.SettingKind, value string) error {
	if _, err := config.ParseSetting(key, kind, value); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO platform_settings (key, kind, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET kind = EXCLUDED.kind, value = EXCLUDED.value, updated_at = NOW()
	`, key, string(kind), value)
	return err
}
