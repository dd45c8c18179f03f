package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/keemdrivingschool/keem/core/settings"
)

type settingsRepository struct {
	repository
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *sqlx.DB) *settingsRepository {
	return &settingsRepository{repository{db: db}}
}

func (repo settingsRepository) ListSettings(ctx context.Context) ([]settings.Setting, error) {
	list := make([]settings.Setting, 0)
	err := repo.selectAll(ctx, &list, psql.Select("*").From("setting").OrderBy("key"), "listing settings")
	return list, err
}

func (repo settingsRepository) UpsertSetting(ctx context.Context, s settings.Setting) (settings.Setting, error) {
	var saved settings.Setting
	b := psql.Insert("setting").
		Columns("key", "value", "updated_at").
		Values(s.Key, s.Value, s.UpdatedAt).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at RETURNING *")
	err := repo.get(ctx, &saved, b, nil, "saving setting")
	return saved, err
}
