package inmemdb

import (
	"context"
	"sort"

	"github.com/keemdrivingschool/keem/core/settings"
)

type settingsRepository struct {
	db *DB
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) ListSettings(_ context.Context) ([]settings.Setting, error) {
	list := make([]settings.Setting, 0)
	repo.db.read(func(t *tables) {
		for _, s := range t.settings {
			list = append(list, s)
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

func (repo *settingsRepository) UpsertSetting(ctx context.Context, s settings.Setting) (settings.Setting, error) {
	_ = repo.db.write(ctx, func(t *tables) error {
		t.settings[s.Key] = s
		return nil
	})
	return s, nil
}
