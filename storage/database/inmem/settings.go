package inmemdb

import (
	"context"

	"github.com/redinnovafp/backend/core/settings"
)

type settingsRepository struct {
	db *DB
}

var _ settings.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db *DB) settings.Repository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) GetSettings(_ context.Context) (settings.AppSettings, error) {
	repo.db.singleton.mu.RLock()
	defer repo.db.singleton.mu.RUnlock()
	if repo.db.singleton.settings == nil {
		return settings.AppSettings{}, settings.ErrNotFound
	}
	return *repo.db.singleton.settings, nil
}

func (repo *settingsRepository) SaveSettings(_ context.Context, s settings.AppSettings) error {
	repo.db.singleton.mu.Lock()
	repo.db.singleton.settings = &s
	repo.db.singleton.mu.Unlock()
	return repo.db.changed(AppStorage)
}
