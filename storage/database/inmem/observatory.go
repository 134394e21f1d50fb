package inmemdb

import (
	"context"

	"github.com/redinnovafp/backend/core/observatory"
)

type observatoryRepository struct {
	db *DB
}

var _ observatory.Repository = (*observatoryRepository)(nil)

func NewObservatoryRepository(db *DB) observatory.Repository {
	return &observatoryRepository{db: db}
}

func (repo *observatoryRepository) CreateEntry(_ context.Context, e observatory.Entry) (observatory.Entry, error) {
	repo.db.observation.upsert(e.ID, e)
	return e, repo.db.changed(AppStorage)
}

func (repo *observatoryRepository) GetEntryByID(_ context.Context, id string) (observatory.Entry, error) {
	if e, ok := repo.db.observation.get(id); ok {
		return e, nil
	}
	return observatory.Entry{}, observatory.ErrNotFound
}

func (repo *observatoryRepository) QueryAllEntries(_ context.Context) ([]observatory.Entry, error) {
	return repo.db.observation.filter(nil), nil
}

func (repo *observatoryRepository) UpdateEntry(_ context.Context, e observatory.Entry) (observatory.Entry, error) {
	if !repo.db.observation.update(e.ID, e) {
		return observatory.Entry{}, observatory.ErrNotFound
	}
	return e, repo.db.changed(AppStorage)
}

func (repo *observatoryRepository) DeleteEntry(_ context.Context, id string) error {
	if !repo.db.observation.delete(id) {
		return observatory.ErrNotFound
	}
	return repo.db.changed(AppStorage)
}

func (repo *observatoryRepository) GetConfig(_ context.Context) (observatory.Config, error) {
	repo.db.singleton.mu.RLock()
	defer repo.db.singleton.mu.RUnlock()
	if repo.db.singleton.observatory == nil {
		return observatory.Config{}, observatory.ErrConfigNotFound
	}
	return *repo.db.singleton.observatory, nil
}

func (repo *observatoryRepository) SaveConfig(_ context.Context, conf observatory.Config) error {
	repo.db.singleton.mu.Lock()
	repo.db.singleton.observatory = &conf
	repo.db.singleton.mu.Unlock()
	return repo.db.changed(AppStorage)
}
