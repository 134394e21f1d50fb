package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/redinnovafp/backend/core/observatory"
	"github.com/redinnovafp/backend/core/settings"
)

type (
	observatoryRepository struct {
		docs documents
	}

	settingsRepository struct {
		docs documents
	}
)

var (
	_ observatory.Repository = (*observatoryRepository)(nil)
	_ settings.Repository    = (*settingsRepository)(nil)
)

func NewObservatoryRepository(db *sqlx.DB) observatory.Repository {
	return &observatoryRepository{docs: documents{db: db}}
}

func (repo observatoryRepository) CreateEntry(ctx context.Context, e observatory.Entry) (observatory.Entry, error) {
	return e, repo.docs.upsert(ctx, kindObservation, documentKey{id: e.ID, parentID: e.SubnetID, ownerID: e.CreatedBy}, e)
}

func (repo observatoryRepository) GetEntryByID(ctx context.Context, id string) (observatory.Entry, error) {
	var e observatory.Entry
	if err := repo.docs.get(ctx, kindObservation, id, &e); err != nil {
		return observatory.Entry{}, trap(err, observatory.ErrNotFound)
	}
	return e, nil
}

func (repo observatoryRepository) QueryAllEntries(ctx context.Context) ([]observatory.Entry, error) {
	entries := make([]observatory.Entry, 0)
	err := repo.docs.list(ctx, kindObservation, "", "", func(data types.JSONText) error {
		var e observatory.Entry
		if err := data.Unmarshal(&e); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func (repo observatoryRepository) UpdateEntry(ctx context.Context, e observatory.Entry) (observatory.Entry, error) {
	return e, trap(repo.docs.update(ctx, kindObservation, e.ID, e), observatory.ErrNotFound)
}

func (repo observatoryRepository) DeleteEntry(ctx context.Context, id string) error {
	deleted, err := repo.docs.delete(ctx, kindObservation, id)
	if err == nil && !deleted {
		return observatory.ErrNotFound
	}
	return err
}

func (repo observatoryRepository) GetConfig(ctx context.Context) (observatory.Config, error) {
	var conf observatory.Config
	if err := repo.docs.get(ctx, kindObservatoryConfig, singletonID, &conf); err != nil {
		return observatory.Config{}, trap(err, observatory.ErrConfigNotFound)
	}
	return conf, nil
}

func (repo observatoryRepository) SaveConfig(ctx context.Context, conf observatory.Config) error {
	return repo.docs.upsert(ctx, kindObservatoryConfig, documentKey{id: singletonID}, conf)
}

func NewSettingsRepository(db *sqlx.DB) settings.Repository {
	return &settingsRepository{docs: documents{db: db}}
}

func (repo settingsRepository) GetSettings(ctx context.Context) (settings.AppSettings, error) {
	var s settings.AppSettings
	if err := repo.docs.get(ctx, kindSettings, singletonID, &s); err != nil {
		return settings.AppSettings{}, trap(err, settings.ErrNotFound)
	}
	return s, nil
}

func (repo settingsRepository) SaveSettings(ctx context.Context, s settings.AppSettings) error {
	return repo.docs.upsert(ctx, kindSettings, documentKey{id: singletonID}, s)
}
