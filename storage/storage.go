package storage

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/observatory"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
	"github.com/redinnovafp/backend/storage/database"
	inmemdb "github.com/redinnovafp/backend/storage/database/inmem"
	sqlxrepos "github.com/redinnovafp/backend/storage/database/sqlx"
	"github.com/redinnovafp/backend/storage/localstore"
)

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendMemory   = "memory"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Repositories groups the repositories of one storage backend.
type Repositories struct {
	Users       user.Repository
	Meetings    meeting.Repository
	Messages    message.Repository
	Forms       form.Repository
	Observatory observatory.Repository
	Settings    settings.Repository

	// SQL is only set for the postgres backend.
	SQL   *sql.DB
	close func() error
}

// Close releases the backend, flushing the local store.
func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

type (
	options struct {
		skipMigrations bool
	}

	Option func(o *options)
)

// WithoutMigrations leaves the postgres schema untouched.
func WithoutMigrations() Option {
	return func(o *options) { o.skipMigrations = true }
}

// Open sets up the repositories of the configured backend.
// The postgres database is created & migrated when needed.
func Open(conf *core.Config, opts ...Option) (*Repositories, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch conf.Storage.Backend {
	case BackendPostgres:
		return openPostgres(conf, o)
	case BackendLocal:
		store, err := localstore.Open(conf.Storage.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "opening local store")
		}
		repos := inmemRepositories(store.DB())
		repos.close = store.Flush
		return repos, nil
	case BackendMemory:
		return inmemRepositories(inmemdb.Open()), nil
	}
	return nil, errors.Wrap(ErrUnknownBackend, conf.Storage.Backend)
}

func openPostgres(conf *core.Config, o options) (*Repositories, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.OpenX(conf)
	if err != nil {
		return nil, err
	}
	if !o.skipMigrations {
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Repositories{
		Users:       sqlxrepos.NewUserRepository(db),
		Meetings:    sqlxrepos.NewMeetingRepository(db),
		Messages:    sqlxrepos.NewMessageRepository(db),
		Forms:       sqlxrepos.NewFormRepository(db),
		Observatory: sqlxrepos.NewObservatoryRepository(db),
		Settings:    sqlxrepos.NewSettingsRepository(db),
		SQL:         db.DB,
		close:       db.Close,
	}, nil
}

func inmemRepositories(db *inmemdb.DB) *Repositories {
	return &Repositories{
		Users:       inmemdb.NewUserRepository(db),
		Meetings:    inmemdb.NewMeetingRepository(db),
		Messages:    inmemdb.NewMessageRepository(db),
		Forms:       inmemdb.NewFormRepository(db),
		Observatory: inmemdb.NewObservatoryRepository(db),
		Settings:    inmemdb.NewSettingsRepository(db),
	}
}
