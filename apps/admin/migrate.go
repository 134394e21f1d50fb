package main

import (
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/storage/database"
)

var (
	gooseRunFunc = database.RunMigrations // mockable

	errNoSQLDatabase = errors.New("migrations require the postgres storage backend")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}
