package main

import (
	dig_container "github.com/redinnovafp/backend/apps/api/di/dig"
	echoapi "github.com/redinnovafp/backend/apps/api/echo"
	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/storage"
)

func startWithDig() {
	c := dig_container.New(core.NewConfig)

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		repos *storage.Repositories,
		server *echoapi.Server,
	) {
		serve(conf, apiLogger, repos, server)
	}))
}
