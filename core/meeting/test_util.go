package meeting

import (
	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/settings"
)

// NewServiceMock returns a Service that sends notifications synchronously.
func NewServiceMock(repo Repository, users UserDirectory, notifier *Dispatcher, sp settings.Provider, logger core.Logger) *Service {
	svc := NewService(repo, users, notifier, sp, logger)
	// run synchronously
	svc.dispatch = func(fn func()) { fn() }
	return svc
}
