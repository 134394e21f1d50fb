package core

import "context"

type (
	// Completion is a single system + user prompt exchange with a chat completion model.
	Completion struct {
		APIKey string // overrides the configured key when set
		System string
		User   string
	}

	// Completer is any service able to run a chat completion.
	Completer interface {
		Complete(ctx context.Context, c Completion) (string, error)
	}
)
