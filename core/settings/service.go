package settings

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound = errors.New("settings not found")
)

type (
	// Provider hands out the active settings snapshot. Consumers call Current at use time.
	Provider interface {
		Current() AppSettings
	}

	Repository interface {
		// GetSettings returns ErrNotFound when settings were never saved.
		GetSettings(ctx context.Context) (AppSettings, error)
		SaveSettings(ctx context.Context, s AppSettings) error
	}

	Service struct {
		mu       sync.RWMutex
		current  AppSettings
		repo     Repository
		validate *validator.Validate
	}
)

var _ Provider = (*Service)(nil)

// NewService loads the stored settings, falling back to Defaults.
func NewService(ctx context.Context, repo Repository, validate *validator.Validate) (*Service, error) {
	s, err := repo.GetSettings(ctx)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return nil, errors.Wrap(err, "loading settings")
		}
		s = Defaults()
	}
	return &Service{current: s, repo: repo, validate: validate}, nil
}

func (svc *Service) Current() AppSettings {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.current.clone()
}

// Update applies fn on a copy of the current settings, validates & persists the result then makes it current.
func (svc *Service) Update(ctx context.Context, fn func(s *AppSettings) error) (AppSettings, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	next := svc.current.clone()
	if err := fn(&next); err != nil {
		return AppSettings{}, err
	}
	if svc.validate != nil {
		if err := svc.validate.Struct(next); err != nil {
			return AppSettings{}, err
		}
	}
	next.UpdatedAt = NowFunc().UTC()
	if err := svc.repo.SaveSettings(ctx, next); err != nil {
		return AppSettings{}, errors.Wrap(err, "saving settings")
	}
	svc.current = next
	return next.clone(), nil
}

// Replace makes s the current settings, keeping secrets that were sent empty.
func (svc *Service) Replace(ctx context.Context, s AppSettings) (AppSettings, error) {
	return svc.Update(ctx, func(cur *AppSettings) error {
		if s.OpenAIAPIKey == "" {
			s.OpenAIAPIKey = cur.OpenAIAPIKey
		}
		if s.SMTP != nil && s.SMTP.Password == "" && cur.SMTP != nil {
			s.SMTP.Password = cur.SMTP.Password
		}
		if s.Meetings != nil && s.Meetings.APIKey == "" && cur.Meetings != nil {
			s.Meetings.APIKey = cur.Meetings.APIKey
		}
		s.ID = cur.ID
		*cur = s
		return nil
	})
}

// Static is a fixed Provider.
type Static AppSettings

func (s Static) Current() AppSettings { return AppSettings(s).clone() }
