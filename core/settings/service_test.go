package settings

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/user"
)

type repoMock struct {
	stored  *AppSettings
	getErr  error
	saveErr error
	saves   int
}

func (r *repoMock) GetSettings(context.Context) (AppSettings, error) {
	if r.getErr != nil {
		return AppSettings{}, r.getErr
	}
	if r.stored == nil {
		return AppSettings{}, ErrNotFound
	}
	return *r.stored, nil
}

func (r *repoMock) SaveSettings(_ context.Context, s AppSettings) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.stored = &s
	return nil
}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func TestNewService(t *testing.T) {
	ctx := context.Background()

	svc, err := NewService(ctx, &repoMock{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), svc.Current())

	stored := Defaults()
	stored.Name = "Red Innova FP Euskadi"
	svc, err = NewService(ctx, &repoMock{stored: &stored}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Red Innova FP Euskadi", svc.Current().Name)

	_, err = NewService(ctx, &repoMock{getErr: errors.New("boom")}, nil)
	assert.Error(t, err)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	repo := &repoMock{}
	svc, err := NewService(ctx, repo, newValidator())
	require.NoError(t, err)

	t.Run("invalid settings are not applied", func(t *testing.T) {
		_, err := svc.Update(ctx, func(s *AppSettings) error {
			s.SMTP = &SMTPSettings{Host: "smtp.test.es", Port: 70000}
			return nil
		})
		assert.Error(t, err)
		assert.Nil(t, svc.Current().SMTP)
		assert.Zero(t, repo.saves)
	})

	t.Run("fn error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := svc.Update(ctx, func(s *AppSettings) error {
			s.Name = "changed"
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, Defaults().Name, svc.Current().Name)
	})

	t.Run("save error aborts", func(t *testing.T) {
		repo.saveErr = errors.New("disk full")
		defer func() { repo.saveErr = nil }()
		_, err := svc.Update(ctx, func(s *AppSettings) error {
			s.Name = "changed"
			return nil
		})
		assert.Error(t, err)
		assert.Equal(t, Defaults().Name, svc.Current().Name)
	})

	t.Run("applied & persisted", func(t *testing.T) {
		meetings := DefaultMeetingSettings()
		meetings.Enabled = true
		got, err := svc.Update(ctx, func(s *AppSettings) error {
			s.Meetings = &meetings
			return nil
		})
		require.NoError(t, err)
		assert.True(t, got.Meetings.Enabled)
		assert.False(t, got.UpdatedAt.IsZero())
		assert.Equal(t, 1, repo.saves)
		assert.True(t, repo.stored.Meetings.Enabled)
	})

	t.Run("snapshots are not shared", func(t *testing.T) {
		snap := svc.Current()
		snap.Meetings.AllowedRoles[0] = user.RoleManager
		snap.Maintenance.AllowedRoles = append(snap.Maintenance.AllowedRoles, user.RoleManager)
		assert.Equal(t, []string{user.RoleGeneralCoordinator}, svc.Current().Meetings.AllowedRoles)
		assert.Equal(t, []string{user.RoleGeneralCoordinator}, svc.Current().Maintenance.AllowedRoles)
	})
}

func TestService_Replace(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(ctx, &repoMock{}, newValidator())
	require.NoError(t, err)

	meetings := DefaultMeetingSettings()
	meetings.APIKey = "meet-key"
	_, err = svc.Update(ctx, func(s *AppSettings) error {
		s.OpenAIAPIKey = "sk-test"
		s.SMTP = &SMTPSettings{Host: "smtp.test.es", Port: 587, Password: "smtp-pwd"}
		s.Meetings = &meetings
		return nil
	})
	require.NoError(t, err)

	next := svc.Current()
	next.ID = "other"
	next.Name = "Red Innova"
	next.OpenAIAPIKey = ""
	next.SMTP.Password = ""
	next.Meetings.APIKey = ""
	got, err := svc.Replace(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "default", got.ID)
	assert.Equal(t, "Red Innova", got.Name)
	assert.Equal(t, "sk-test", got.OpenAIAPIKey)
	assert.Equal(t, "smtp-pwd", got.SMTP.Password)
	assert.Equal(t, "meet-key", got.Meetings.APIKey)

	next.OpenAIAPIKey = "sk-new"
	got, err = svc.Replace(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "sk-new", got.OpenAIAPIKey)
}

func TestAppSettings(t *testing.T) {
	coordinator := user.User{Roles: []string{user.RoleGeneralCoordinator}}
	manager := user.User{Roles: []string{user.RoleManager}}

	s := Defaults()
	assert.Equal(t, DefaultMeetingServerURL, s.MeetingServerURL())
	assert.True(t, s.CanAccessDuringMaintenance(manager))

	s.Meetings = &MeetingSettings{ServerURL: "https://meet.redinnovafp.es"}
	assert.Equal(t, "https://meet.redinnovafp.es/", s.MeetingServerURL())

	s.Maintenance.Enabled = true
	assert.False(t, s.CanAccessDuringMaintenance(manager))
	assert.True(t, s.CanAccessDuringMaintenance(coordinator))

	assert.Equal(t, "https://meet.redinnovafp.es/", Static(s).Current().MeetingServerURL())
}
