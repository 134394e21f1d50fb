package meeting

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func fieldErr(field, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
}

func TestNewMeeting_Validate(t *testing.T) {
	validate := newValidator()
	coordinator := user.User{ID: "c", Roles: []string{user.RoleGeneralCoordinator}}
	manager := user.User{ID: "m", Roles: []string{user.RoleManager}}

	policy := settings.DefaultMeetingSettings()
	policy.Enabled = true
	policy.MaxDuration = 60
	policy.MaxParticipants = 2
	disabled := settings.DefaultMeetingSettings()

	start := date(2030, 1, 1, 10)
	draft := func(minutes int, participants ...string) NewMeeting {
		return NewMeeting{
			Title:        "  Coordinación  ",
			Type:         TypeCoordination,
			StartTime:    start,
			EndTime:      start.Add(time.Duration(minutes) * time.Minute),
			Participants: participants,
		}
	}

	tests := []struct {
		name      string
		nm        NewMeeting
		policy    *settings.MeetingSettings
		organizer user.User
		wantErr   error
	}{
		{name: "no policy", nm: draft(600, "a", "b", "c"), organizer: manager},
		{name: "disabled", nm: draft(30), policy: &disabled, organizer: coordinator, wantErr: core.NewValidationError(ErrMeetingsDisabled)},
		{name: "role not allowed", nm: draft(30), policy: &policy, organizer: manager, wantErr: core.NewValidationError(ErrRoleNotAllowed)},
		{name: "too long", nm: draft(61), policy: &policy, organizer: coordinator, wantErr: fieldErr("end_time", "meetings cannot last more than 60 minutes")},
		{name: "too many participants", nm: draft(30, "a", "b", "c"), policy: &policy, organizer: coordinator, wantErr: fieldErr("participants", "meetings cannot have more than 2 participants")},
		{name: "duplicated participants", nm: draft(60, "a", " b ", "a", "b"), policy: &policy, organizer: coordinator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nm.Validate(validate, tt.policy, tt.organizer)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Coordinación", tt.nm.Title)
		})
	}

	t.Run("invalid type", func(t *testing.T) {
		nm := draft(30)
		nm.Type = "tertulia"
		assert.Error(t, nm.Validate(validate, nil, coordinator))
	})
	t.Run("blank title", func(t *testing.T) {
		nm := draft(30)
		nm.Title = "   "
		assert.Error(t, nm.Validate(validate, nil, coordinator))
	})
}

func TestUpdateMeeting_Validate(t *testing.T) {
	validate := newValidator()
	orig := Meeting{
		ID:        "m1",
		Title:     "Coordinación",
		Type:      TypeCoordination,
		StartTime: date(2030, 1, 1, 10),
		EndTime:   date(2030, 1, 1, 11),
	}
	before := date(2030, 1, 1, 9)
	later := date(2030, 1, 1, 13)

	t.Run("end before the kept start", func(t *testing.T) {
		um := UpdateMeeting{EndTime: &before}
		assert.Equal(t, fieldErr("end_time", "end_time must be after start_time"), um.Validate(validate, orig, nil, user.User{}))
	})
	t.Run("start moved with end", func(t *testing.T) {
		um := UpdateMeeting{StartTime: &before, EndTime: &later}
		require.NoError(t, um.Validate(validate, orig, nil, user.User{}))
		merged := um.apply(orig)
		assert.Equal(t, before, merged.StartTime)
		assert.Equal(t, "Coordinación", merged.Title)
	})
}

func TestChanges(t *testing.T) {
	old := Meeting{Title: "A", Description: "d", StartTime: date(2030, 1, 1, 10), Agenda: []string{"x"}}

	tests := []struct {
		name   string
		mutate func(m *Meeting)
		want   []string
	}{
		{name: "nothing", mutate: func(m *Meeting) {}},
		{name: "untracked field", mutate: func(m *Meeting) { m.Agenda = []string{"y"} }},
		{name: "title", mutate: func(m *Meeting) { m.Title = "B" }, want: []string{"Título actualizado"}},
		{
			name: "everything",
			mutate: func(m *Meeting) {
				m.Title = "B"
				m.Description = "e"
				m.StartTime = m.StartTime.Add(time.Hour)
			},
			want: []string{"Fecha/hora actualizada", "Título actualizado", "Descripción actualizada"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := old
			tt.mutate(&m)
			assert.Equal(t, tt.want, Changes(old, m))
		})
	}
}
