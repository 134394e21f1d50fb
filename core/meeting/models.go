package meeting

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

type Type string

// Meeting types
const (
	TypeSubnet       Type = "subred"
	TypeCoordination Type = "coordinacion"
	TypeTraining     Type = "formacion"
	TypeProject      Type = "proyecto"
)

var Types = []Type{TypeSubnet, TypeCoordination, TypeTraining, TypeProject}

// Label is the human readable name of the meeting type used in notifications.
func (t Type) Label() string {
	switch t {
	case TypeSubnet:
		return "Reunión de Subred"
	case TypeCoordination:
		return "Coordinación"
	case TypeTraining:
		return "Formación"
	default:
		return "Proyecto"
	}
}

type Status string

// Meeting statuses
const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type InvitationStatus string

// Invitation statuses
const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

type Meeting struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Type         Type      `json:"type"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Organizer    string    `json:"organizer"`
	Participants []string  `json:"participants"`
	Agenda       []string  `json:"agenda"`
	Status       Status    `json:"status"`
	URL          string    `json:"meeting_url,omitempty"`
	CancelReason string    `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (m Meeting) Duration() time.Duration {
	return m.EndTime.Sub(m.StartTime)
}

func (m Meeting) HasParticipant(userID string) bool {
	return core.ContainsString(m.Participants, userID)
}

type Invitation struct {
	ID              string           `json:"id"`
	MeetingID       string           `json:"meeting_id"`
	UserID          string           `json:"user_id"`
	Status          InvitationStatus `json:"status"`
	ResponseMessage string           `json:"response_message,omitempty"`
	SentAt          time.Time        `json:"sent_at"`
	RespondedAt     *time.Time       `json:"responded_at,omitempty"`
}

type InvitationFilter struct {
	MeetingID string
	UserID    string
	Status    InvitationStatus
}

func (f InvitationFilter) Match(inv Invitation) bool {
	return (f.MeetingID == "" || inv.MeetingID == f.MeetingID) &&
		(f.UserID == "" || inv.UserID == f.UserID) &&
		(f.Status == "" || inv.Status == f.Status)
}

// NewMeeting contains information needed to create a new Meeting.
type NewMeeting struct {
	Title        string    `json:"title" validate:"required,notblank"`
	Description  string    `json:"description"`
	Type         Type      `json:"type" validate:"required,meetingtype"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required,gtefield=StartTime"`
	Participants []string  `json:"participants" validate:"omitempty,dive,required"`
	Agenda       []string  `json:"agenda"`
}

func (nm *NewMeeting) clean() {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.Participants = uniqueStrings(core.CleanStrings(nm.Participants))
	nm.Agenda = core.CleanStrings(nm.Agenda)
}

// Validate checks the draft & applies the meeting policy of the app settings for organizer.
// A nil policy means meetings are not restricted.
func (nm *NewMeeting) Validate(validate *validator.Validate, policy *settings.MeetingSettings, organizer user.User) error {
	nm.clean()
	if err := validate.Struct(nm); err != nil {
		return err
	}
	return checkPolicy(policy, organizer, nm.StartTime, nm.EndTime, len(nm.Participants))
}

// ScheduleMeeting is a NewMeeting with an optional recurrence.
type ScheduleMeeting struct {
	NewMeeting
	Recurrence *Recurrence `json:"recurrence" validate:"omitempty"`
}

func (sm *ScheduleMeeting) Validate(validate *validator.Validate, policy *settings.MeetingSettings, organizer user.User) error {
	if err := sm.NewMeeting.Validate(validate, policy, organizer); err != nil {
		return err
	}
	if sm.Recurrence != nil {
		return sm.Recurrence.Validate()
	}
	return nil
}

// UpdateMeeting defines what information may be provided to modify an existing Meeting.
// nil fields are left untouched.
type UpdateMeeting struct {
	Title        *string    `json:"title" validate:"omitempty,notblank"`
	Description  *string    `json:"description"`
	Type         *Type      `json:"type" validate:"omitempty,meetingtype"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Participants []string   `json:"participants" validate:"omitempty,dive,required"`
	Agenda       []string   `json:"agenda"`
	URL          *string    `json:"meeting_url" validate:"omitempty,url"`
}

func (um *UpdateMeeting) Validate(validate *validator.Validate, orig Meeting, policy *settings.MeetingSettings, organizer user.User) error {
	if um.Title != nil {
		title := core.CleanString(*um.Title)
		um.Title = &title
	}
	if um.Description != nil {
		desc := core.CleanString(*um.Description)
		um.Description = &desc
	}
	if um.Participants != nil {
		um.Participants = uniqueStrings(core.CleanStrings(um.Participants))
	}
	if um.Agenda != nil {
		um.Agenda = core.CleanStrings(um.Agenda)
	}
	if err := validate.Struct(um); err != nil {
		return err
	}

	merged := um.apply(orig)
	if merged.EndTime.Before(merged.StartTime) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: "end_time must be after start_time"})
	}
	return checkPolicy(policy, organizer, merged.StartTime, merged.EndTime, len(merged.Participants))
}

// apply returns m merged with the set fields of um.
func (um UpdateMeeting) apply(m Meeting) Meeting {
	if um.Title != nil {
		m.Title = *um.Title
	}
	if um.Description != nil {
		m.Description = *um.Description
	}
	if um.Type != nil {
		m.Type = *um.Type
	}
	if um.StartTime != nil {
		m.StartTime = um.StartTime.UTC()
	}
	if um.EndTime != nil {
		m.EndTime = um.EndTime.UTC()
	}
	if um.Participants != nil {
		m.Participants = um.Participants
	}
	if um.Agenda != nil {
		m.Agenda = um.Agenda
	}
	if um.URL != nil {
		m.URL = *um.URL
	}
	return m
}

// trackedChange is a field whose modification is announced to the participants.
type trackedChange struct {
	label   string
	changed func(old, new Meeting) bool
}

// trackedChanges lists the notification-worthy fields, in announcement order.
var trackedChanges = []trackedChange{
	{label: "Fecha/hora actualizada", changed: func(o, n Meeting) bool { return !o.StartTime.Equal(n.StartTime) }},
	{label: "Título actualizado", changed: func(o, n Meeting) bool { return o.Title != n.Title }},
	{label: "Descripción actualizada", changed: func(o, n Meeting) bool { return o.Description != n.Description }},
}

// Changes lists the notification-worthy differences between old and new.
func Changes(old, new Meeting) []string {
	var changes []string
	for _, tc := range trackedChanges {
		if tc.changed(old, new) {
			changes = append(changes, tc.label)
		}
	}
	return changes
}

type InvitationResponse struct {
	Accept  bool   `json:"accept"`
	Message string `json:"message"`
}

type SendInvitations struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
}

type CancelMeeting struct {
	Reason string `json:"reason"`
}

func checkPolicy(policy *settings.MeetingSettings, organizer user.User, start, end time.Time, participants int) error {
	if policy == nil {
		return nil
	}
	if !policy.Enabled {
		return core.NewValidationError(ErrMeetingsDisabled)
	}
	if !organizer.HasAnyRole(policy.AllowedRoles...) {
		return core.NewValidationError(ErrRoleNotAllowed)
	}
	if policy.MaxDuration > 0 && end.Sub(start) > time.Duration(policy.MaxDuration)*time.Minute {
		return core.NewValidationError(nil, core.FieldError{
			Field: "end_time",
			Error: fmt.Sprintf("meetings cannot last more than %d minutes", policy.MaxDuration),
		})
	}
	if policy.MaxParticipants > 0 && participants > policy.MaxParticipants {
		return core.NewValidationError(nil, core.FieldError{
			Field: "participants",
			Error: fmt.Sprintf("meetings cannot have more than %d participants", policy.MaxParticipants),
		})
	}
	return nil
}

func uniqueStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ss))
	unique := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		unique = append(unique, s)
	}
	return unique
}
