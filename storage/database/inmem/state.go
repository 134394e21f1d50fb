package inmemdb

import (
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/observatory"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

type (
	MeetingState struct {
		Meetings    []meeting.Meeting    `json:"meetings"`
		Invitations []meeting.Invitation `json:"invitations"`
	}

	FormState struct {
		Forms           []form.Form           `json:"forms"`
		Responses       []form.Response       `json:"responses"`
		ReportTemplates []form.ReportTemplate `json:"report_templates"`
		Reports         []form.Report         `json:"reports"`
	}

	AppState struct {
		Users             []UserRecord          `json:"users"`
		Messages          []message.Message     `json:"messages"`
		Observations      []observatory.Entry   `json:"observations"`
		ObservatoryConfig *observatory.Config   `json:"observatory_config,omitempty"`
		Settings          *settings.AppSettings `json:"settings,omitempty"`
	}

	// UserRecord persists the password hash that user.User hides from JSON.
	UserRecord struct {
		user.User
		PasswordHash []byte `json:"password_hash"`
	}
)

func (db *DB) MeetingState() MeetingState {
	return MeetingState{
		Meetings:    db.meeting.filter(nil),
		Invitations: db.invitation.filter(nil),
	}
}

func (db *DB) RestoreMeetingState(s MeetingState) {
	db.meeting.replace(s.Meetings, func(m meeting.Meeting) string { return m.ID })
	db.invitation.replace(s.Invitations, func(inv meeting.Invitation) string { return inv.ID })
}

func (db *DB) FormState() FormState {
	return FormState{
		Forms:           db.form.filter(nil),
		Responses:       db.response.filter(nil),
		ReportTemplates: db.template.filter(nil),
		Reports:         db.report.filter(nil),
	}
}

func (db *DB) RestoreFormState(s FormState) {
	db.form.replace(s.Forms, func(f form.Form) string { return f.ID })
	db.response.replace(s.Responses, func(r form.Response) string { return r.ID })
	db.template.replace(s.ReportTemplates, func(t form.ReportTemplate) string { return t.FormID })
	db.report.replace(s.Reports, func(r form.Report) string { return r.ID })
}

func (db *DB) AppState() AppState {
	users := db.user.filter(nil)
	records := make([]UserRecord, 0, len(users))
	for _, usr := range users {
		records = append(records, UserRecord{User: usr, PasswordHash: usr.PasswordHash})
	}

	db.singleton.mu.RLock()
	defer db.singleton.mu.RUnlock()
	return AppState{
		Users:             records,
		Messages:          db.message.filter(nil),
		Observations:      db.observation.filter(nil),
		ObservatoryConfig: db.singleton.observatory,
		Settings:          db.singleton.settings,
	}
}

func (db *DB) RestoreAppState(s AppState) {
	users := make([]user.User, 0, len(s.Users))
	for _, rec := range s.Users {
		usr := rec.User
		usr.PasswordHash = rec.PasswordHash
		users = append(users, usr)
	}
	db.user.replace(users, func(u user.User) string { return u.ID })
	db.message.replace(s.Messages, func(m message.Message) string { return m.ID })
	db.observation.replace(s.Observations, func(e observatory.Entry) string { return e.ID })

	db.singleton.mu.Lock()
	db.singleton.observatory = s.ObservatoryConfig
	db.singleton.settings = s.Settings
	db.singleton.mu.Unlock()
}
