package settings

import (
	"time"

	"github.com/redinnovafp/backend/core/user"
)

// Meeting providers
const (
	ProviderJitsi = "jitsi"
	ProviderZoom  = "zoom"
	ProviderMeet  = "meet"

	DefaultMeetingServerURL = "https://meet.jit.si/"
)

type (
	NavbarColors struct {
		From string `json:"from"`
		To   string `json:"to"`
	}

	Colors struct {
		Primary   string       `json:"primary"`
		Secondary string       `json:"secondary"`
		Navbar    NavbarColors `json:"navbar"`
		Sidebar   string       `json:"sidebar"`
	}

	SMTPSettings struct {
		Host     string `json:"host" validate:"required"`
		Port     int    `json:"port" validate:"required,min=1,max=65535"`
		Secure   bool   `json:"secure"`
		User     string `json:"user"`
		Password string `json:"password"`
		From     string `json:"from" validate:"omitempty,email"`
	}

	MeetingSettings struct {
		Enabled         bool     `json:"enabled"`
		Provider        string   `json:"provider" validate:"required,oneof=jitsi zoom meet"`
		AllowedRoles    []string `json:"allowed_roles" validate:"omitempty,allroles"`
		MaxDuration     int      `json:"max_duration" validate:"min=0"` // minutes, 0 = unlimited
		MaxParticipants int      `json:"max_participants" validate:"min=0"`
		RequireApproval bool     `json:"require_approval"`
		AutoRecording   bool     `json:"auto_recording"`
		ServerURL       string   `json:"server_url" validate:"omitempty,url"`
		APIKey          string   `json:"api_key,omitempty"`
	}

	TwoFactorAuth struct {
		Enabled        bool     `json:"enabled"`
		Required       bool     `json:"required"`
		Methods        []string `json:"methods" validate:"omitempty,dive,oneof=email authenticator"`
		ValidityPeriod int      `json:"validity_period" validate:"min=0"` // days
	}

	SecuritySettings struct {
		TwoFactorAuth TwoFactorAuth `json:"two_factor_auth"`
	}

	MaintenanceSettings struct {
		Enabled      bool       `json:"enabled"`
		Message      string     `json:"message"`
		AllowedRoles []string   `json:"allowed_roles" validate:"omitempty,allroles"`
		PlannedEnd   *time.Time `json:"planned_end,omitempty"`
	}

	UpdateSettings struct {
		GithubRepo string     `json:"github_repo"`
		LastUpdate *time.Time `json:"last_update,omitempty"`
		AutoUpdate bool       `json:"auto_update"`
		Branch     string     `json:"branch"`
	}

	// AppSettings are the tenant wide settings managed by the general coordinators.
	AppSettings struct {
		ID           string              `json:"id"`
		Name         string              `json:"name" validate:"required,notblank"`
		Logo         string              `json:"logo"`
		Favicon      string              `json:"favicon"`
		Colors       Colors              `json:"colors"`
		SMTP         *SMTPSettings       `json:"smtp,omitempty" validate:"omitempty"`
		Meetings     *MeetingSettings    `json:"meetings,omitempty" validate:"omitempty"`
		Security     SecuritySettings    `json:"security"`
		Maintenance  MaintenanceSettings `json:"maintenance"`
		Updates      UpdateSettings      `json:"updates"`
		OpenAIAPIKey string              `json:"openai_api_key,omitempty"`
		AcademicYear string              `json:"active_academic_year"`
		UpdatedAt    time.Time           `json:"updated_at"`
	}
)

// Defaults returns the settings used until the first update.
func Defaults() AppSettings {
	return AppSettings{
		ID:      "default",
		Name:    "Red Innova FP",
		Logo:    "/logo.svg",
		Favicon: "/favicon.ico",
		Colors: Colors{
			Primary:   "#1e40af",
			Secondary: "#0ea5e9",
			Navbar:    NavbarColors{From: "#1e3a8a", To: "#1e40af"},
			Sidebar:   "#1e293b",
		},
		Security: SecuritySettings{
			TwoFactorAuth: TwoFactorAuth{Methods: []string{"email"}, ValidityPeriod: 30},
		},
		Maintenance: MaintenanceSettings{
			Message:      "El sistema se encuentra en mantenimiento. Disculpe las molestias.",
			AllowedRoles: []string{user.RoleGeneralCoordinator},
		},
		Updates: UpdateSettings{Branch: "main"},
	}
}

// DefaultMeetingSettings are applied when meeting settings are first enabled.
func DefaultMeetingSettings() MeetingSettings {
	return MeetingSettings{
		Enabled:         false,
		Provider:        ProviderJitsi,
		AllowedRoles:    []string{user.RoleGeneralCoordinator},
		MaxDuration:     120,
		MaxParticipants: 50,
		ServerURL:       DefaultMeetingServerURL,
	}
}

// MeetingServerURL is the base of generated meeting join URLs, always ending with "/".
func (s AppSettings) MeetingServerURL() string {
	if s.Meetings == nil || s.Meetings.ServerURL == "" {
		return DefaultMeetingServerURL
	}
	u := s.Meetings.ServerURL
	if u[len(u)-1] != '/' {
		u += "/"
	}
	return u
}

// CanAccessDuringMaintenance reports whether usr can use the app while maintenance is enabled.
func (s AppSettings) CanAccessDuringMaintenance(usr user.User) bool {
	if !s.Maintenance.Enabled {
		return true
	}
	return usr.HasAnyRole(s.Maintenance.AllowedRoles...)
}

// clone deep copies s so snapshots handed out never share mutable state.
func (s AppSettings) clone() AppSettings {
	c := s
	if s.SMTP != nil {
		smtp := *s.SMTP
		c.SMTP = &smtp
	}
	if s.Meetings != nil {
		m := *s.Meetings
		m.AllowedRoles = append([]string(nil), s.Meetings.AllowedRoles...)
		c.Meetings = &m
	}
	c.Security.TwoFactorAuth.Methods = append([]string(nil), s.Security.TwoFactorAuth.Methods...)
	c.Maintenance.AllowedRoles = append([]string(nil), s.Maintenance.AllowedRoles...)
	return c
}
