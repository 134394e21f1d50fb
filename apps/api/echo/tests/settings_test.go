package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/redinnovafp/backend/apps/api/echo"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
	emailsvc "github.com/redinnovafp/backend/services/email"
)

func Test_settingsAPI(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "Eva", "eva", user.RoleGeneralCoordinator)
	manager := app.createUser(t, "Ana", "ana", user.RoleManager)
	adminToken, mgrToken := app.token(t, admin), app.token(t, manager)

	s := settings.Defaults()
	s.Name = "Red Innova FP Norte"
	s.OpenAIAPIKey = "sk-secret"
	s.SMTP = &settings.SMTPSettings{Host: "smtp.test.es", Port: 587, User: "no-reply", Password: "smtp-secret"}

	tests := []httpTest{
		{name: "defaults", path: "/v1/settings", token: mgrToken, wantData: marshalObj(t, echoapi.SettingsResponse{AppSettings: settings.Defaults()})},
		{name: "admin required", method: http.MethodPut, path: "/v1/settings", token: mgrToken, body: marshalObj(t, s), wantCode: http.StatusForbidden},
		{
			name: "invalid smtp port", method: http.MethodPut, path: "/v1/settings", token: adminToken,
			body:     []byte(`{"name": "Red", "smtp": {"host": "smtp.test.es", "port": 70000}}`),
			wantCode: http.StatusBadRequest,
		},
	}
	app.run(t, tests)

	t.Run("secrets are never returned", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/settings", adminToken, marshalObj(t, s))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.SettingsResponse
		decode(t, rec, &resp)
		assert.Equal(t, "Red Innova FP Norte", resp.Name)
		assert.True(t, resp.HasOpenAIAPIKey)
		assert.Empty(t, resp.OpenAIAPIKey)
		require.NotNil(t, resp.SMTP)
		assert.Empty(t, resp.SMTP.Password)

		// the stored secrets are kept
		curr := app.settings.Current()
		assert.Equal(t, "sk-secret", curr.OpenAIAPIKey)
		assert.Equal(t, "smtp-secret", curr.SMTP.Password)
	})

	t.Run("resending the masked settings keeps the secrets", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/settings", adminToken)
		var resp echoapi.SettingsResponse
		decode(t, rec, &resp)
		resp.Colors.Primary = "#000000"

		rec = app.do(http.MethodPut, "/v1/settings", adminToken, marshalObj(t, resp.AppSettings))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		curr := app.settings.Current()
		assert.Equal(t, "#000000", curr.Colors.Primary)
		assert.Equal(t, "sk-secret", curr.OpenAIAPIKey)
		assert.Equal(t, "smtp-secret", curr.SMTP.Password)
	})
}

func Test_settingsAPI_testSMTP(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "Eva", "eva", user.RoleGeneralCoordinator)
	manager := app.createUser(t, "Ana", "ana", user.RoleManager)
	adminToken := app.token(t, admin)
	path := "/v1/settings/smtp/test"

	tests := []httpTest{
		{name: "admin required", method: http.MethodPost, path: path, token: app.token(t, manager), wantCode: http.StatusForbidden},
		{
			name: "invalid recipient", method: http.MethodPost, path: path, token: adminToken, body: []byte(`{"to": "not-an-email"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"to": "must be a valid email address"}`),
		},
		{name: "defaults to the admin", method: http.MethodPost, path: path, token: adminToken, wantData: marshalObj(t, echoapi.SMTPTestResponse{To: admin.Email})},
		{
			name: "given recipient", method: http.MethodPost, path: path, token: adminToken, body: []byte(`{"to": " Soporte@Test.es "}`),
			wantData: marshalObj(t, echoapi.SMTPTestResponse{To: "soporte@test.es"}),
		},
	}
	app.run(t, tests)

	sent := emailsvc.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, admin.Email, sent[0].To[0].Address)
	assert.Equal(t, "soporte@test.es", sent[1].To[0].Address)
	assert.Equal(t, "Prueba de configuración de correo", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, admin.FullName())

	t.Run("transport failure", func(t *testing.T) {
		app.mailer.err = errors.New("dial tcp: connection refused")
		defer func() { app.mailer.err = nil }()

		rec := app.do(http.MethodPost, path, adminToken)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"error": "error sending the test email"}`, rec.Body.String())
		assert.Len(t, emailsvc.Sent(), 2)
	})
}

func Test_maintenance(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "Eva", "eva", user.RoleGeneralCoordinator)
	manager := app.createUser(t, "Ana", "ana", user.RoleManager)

	_, err := app.settings.Update(context.Background(), func(s *settings.AppSettings) error {
		s.Maintenance.Enabled = true
		s.Maintenance.Message = "Volvemos en una hora"
		return nil
	})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "users are kept out", path: "/v1/messages", token: app.token(t, manager), wantCode: http.StatusServiceUnavailable, wantData: marshalObj(t, httpErr{Error: "Volvemos en una hora"})},
		{name: "allowed roles get in", path: "/v1/messages", token: app.token(t, admin), wantData: []byte(`[]`)},
		{name: "login stays open", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{"username": "ana", "password": "Pa$$w0rd!"}`)},
	}
	app.run(t, tests)
}
