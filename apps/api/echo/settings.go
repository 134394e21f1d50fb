package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/settings"
)

type settingsAPI struct {
	svc    *settings.Service
	mailer core.EmailService
	logger core.Logger
}

func registerSettingsAPI(g *echo.Group, svc *settings.Service, mailer core.EmailService, logger core.Logger) {
	api := settingsAPI{svc: svc, mailer: mailer, logger: logger}

	g.GET("", api.retrieve)
	g.PUT("", api.update, adminMiddleware())
	g.POST("/smtp/test", api.testSMTP, adminMiddleware())
}

func (api *settingsAPI) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, maskSettings(api.svc.Current()))
}

func (api *settingsAPI) update(ctx echo.Context) error {
	var data settings.AppSettings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AppSettings")
	}
	s, err := api.svc.Replace(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, maskSettings(s))
}

// testSMTP sends a test email through the configured transport, to the authenticated user by default.
func (api *settingsAPI) testSMTP(ctx echo.Context) error {
	var data SMTPTestRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SMTPTestRequest")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	to := core.CleanString(data.To, true)
	if to == "" {
		to = usr.Email
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "must be a valid email address"})
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{*addr},
		Subject:      "Prueba de configuración de correo",
		TemplateName: "smtp_test",
		TemplateData: map[string]string{"Sender": usr.FullName()},
	}
	if err = api.mailer.Send(ctx.Request().Context(), msg); err != nil {
		api.logger.Error(fmt.Sprintf("sending test email to %s: %v", addr.Address, err), err, usr)
		return errTestEmailFailed
	}
	return ctx.JSON(http.StatusOK, SMTPTestResponse{To: addr.Address})
}

type (
	SMTPTestRequest struct {
		To string `json:"to"`
	}

	SMTPTestResponse struct {
		To string `json:"to"`
	}
)

// SettingsResponse never carries the secrets back. Sending them empty on update keeps the stored ones.
type SettingsResponse struct {
	settings.AppSettings
	HasOpenAIAPIKey bool `json:"has_openai_api_key"`
}

func maskSettings(s settings.AppSettings) SettingsResponse {
	resp := SettingsResponse{AppSettings: s, HasOpenAIAPIKey: s.OpenAIAPIKey != ""}
	resp.OpenAIAPIKey = ""
	if resp.SMTP != nil {
		resp.SMTP.Password = ""
	}
	if resp.Meetings != nil {
		resp.Meetings.APIKey = ""
	}
	return resp
}
