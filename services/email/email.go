package emailsvc

import (
	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/settings"
)

// Mail backends
const (
	BackendConsole  = "console"
	BackendSendgrid = "sendgrid"
	BackendSMTP     = "smtp"
)

// New returns the email service of the configured mail backend. Unknown backends print to the console.
func New(conf *core.Config, sp settings.Provider, logger core.Logger) core.EmailService {
	switch conf.MailBackend {
	case BackendSendgrid:
		return NewSendgridService(conf, logger)
	case BackendSMTP:
		return NewSMTPService(conf, sp, logger)
	default:
		if conf.MailBackend != BackendConsole {
			logger.Warn("unknown mail backend " + conf.MailBackend + ", printing emails to the console")
		}
		return NewConsoleService(conf, logger)
	}
}
