package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/redinnovafp/backend/apps/api/echo"
	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/assistant"
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/observatory"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
	aisvc "github.com/redinnovafp/backend/services/ai"
	emailsvc "github.com/redinnovafp/backend/services/email"
	logsvc "github.com/redinnovafp/backend/services/logger"
	"github.com/redinnovafp/backend/storage"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories exposes every repository of the storage backend to the container.
	Repositories struct {
		dig.Out
		Users       user.Repository
		Meetings    meeting.Repository
		Messages    message.Repository
		Forms       form.Repository
		Observatory observatory.Repository
		Settings    settings.Repository
		Storage     *storage.Repositories
	}

	validation struct {
		dig.Out
		Validate   *validator.Validate
		Translator ut.Translator
	}

	serverParams struct {
		dig.In
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        *user.Service
		MeetingSvc     *meeting.Service
		MessageSvc     *message.Service
		FormSvc        *form.Service
		ObservatorySvc *observatory.Service
		AssistantSvc   *assistant.Service
		SettingsSvc    *settings.Service
		MailSvc        core.EmailService
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	repos, err := storage.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s storage: %v", conf.Storage.Backend, err), err)
	}
	return Repositories{
		Users:       repos.Users,
		Meetings:    repos.Meetings,
		Messages:    repos.Messages,
		Forms:       repos.Forms,
		Observatory: repos.Observatory,
		Settings:    repos.Settings,
		Storage:     repos,
	}
}

func newValidation() validation {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	meeting.InitValidators(validate, translator)
	return validation{Validate: validate, Translator: translator}
}

func newSettingsService(repo settings.Repository, validate *validator.Validate) (*settings.Service, error) {
	return settings.NewService(context.Background(), repo, validate)
}

func newDispatcher(conf *core.Config, msgSvc *message.Service, mailSvc core.EmailService, logger core.Logger) *meeting.Dispatcher {
	return meeting.NewDispatcher(msgSvc, mailSvc, logger, conf.Meetings.Location())
}

func newMeetingService(
	repo meeting.Repository,
	usrSvc *user.Service,
	dispatcher *meeting.Dispatcher,
	sp settings.Provider,
	logger core.Logger,
) *meeting.Service {
	return meeting.NewService(repo, usrSvc, dispatcher, sp, logger)
}

func newFormService(
	repo form.Repository,
	usrSvc *user.Service,
	mailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
) *form.Service {
	return form.NewService(repo, usrSvc, mailSvc, validate, logger)
}

func newAssistantService(
	formSvc *form.Service,
	ai core.Completer,
	sp settings.Provider,
	validate *validator.Validate,
	logger core.Logger,
) *assistant.Service {
	return assistant.NewService(formSvc, ai, sp, validate, logger)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		MeetingSvc:     p.MeetingSvc,
		MessageSvc:     p.MessageSvc,
		FormSvc:        p.FormSvc,
		ObservatorySvc: p.ObservatorySvc,
		AssistantSvc:   p.AssistantSvc,
		SettingsSvc:    p.SettingsSvc,
		MailSvc:        p.MailSvc,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newValidation))
	must(c.Provide(newSettingsService))
	must(c.Provide(func(svc *settings.Service) settings.Provider { return svc }))
	must(c.Provide(emailsvc.New))
	must(c.Provide(aisvc.NewOpenAIService))
	must(c.Provide(user.NewService))
	must(c.Provide(message.NewService))
	must(c.Provide(newDispatcher))
	must(c.Provide(newMeetingService))
	must(c.Provide(newFormService))
	must(c.Provide(observatory.NewService))
	must(c.Provide(newAssistantService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
