package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/assistant"
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/observatory"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc        *user.Service
		MeetingSvc     *meeting.Service
		MessageSvc     *message.Service
		FormSvc        *form.Service
		ObservatorySvc *observatory.Service
		AssistantSvc   *assistant.Service
		SettingsSvc    *settings.Service
		MailSvc        core.EmailService
	}

	Server struct {
		app      *echo.Echo
		conf     *core.Config
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		conf:     deps.Conf,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in TEST mode
	if !conf.TestMode {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home(conf))

	v1 := s.app.Group("/v1")
	auth := newAuthenticator(conf, deps.UserSvc)
	authed := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(auth.jwtConfig),
		auth.principalMiddleware,
		maintenanceMiddleware(deps.SettingsSvc),
	}

	registerUserAPI(v1, authed, auth, deps.UserSvc, deps.Validate)
	registerMeetingAPI(v1.Group("/meetings", authed...), deps.MeetingSvc, deps.SettingsSvc, deps.Validate)
	registerMessageAPI(v1.Group("/messages", authed...), deps.MessageSvc, deps.Validate)
	registerFormAPI(v1.Group("/forms", authed...), deps.FormSvc, deps.SettingsSvc)
	registerObservatoryAPI(v1.Group("/observatory", authed...), deps.ObservatorySvc)
	registerSettingsAPI(v1.Group("/settings", authed...), deps.SettingsSvc, deps.MailSvc, deps.Logger)
	registerAssistantAPI(v1.Group("/ai", authed...), deps.AssistantSvc)
}

func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that stopped the server.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives the OS signals & internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+conf.AppName+" API!")
	}
}
