package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

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

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up storage
	repos, err := storage.Open(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up %s storage: %v", conf.Storage.Backend, err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	meeting.InitValidators(validate, translator)

	// set up services
	settingsSvc, err := settings.NewService(context.Background(), repos.Settings, validate)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading settings: %v", err), err)
	}
	mailSvc := emailsvc.New(conf, settingsSvc, logger)
	ai := aisvc.NewOpenAIService(conf)

	usrSvc := user.NewService(repos.Users)
	msgSvc := message.NewService(repos.Messages)
	dispatcher := meeting.NewDispatcher(msgSvc, mailSvc, logger, conf.Meetings.Location())
	meetingSvc := meeting.NewService(repos.Meetings, usrSvc, dispatcher, settingsSvc, logger)
	formSvc := form.NewService(repos.Forms, usrSvc, mailSvc, validate, logger)
	observatorySvc := observatory.NewService(repos.Observatory, ai, validate, logger)
	assistantSvc := assistant.NewService(formSvc, ai, settingsSvc, validate, logger)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			UserSvc:        usrSvc,
			MeetingSvc:     meetingSvc,
			MessageSvc:     msgSvc,
			FormSvc:        formSvc,
			ObservatorySvc: observatorySvc,
			AssistantSvc:   assistantSvc,
			SettingsSvc:    settingsSvc,
			MailSvc:        mailSvc,
		},
	)
	serve(conf, logger, repos, server)
}
