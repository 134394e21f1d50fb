package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/message"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
	emailsvc "github.com/redinnovafp/backend/services/email"
	logsvc "github.com/redinnovafp/backend/services/logger"
	"github.com/redinnovafp/backend/storage"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// migrations are run on demand by the migrate command
	repos, err := storage.Open(conf, storage.WithoutMigrations())
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up %s storage: %v", conf.Storage.Backend, err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	core.ParseEmailTemplates(conf, logger)

	settingsSvc, err := settings.NewService(context.Background(), repos.Settings, validate)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading settings: %v", err), err)
	}
	usrSvc := user.NewService(repos.Users)
	dispatcher := meeting.NewDispatcher(
		message.NewService(repos.Messages),
		emailsvc.New(conf, settingsSvc, logger),
		logger,
		conf.Meetings.Location(),
	)

	// start CLI
	cli := commandLine{
		db:         repos.SQL,
		validate:   validate,
		usrSvc:     usrSvc,
		meetingSvc: meeting.NewService(repos.Meetings, usrSvc, dispatcher, settingsSvc, logger),
		window:     conf.Meetings.ReminderWindow,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	if cErr := repos.Close(); cErr != nil {
		logger.Error(fmt.Sprintf("closing storage: %v", cErr), cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
