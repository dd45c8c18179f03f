package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/apps/api/echo"
	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/contact"
	"github.com/keemdrivingschool/keem/core/export"
	"github.com/keemdrivingschool/keem/core/news"
	"github.com/keemdrivingschool/keem/core/notify"
	"github.com/keemdrivingschool/keem/core/settings"
	"github.com/keemdrivingschool/keem/core/student"
	"github.com/keemdrivingschool/keem/services/email"
	"github.com/keemdrivingschool/keem/services/logger"
	"github.com/keemdrivingschool/keem/services/whatsapp"
	"github.com/keemdrivingschool/keem/storage/files"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	apiLogger := newLogger("API", conf)
	dbLogger := newLogger("DB", conf)

	store, err := openStore(context.Background(), conf)
	if err != nil {
		apiLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	photos, err := files.NewPhotoStore(conf.Upload)
	if err != nil {
		apiLogger.Fatal(fmt.Sprintf("setting up photo store: %v", err), err)
	}

	var mailSvc core.EmailService
	var waSender notify.WhatsAppSender
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf)
		waSender = whatsappsvc.NewConsoleSender(log.New(os.Stdout, "WHATSAPP : ", log.LstdFlags))
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
		waSender = whatsappsvc.NewTwilioSender(conf.Twilio)
	}

	// =========================================================================
	// Initialize App

	apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer apiLogger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	admin.InitValidators(validate, translator)
	application.InitValidators(validate, translator)
	student.InitValidators(validate, translator)

	core.ParseEmailTemplates(apiLogger, conf)

	admin.LoadCommonPasswords(apiLogger)

	emailDispatcher := notify.NewEmailDispatcher(mailSvc, apiLogger)
	settingsSvc := settings.NewService(store.Settings, validate)
	studentSvc := student.NewService(store.Students, store.Tx, validate)
	appSvc := application.NewService(application.Deps{
		Repo:     store.Applications,
		Tx:       store.Tx,
		Students: studentSvc,
		Settings: settingsSvc,
		Email:    emailDispatcher,
		WhatsApp: notify.NewWhatsAppDispatcher(waSender, conf.DefaultCountryCode, apiLogger),
		Photos:   photos,
		Letter:   export.AcceptanceLetter,
		Validate: validate,
		Logger:   apiLogger,
		Conf:     conf,
	})
	metrics := echoapi.NewMetrics()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("db").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Jobs

	jobs, err := scheduleJobs(conf, appSvc, metrics, apiLogger)
	if err != nil {
		apiLogger.Fatal(fmt.Sprintf("scheduling jobs: %v", err), err)
	}
	jobs.Start()
	defer func() {
		<-jobs.Stop().Done() // wait for a running digest
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         apiLogger,
			Validate:       validate,
			Translator:     translator,
			Metrics:        metrics,
			AdminSvc:       admin.NewService(store.Admins, mailSvc, validate, apiLogger, conf),
			ApplicationSvc: appSvc,
			StudentSvc:     studentSvc,
			SettingsSvc:    settingsSvc,
			ContactSvc:     contact.NewService(store.Contact, settingsSvc, emailDispatcher, validate, apiLogger),
			NewsSvc:        news.NewService(store.News, validate),
			Photos:         photos,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// newLogger reports to Rollbar in QA|PROD and writes to the console otherwise.
func newLogger(name string, conf *core.Config) core.Logger {
	if !conf.IsProd() {
		return logsvc.NewConsoleLogger(os.Stdout, conf)
	}
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, name+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(true)
	return logger
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
