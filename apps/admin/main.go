package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/services/email"
	"github.com/keemdrivingschool/keem/services/logger"
	"github.com/keemdrivingschool/keem/storage/database"
	"github.com/keemdrivingschool/keem/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewConsoleLogger(os.Stderr, conf)

	// set up DB
	ctx := context.Background()
	errAndDie(logger, database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer db.Close()
	errAndDie(logger, database.Ping(ctx, db))

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	admin.InitValidators(validate, translator)
	admin.LoadCommonPasswords(logger)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		adminSvc: admin.NewService(sqlxrepos.NewAdminRepository(db), emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf), validate, logger, conf),
		appRepo:  sqlxrepos.NewApplicationRepository(db),
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
