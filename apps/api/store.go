package main

import (
	"context"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/contact"
	"github.com/keemdrivingschool/keem/core/news"
	"github.com/keemdrivingschool/keem/core/settings"
	"github.com/keemdrivingschool/keem/core/student"
	"github.com/keemdrivingschool/keem/storage/database"
	"github.com/keemdrivingschool/keem/storage/database/inmem"
	"github.com/keemdrivingschool/keem/storage/database/sqlx"
)

const engineInMemory = "inmem"

// store groups the repositories of one database.
type store struct {
	Tx           core.Transactor
	Admins       admin.Repository
	Applications application.Repository
	Students     student.Repository
	Settings     settings.Repository
	Contact      contact.Repository
	News         news.Repository

	Close func() error
}

// openStore opens the configured database: Postgres (created and migrated if needed), or memory for demos.
func openStore(ctx context.Context, conf *core.Config) (*store, error) {
	if conf.Database.Engine == engineInMemory {
		db := inmemdb.Open()
		return &store{
			Tx:           db,
			Admins:       inmemdb.NewAdminRepository(db),
			Applications: inmemdb.NewApplicationRepository(db),
			Students:     inmemdb.NewStudentRepository(db),
			Settings:     inmemdb.NewSettingsRepository(db),
			Contact:      inmemdb.NewContactRepository(db),
			News:         inmemdb.NewNewsRepository(db),
			Close:        func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &store{
		Tx:           sqlxrepos.NewTransactor(db),
		Admins:       sqlxrepos.NewAdminRepository(db),
		Applications: sqlxrepos.NewApplicationRepository(db),
		Students:     sqlxrepos.NewStudentRepository(db),
		Settings:     sqlxrepos.NewSettingsRepository(db),
		Contact:      sqlxrepos.NewContactRepository(db),
		News:         sqlxrepos.NewNewsRepository(db),
		Close:        db.Close,
	}, nil
}
