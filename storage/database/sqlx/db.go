// Package sqlxrepos implements the repositories on Postgres with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
)

// Postgres error codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	txKey struct{}

	// executor is implemented by both *sqlx.DB and *sqlx.Tx
	executor interface {
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	}

	// Transactor runs functions in a transaction carried by their context.
	Transactor struct {
		db *sqlx.DB
	}

	repository struct {
		db *sqlx.DB
	}
)

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx commits when fn succeeds and rolls back otherwise. Nested calls join the outer transaction.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// exec returns the transaction of ctx, if any, else the DB.
func (repo repository) exec(ctx context.Context) executor {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return repo.db
}

func (repo repository) get(ctx context.Context, dest interface{}, b sq.Sqlizer, notFound error, msg string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return translateErr(repo.exec(ctx).GetContext(ctx, dest, query, args...), notFound, msg)
}

func (repo repository) selectAll(ctx context.Context, dest interface{}, b sq.Sqlizer, msg string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return translateErr(repo.exec(ctx).SelectContext(ctx, dest, query, args...), nil, msg)
}

// translateErr maps "no rows" to notFound and constraint violations to core.ConstraintError.
func translateErr(err, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == sql.ErrNoRows && notFound != nil {
		return notFound
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case codeUniqueViolation, codeForeignKeyViolation, codeCheckViolation:
			return core.NewConstraintError(pqErr.Constraint, err)
		}
	}
	return errors.Wrap(err, msg)
}

func orderBy(b sq.SelectBuilder, prefix string, ordering []core.DBOrdering, fallback string) sq.SelectBuilder {
	if len(ordering) == 0 {
		return b.OrderBy(fallback)
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		clauses = append(clauses, prefix+ord.String())
	}
	return b.OrderBy(strings.Join(clauses, ", "))
}

func search(term string, columns ...string) sq.Or {
	like := "%" + term + "%"
	or := make(sq.Or, 0, len(columns))
	for _, c := range columns {
		or = append(or, sq.ILike{c: like})
	}
	return or
}
