// Package inmemdb is a memory-backed implementation of the repositories, used by tests and local runs.
package inmemdb

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/keemdrivingschool/keem/core"
	"github.com/keemdrivingschool/keem/core/admin"
	"github.com/keemdrivingschool/keem/core/application"
	"github.com/keemdrivingschool/keem/core/contact"
	"github.com/keemdrivingschool/keem/core/news"
	"github.com/keemdrivingschool/keem/core/settings"
	"github.com/keemdrivingschool/keem/core/student"
)

type (
	txKey struct{}

	tables struct {
		pk           int
		admins       map[int]admin.Admin
		applications map[int]application.Application
		students     map[int]student.Student
		payments     map[int]student.Payment
		lessons      map[int]student.Lesson
		contacts     map[int]contact.Message
		news         map[int]news.News
		settings     map[string]settings.Setting
	}

	// DB holds every table behind a single lock.
	// Transactions are serialized and restore the tables when they fail.
	// Writes outside a transaction wait for the open transaction, if any,
	// so a rollback only ever discards the transaction's own writes.
	DB struct {
		mutex   sync.RWMutex
		txMutex sync.Mutex
		t       *tables
	}
)

var (
	_ core.Transactor = (*DB)(nil) // interface compliance check

	errDuplicate        = errors.New("duplicate key value")
	errMissingReference = errors.New("referenced row does not exist")
)

func newTables() *tables {
	return &tables{
		admins:       make(map[int]admin.Admin),
		applications: make(map[int]application.Application),
		students:     make(map[int]student.Student),
		payments:     make(map[int]student.Payment),
		lessons:      make(map[int]student.Lesson),
		contacts:     make(map[int]contact.Message),
		news:         make(map[int]news.News),
		settings:     make(map[string]settings.Setting),
	}
}

func Open() *DB {
	return &DB{t: newTables()}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.t = newTables()
}

func (t *tables) clone() *tables {
	c := newTables()
	c.pk = t.pk
	for k, v := range t.admins {
		c.admins[k] = v
	}
	for k, v := range t.applications {
		c.applications[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	for k, v := range t.lessons {
		c.lessons[k] = v
	}
	for k, v := range t.contacts {
		c.contacts[k] = v
	}
	for k, v := range t.news {
		c.news[k] = v
	}
	for k, v := range t.settings {
		c.settings[k] = v
	}
	return c
}

func (t *tables) nextPK() int {
	t.pk++
	return t.pk
}

// WithinTx runs fn while holding the transaction lock. Nested calls join the outer transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	db.txMutex.Lock()
	defer db.txMutex.Unlock()

	db.mutex.RLock()
	snapshot := db.t.clone()
	db.mutex.RUnlock()

	rollback := func() {
		db.mutex.Lock()
		db.t = snapshot
		db.mutex.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		rollback()
	}
	return err
}

func (db *DB) read(fn func(t *tables)) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	fn(db.t)
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

func (db *DB) write(ctx context.Context, fn func(t *tables) error) error {
	if !inTx(ctx) {
		db.txMutex.Lock()
		defer db.txMutex.Unlock()
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return fn(db.t)
}

// contains reports whether any of the values contains term, ignoring case.
func contains(term string, values ...string) bool {
	term = strings.ToLower(term)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func uniqueViolation(constraint string) error {
	return core.NewConstraintError(constraint, errDuplicate)
}

func foreignKeyViolation(constraint string) error {
	return core.NewConstraintError(constraint, errMissingReference)
}

// compare orders two column values of the same type: strings, ints or times.
func compare(a, b interface{}) int {
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case int:
		y := b.(int)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case time.Time:
		y := b.(time.Time)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
	}
	return 0
}

// lessFunc builds a sort function from orderings, column reading the value of a field of item i.
// Ties are broken by ID.
func lessFunc(ordering []core.DBOrdering, column func(i int, field string) interface{}, id func(i int) int) func(i, j int) bool {
	return func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(column(i, ord.Field), column(j, ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return id(i) < id(j)
	}
}
