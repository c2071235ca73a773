// Package database owns the GORM handle, transaction propagation through
// context, and the mapping of driver constraint errors onto AppErrors.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/scale-custody/internal"
	assignmentDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/assignment"
	auditDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/auditlog"
	scaleDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/scale"
	unitDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/unit"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
)

// ActiveAssignmentIndex is the partial unique index that allows at most one
// active assignment per scale.
const ActiveAssignmentIndex = "ux_assignments_active_scale"

type txKey struct{}

// Config is the GORM configuration shared by every backend. Timestamps are
// written in UTC so that stored values compare correctly as text on SQLite.
func Config(logLevel gormlogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(logLevel),
	}
}

// OpenPostgres wraps an existing pool so GORM and sqlx share connections.
func OpenPostgres(sqlDB *sql.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), Config(gormlogger.Warn))
}

// Conn returns the transaction bound to ctx, or db scoped to ctx when no
// transaction is in flight. Repositories must issue every query through it.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

// InTransaction reports whether ctx carries an open transaction.
func InTransaction(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok && tx != nil
}

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type GormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// WithinTransaction runs fn inside one transaction. A nested call joins the
// transaction already carried by ctx.
func (t *GormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Savepoint runs fn so that its failure is rolled back on its own: inside an
// outer transaction GORM issues SAVEPOINT / ROLLBACK TO, otherwise fn gets a
// fresh transaction. The outer transaction stays usable either way.
func Savepoint(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return Conn(ctx, db).Transaction(fn)
}

// LockTable takes a Postgres table lock that conflicts with itself and with
// row writes, held until the transaction in ctx ends. SQLite already
// serializes writers, so it is a no-op there.
func LockTable(ctx context.Context, db *gorm.DB, table string) error {
	if !InTransaction(ctx) {
		return fmt.Errorf("lock table %s: no transaction in context", table)
	}
	conn := Conn(ctx, db)
	if conn.Dialector.Name() != "postgres" {
		return nil
	}
	return conn.Exec("LOCK TABLE " + table + " IN SHARE ROW EXCLUSIVE MODE").Error
}

// AutoMigrate creates the schema from the data models. Production schemas
// come from the goose migrations; this serves development and tests.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&userDatamodel.User{},
		&unitDatamodel.Unit{},
		&scaleDatamodel.Scale{},
		&assignmentDatamodel.Assignment{},
		&auditDatamodel.AuditLog{},
	); err != nil {
		return err
	}
	return db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS " + ActiveAssignmentIndex +
		" ON assignments (scale_id) WHERE status = 'active'").Error
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// TranslateError maps constraint breaches to ConstraintViolation and any
// other failure to an opaque internal error. AppErrors pass through.
func TranslateError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	switch {
	case IsUniqueViolation(err):
		return internal.NewConstraintViolationError(message+": duplicate value", err)
	case IsForeignKeyViolation(err):
		return internal.NewConstraintViolationError(message+": referenced record does not exist", err)
	default:
		return internal.NewInternalError(message, err)
	}
}
