package common

import (
	"emperror.dev/errors"
	"github.com/jinzhu/gorm"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	_ "github.com/jinzhu/gorm/dialects/postgres"
)

// ConnectDB opens the gorm handle for the configured dialect. Sqlite requires
// the caller to import the dialect.
func ConnectDB(dialect, url string) (*gorm.DB, error) {
	db, err := gorm.Open(dialect, url)
	if err != nil {
		return nil, errors.WrapIf(err, "gorm.Open")
	}

	if dialect == "sqlite3" {
		// in memory databases are per connection
		db.DB().SetMaxOpenConns(1)
	} else {
		db.DB().SetMaxOpenConns(20)
		db.DB().SetMaxIdleConns(5)
	}

	db.SetLogger(gormLogger{})
	return db, nil
}

// SQLX wraps the connection pool behind db for context aware raw queries.
func SQLX(db *gorm.DB) *sqlx.DB {
	return sqlx.NewDb(db.DB(), db.Dialect().GetName())
}

// IsPostgres reports whether db talks to postgres, some locking clauses
// aren't understood by sqlite.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialect().GetName() == "postgres"
}

type gormLogger struct{}

func (gormLogger) Print(v ...interface{}) {
	logrus.WithField("stck", "gorm").Debug(v...)
}
