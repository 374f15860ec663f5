package db

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Database is the master connection pool.
type Database interface {
	Querier
	Ping() error
	Beginx() (DatabaseTx, error)
	Close() error
}

// DatabaseTx is an active transaction. Everything executed through it is applied atomically on
// Commit.
type DatabaseTx interface {
	Querier
	Commit() error
	Rollback() error
}

// Querier is implemented by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	Queryx(query string, args ...interface{}) (*sqlx.Rows, error)
	Prepare(query string) (*sql.Stmt, error)
	Rebind(query string) string
}

type db struct {
	*sqlx.DB
}

func (db *db) Beginx() (DatabaseTx, error) {
	tx, err := db.DB.Beginx()
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (db *db) Close() error {
	return db.DB.Close()
}
