package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func newTestDB(t *testing.T) *DB {
	masterDB, err := New(&DBConfig{
		Driver:       "sqlite3",
		URL:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		MaxOpenConns: 1,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create db : %s", err)
	}
	t.Cleanup(masterDB.Close)

	if err := masterDB.Execute(context.Background(),
		`CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT NOT NULL UNIQUE, count BIGINT NOT NULL)`); err != nil {
		t.Fatalf("Failed to create table : %s", err)
	}

	return masterDB
}

func TestUniqueViolation(t *testing.T) {
	ctx := context.Background()
	masterDB := newTestDB(t)

	sql := `INSERT INTO items (id, name, count) VALUES (?, ?, ?)`
	if err := masterDB.Execute(ctx, sql, "a", "first", 1); err != nil {
		t.Fatalf("Failed to insert : %s", err)
	}

	err := masterDB.Execute(ctx, sql, "a", "second", 1)
	if !IsUniqueViolation(err) {
		t.Fatalf("Primary key violation not detected : %v", err)
	}

	err = masterDB.Execute(ctx, sql, "b", "first", 1)
	if !IsUniqueViolation(errors.Wrap(err, "insert")) {
		t.Fatalf("Unique violation not detected : %v", err)
	}

	if IsUniqueViolation(errors.New("other")) || IsUniqueViolation(nil) {
		t.Fatalf("Other errors reported as unique violations")
	}
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	masterDB := newTestDB(t)

	if err := masterDB.BeginTransaction(); errors.Cause(err) != ErrInvalidDBProvided {
		t.Fatalf("Transaction on master should fail : %v", err)
	}

	dbConn := masterDB.Copy()
	defer dbConn.Close()

	if err := dbConn.BeginTransaction(); err != nil {
		t.Fatalf("Failed to begin transaction : %s", err)
	}
	if err := dbConn.BeginTransaction(); err != ErrTransactionActive {
		t.Fatalf("Nested transaction should fail : %v", err)
	}

	if err := dbConn.Execute(ctx, `INSERT INTO items (id, name, count) VALUES (?, ?, ?)`,
		"a", "first", 1); err != nil {
		t.Fatalf("Failed to insert : %s", err)
	}

	if err := dbConn.Rollback(); err != nil {
		t.Fatalf("Failed to rollback : %s", err)
	}

	var count int
	if err := dbConn.Get(ctx, &count, `SELECT COUNT(*) FROM items`); err != nil {
		t.Fatalf("Failed to count : %s", err)
	}
	if count != 0 {
		t.Fatalf("Rolled back insert persisted : %d", count)
	}

	if err := dbConn.BeginTransaction(); err != nil {
		t.Fatalf("Failed to begin transaction : %s", err)
	}
	if err := dbConn.Execute(ctx, `INSERT INTO items (id, name, count) VALUES (?, ?, ?)`,
		"a", "first", 1); err != nil {
		t.Fatalf("Failed to insert : %s", err)
	}
	if err := dbConn.Commit(); err != nil {
		t.Fatalf("Failed to commit : %s", err)
	}

	rows, err := dbConn.Update(ctx, `UPDATE items SET count = count + 1 WHERE id = ? AND count = ?`,
		"a", 1)
	if err != nil {
		t.Fatalf("Failed to update : %s", err)
	}
	if rows != 1 {
		t.Fatalf("Wrong rows affected : %d", rows)
	}

	rows, err = dbConn.Update(ctx, `UPDATE items SET count = count + 1 WHERE id = ? AND count = ?`,
		"a", 1)
	if err != nil {
		t.Fatalf("Failed to update : %s", err)
	}
	if rows != 0 {
		t.Fatalf("Conditional update applied twice : %d", rows)
	}

	var name string
	err = dbConn.Get(ctx, &name, `SELECT name FROM items WHERE id = ?`, "missing")
	if err != ErrNotFound {
		t.Fatalf("Wrong error for missing row : %v", err)
	}
}
