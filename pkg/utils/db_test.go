package utils

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "utils.db") + "?_pragma=busy_timeout(5000)"
	db, err := OpenDB(context.Background(), "sqlite", dsn, PoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	return db
}

func count(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := openSQLite(t)
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('a', '1')`)
		return err
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n := count(t, db); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openSQLite(t)
	boom := errors.New("boom")
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('a', '1')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := count(t, db); n != 0 {
		t.Fatalf("expected rollback, got %d rows", n)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openSQLite(t)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('a', '1')`); err != nil {
				return err
			}
			panic("boom")
		})
	}()
	if n := count(t, db); n != 0 {
		t.Fatalf("expected rollback, got %d rows", n)
	}
}

func TestOpenDB_UnknownDriver(t *testing.T) {
	if _, err := OpenDB(context.Background(), "nope", "", PoolConfig{}); err == nil {
		t.Fatalf("expected error for unregistered driver")
	}
}

func TestOpenDB_GivesUpAfterMaxElapsed(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "missing", "dir", "x.db") + "?mode=ro"
	start := time.Now()
	_, err := OpenDB(context.Background(), "sqlite", dsn, PoolConfig{
		PingTimeout:       100 * time.Millisecond,
		ConnectMaxElapsed: 300 * time.Millisecond,
	})
	if err == nil {
		t.Fatalf("expected ping failure")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("retry did not respect ConnectMaxElapsed")
	}
}
