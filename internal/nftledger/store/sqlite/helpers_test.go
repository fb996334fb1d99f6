package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/nftledger/internal/db"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	sqlitestore "github.com/BrandonDHaskell/nftledger/internal/nftledger/store/sqlite"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. The connection is closed when the test ends.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared cache keeps the database alive while the pool holds a
	// connection; the test name keeps databases apart.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestStore returns a Store over conn whose writer is closed when the
// test finishes.
func newTestStore(t *testing.T, conn *sql.DB) *sqlitestore.Store {
	t.Helper()

	s := sqlitestore.New(conn, db.NewWorker(conn))
	t.Cleanup(func() { s.Close() })
	return s
}

func mustAtomic(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	if err := s.Atomic(context.Background(), fn); err != nil {
		t.Fatalf("Atomic: %v", err)
	}
}

func seedToken(t *testing.T, s store.Store, id uint64, owner types.Account) {
	t.Helper()
	mustAtomic(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.Tokens().Create(ctx, store.TokenRecord{ID: id, Owner: owner, MintedAt: 1})
	})
}

func u64(v uint64) *uint64 { return &v }
