package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dbpkg "github.com/BrandonDHaskell/nftledger/internal/db"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// ErrReadOnly is returned by writes on a store opened with NewReadOnly.
var ErrReadOnly = errors.New("sqlite store is read-only")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the durable ledger backend. Reads go straight to db; writes are
// serialised through the single-writer Worker.
type Store struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func New(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

// NewReadOnly returns a Store for offline inspection. Atomic and every
// write fail with ErrReadOnly.
func NewReadOnly(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Tokens() store.TokenStore           { return &TokenStore{s.direct()} }
func (s *Store) Approvals() store.ApprovalStore     { return &ApprovalStore{s.direct()} }
func (s *Store) Transactions() store.TransactionLog { return &TransactionLog{s.direct()} }
func (s *Store) Dedup() store.DedupIndex            { return &DedupIndex{s.direct()} }

// Close stops the writer. The *sql.DB belongs to the caller.
func (s *Store) Close() error {
	if s.writer != nil {
		s.writer.Close()
	}
	return nil
}

// Atomic runs fn inside one write transaction on the worker.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if s.writer == nil {
		return ErrReadOnly
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &txView{conn{q: tx, inTx: true}})
	})
}

func (s *Store) direct() conn {
	return conn{q: s.db, writer: s.writer}
}

type txView struct {
	c conn
}

func (t *txView) Tokens() store.TokenStore           { return &TokenStore{t.c} }
func (t *txView) Approvals() store.ApprovalStore     { return &ApprovalStore{t.c} }
func (t *txView) Transactions() store.TransactionLog { return &TransactionLog{t.c} }
func (t *txView) Dedup() store.DedupIndex            { return &DedupIndex{t.c} }

// conn is either bound to an open transaction (inTx) or to the pool, in
// which case writes are submitted to the worker.
type conn struct {
	q      querier
	writer *dbpkg.Worker
	inTx   bool
}

func (c conn) write(ctx context.Context, fn func(q querier) error) error {
	if c.inTx {
		return fn(c.q)
	}
	if c.writer == nil {
		return ErrReadOnly
	}
	return c.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(tx)
	})
}

// ── column helpers ────────────────────────────────────────────────────────

func accountCols(a types.Account) (string, string) {
	return string(a.Owner), a.Subaccount.Hex()
}

func scanAccount(principal, sub string) (types.Account, error) {
	s, err := types.ParseSubaccount(sub)
	if err != nil {
		return types.Account{}, fmt.Errorf("stored account %q: %w", principal, err)
	}
	return types.NewAccount(types.Principal(principal), s), nil
}

// Unsigned values are stored bit-cast into INTEGER columns. Ledger times
// and token ids stay below 2^63; only expiries can exceed it.
func toDB(v uint64) int64   { return int64(v) }
func fromDB(v int64) uint64 { return uint64(v) }

func nullableU64(p *uint64) any {
	if p == nil {
		return nil
	}
	return toDB(*p)
}

func fromNullable(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := fromDB(v.Int64)
	return &u
}

// limit maps take <= 0 to SQLite's "no limit".
func limit(take int) int {
	if take <= 0 {
		return -1
	}
	return take
}
