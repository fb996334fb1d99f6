// Package postgres is a ledger backend on PostgreSQL via pgx. Every write
// runs in a transaction that first takes a transaction-scoped advisory
// lock, so several server processes can share one database without
// interleaving transaction ids.
package postgres

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

//go:embed schema.sql
var schemaSQL string

// writerLockKey identifies the ledger's advisory lock.
const writerLockKey int64 = 0x6e66746c6564676b

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and creates the schema if needed.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Tokens() store.TokenStore           { return &TokenStore{s.direct()} }
func (s *Store) Approvals() store.ApprovalStore     { return &ApprovalStore{s.direct()} }
func (s *Store) Transactions() store.TransactionLog { return &TransactionLog{s.direct()} }
func (s *Store) Dedup() store.DedupIndex            { return &DedupIndex{s.direct()} }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txView{conn{q: tx, inTx: true}})
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, writerLockKey); err != nil {
		return errors.Wrap(err, "acquire writer lock")
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func (s *Store) direct() conn {
	return conn{q: s.pool, s: s}
}

type txView struct {
	c conn
}

func (t *txView) Tokens() store.TokenStore           { return &TokenStore{t.c} }
func (t *txView) Approvals() store.ApprovalStore     { return &ApprovalStore{t.c} }
func (t *txView) Transactions() store.TransactionLog { return &TransactionLog{t.c} }
func (t *txView) Dedup() store.DedupIndex            { return &DedupIndex{t.c} }

type conn struct {
	q    querier
	s    *Store
	inTx bool
}

func (c conn) write(ctx context.Context, fn func(q querier) error) error {
	if c.inTx {
		return fn(c.q)
	}
	return c.s.inTx(ctx, func(tx pgx.Tx) error { return fn(tx) })
}

func accountCols(a types.Account) (string, string) {
	return string(a.Owner), a.Subaccount.Hex()
}

func scanAccount(principal, sub string) (types.Account, error) {
	s, err := types.ParseSubaccount(sub)
	if err != nil {
		return types.Account{}, errors.Wrapf(err, "stored account %q", principal)
	}
	return types.NewAccount(types.Principal(principal), s), nil
}

// Unsigned values are stored bit-cast into BIGINT columns.
func toDB(v uint64) int64   { return int64(v) }
func fromDB(v int64) uint64 { return uint64(v) }

func nullableU64(p *uint64) *int64 {
	if p == nil {
		return nil
	}
	v := toDB(*p)
	return &v
}

func fromNullable(p *int64) *uint64 {
	if p == nil {
		return nil
	}
	v := fromDB(*p)
	return &v
}

// limit maps take <= 0 to NULL, which Postgres treats as LIMIT ALL.
func limit(take int) *int {
	if take <= 0 {
		return nil
	}
	return &take
}

// Reset empties every ledger table. Intended for tests against a
// disposable database.
func Reset(ctx context.Context, s *Store) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE nft_dedup_entries, nft_transactions, nft_token_approvals, nft_collection_approvals, nft_tokens`)
	return errors.Wrap(err, "truncate ledger tables")
}
