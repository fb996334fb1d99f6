package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type tokenApprovalKey struct {
	tokenID uint64
	owner   string
	spender string
}

type collectionApprovalKey struct {
	owner   string
	spender string
}

type dedupEntry struct {
	txID      uint64
	createdAt uint64
}

type state struct {
	tokens     map[uint64]store.TokenRecord
	approvals  map[tokenApprovalKey]store.TokenApprovalRecord
	collection map[collectionApprovalKey]store.CollectionApprovalRecord
	txs        []types.TransactionRecord
	dedup      map[string]dedupEntry
}

// Store is an in-memory ledger backend for tests and dev environments.
// Nothing survives a restart.
type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{
		st: &state{
			tokens:     make(map[uint64]store.TokenRecord),
			approvals:  make(map[tokenApprovalKey]store.TokenApprovalRecord),
			collection: make(map[collectionApprovalKey]store.CollectionApprovalRecord),
			dedup:      make(map[string]dedupEntry),
		},
	}
}

func (s *Store) Tokens() store.TokenStore           { return &tokenStore{view{s: s}} }
func (s *Store) Approvals() store.ApprovalStore     { return &approvalStore{view{s: s}} }
func (s *Store) Transactions() store.TransactionLog { return &transactionLog{view{s: s}} }
func (s *Store) Dedup() store.DedupIndex            { return &dedupIndex{view{s: s}} }

func (s *Store) Close() error { return nil }

// Atomic runs fn under the write lock. Every write made through tx is
// journalled and reverted if fn returns an error.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j := newJournal()
	if err := fn(ctx, &txView{v: view{s: s, j: j}}); err != nil {
		j.revert(s.st)
		return err
	}
	return nil
}

type txView struct {
	v view
}

func (t *txView) Tokens() store.TokenStore           { return &tokenStore{t.v} }
func (t *txView) Approvals() store.ApprovalStore     { return &approvalStore{t.v} }
func (t *txView) Transactions() store.TransactionLog { return &transactionLog{t.v} }
func (t *txView) Dedup() store.DedupIndex            { return &dedupIndex{t.v} }

// view is shared by all per-store views. Inside Atomic (j != nil) the write
// lock is already held, so the lock helpers are no-ops.
type view struct {
	s *Store
	j *journal
}

func (v view) rlock() func() {
	if v.j != nil {
		return func() {}
	}
	v.s.mu.RLock()
	return v.s.mu.RUnlock
}

func (v view) lock() func() {
	if v.j != nil {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func (v view) record(undo journalEntry) {
	if v.j != nil {
		v.j.append(undo)
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneUint64(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
