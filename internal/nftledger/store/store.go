package store

import (
	"context"
	"errors"
)

var (
	ErrAlreadyExists     = errors.New("record already exists")
	ErrNotFound          = errors.New("record not found")
	ErrApprovalNotFound  = errors.New("approval does not exist")
	ErrNonContiguousTxID = errors.New("transaction id out of sequence")
)

// Tx groups the stores touched by one ledger mutation.
type Tx interface {
	Tokens() TokenStore
	Approvals() ApprovalStore
	Transactions() TransactionLog
	Dedup() DedupIndex
}

// Store is a ledger backend. The views returned directly by a Store are for
// reads; every write happens inside Atomic so that a ledger item either
// commits all of its changes (state, log record, dedup entry) or none.
type Store interface {
	Tx
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
