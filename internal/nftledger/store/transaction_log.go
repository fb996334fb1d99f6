package store

import (
	"context"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// TransactionLog is the append-only ledger history. Ids start at 0 and are
// assigned on Append without gaps.
type TransactionLog interface {
	Append(ctx context.Context, rec types.TransactionRecord) (uint64, error)
	Range(ctx context.Context, start uint64, length int) ([]types.TransactionRecord, error)
	Len(ctx context.Context) (uint64, error)
	Last(ctx context.Context) (types.TransactionRecord, bool, error)
}

// DedupIndex remembers fingerprints of committed requests that carried a
// created_at_time, so that retries inside the transaction window resolve to
// the original transaction id.
type DedupIndex interface {
	Lookup(ctx context.Context, key string) (uint64, bool, error)
	Remember(ctx context.Context, key string, txID uint64, createdAt uint64) error
	PruneOlderThan(ctx context.Context, cutoff uint64) (int64, error)
}
