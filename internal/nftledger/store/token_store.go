package store

import (
	"context"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// TokenRecord is the authoritative state of one token.
type TokenRecord struct {
	ID       uint64
	Owner    types.Account
	Metadata types.Metadata
	MintedAt uint64 // ledger time, ns
}

// TokenStore maps token ids to owners and metadata. List and ListOwned
// return ids in ascending order strictly after prev (nil = from the start);
// take <= 0 means no limit.
type TokenStore interface {
	Create(ctx context.Context, rec TokenRecord) error
	Get(ctx context.Context, tokenID uint64) (TokenRecord, bool, error)
	GetOwner(ctx context.Context, tokenID uint64) (types.Account, bool, error)
	SetOwner(ctx context.Context, tokenID uint64, owner types.Account) error
	Exists(ctx context.Context, tokenID uint64) (bool, error)
	Count(ctx context.Context) (uint64, error)
	BalanceOf(ctx context.Context, owner types.Account) (uint64, error)
	List(ctx context.Context, prev *uint64, take int) ([]uint64, error)
	ListOwned(ctx context.Context, owner types.Account, prev *uint64, take int) ([]uint64, error)
}
