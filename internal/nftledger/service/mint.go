package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BrandonDHaskell/nftledger/internal/metrics"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

const opMint = "mint"

// Mint creates one token owned by arg.Owner. Only the collection minter may
// mint unless the collection is in test mode.
func (l *Ledger) Mint(ctx context.Context, caller types.Principal, arg types.MintArg) *types.MintResult {
	defer observe(opMint, time.Now())

	l.mu.Lock()
	defer l.mu.Unlock()

	res := commitItem[types.MintError](ctx, l, opMint, func(ctx context.Context, tx store.Tx, now uint64) (*types.TransactionRecord, types.MintError, error) {
		if strings.TrimSpace(string(caller)) == "" {
			return nil, types.Unauthorized{}, nil
		}
		if caller != l.coll.Minter && !l.coll.TestMode {
			return nil, types.Unauthorized{}, nil
		}

		owner := arg.Owner.Canonical()
		if err := owner.Validate(); err != nil {
			g := invalidAccount("owner", err)
			return nil, *g, nil
		}
		if g := checkTokenID(arg.TokenID); g != nil {
			return nil, *g, nil
		}
		if err := arg.Metadata.Validate(); err != nil {
			return nil, types.GenericError{ErrorCode: types.ErrCodeInvalidMetadata, Message: err.Error()}, nil
		}

		exists, err := tx.Tokens().Exists(ctx, arg.TokenID)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			return nil, types.TokenIDAlreadyExists{}, nil
		}
		if limit := l.coll.SupplyCap; limit != nil && l.supply.Load() >= *limit {
			return nil, types.SupplyCapReached{}, nil
		}

		meta := arg.Metadata
		if meta == nil {
			meta = types.Metadata{}
		}
		err = tx.Tokens().Create(ctx, store.TokenRecord{
			ID:       arg.TokenID,
			Owner:    owner,
			Metadata: meta,
			MintedAt: now,
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, types.TokenIDAlreadyExists{}, nil
		}
		if err != nil {
			return nil, nil, err
		}

		rec := &types.TransactionRecord{Kind: types.TxMint, TokenID: arg.TokenID}
		rec.SetTo(owner)
		return rec, nil, nil
	}, nil)

	if res.IsOk() {
		n := l.supply.Add(1)
		metrics.TotalSupply.Set(float64(n))
	}
	return res
}
