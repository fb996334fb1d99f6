package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

var ErrNoSeedMinter = errors.New("dev seed needs a minter or test mode")

// SeedDev mints n sample tokens, round robin across owners, when the ledger
// holds no tokens yet. It returns the number of tokens minted. Seeding goes
// through Mint so that the log and the counters stay consistent.
func SeedDev(ctx context.Context, l *Ledger, owners []types.Principal, n int) (int, error) {
	if len(owners) == 0 || n <= 0 {
		return 0, nil
	}
	supply, err := l.TotalSupply(ctx)
	if err != nil {
		return 0, err
	}
	if supply > 0 {
		l.logger.Info("dev seed skipped", "total_supply", supply)
		return 0, nil
	}

	minter := l.coll.Minter
	if minter == "" {
		if !l.coll.TestMode {
			return 0, ErrNoSeedMinter
		}
		minter = owners[0]
	}

	for i := 0; i < n; i++ {
		owner := owners[i%len(owners)]
		res := l.Mint(ctx, minter, types.MintArg{
			TokenID: uint64(i + 1),
			Owner:   types.NewAccount(owner, nil),
			Metadata: types.Metadata{
				{Key: "name", Value: types.TextValue(fmt.Sprintf("%s #%d", l.coll.Symbol, i+1))},
				{Key: "edition", Value: types.NatValue(uint64(i + 1))},
			},
		})
		if !res.IsOk() {
			return i, fmt.Errorf("seed token %d: %w", i+1, res.Err)
		}
	}
	l.logger.Info("dev seed complete", "tokens", n, "owners", len(owners))
	return n, nil
}
