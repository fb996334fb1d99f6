package service

import (
	"context"
	"fmt"
	"math"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// Queries read committed store state and never take the mutation lock.

var supportedStandards = []types.Standard{
	{Name: "ICRC-7", URL: "https://github.com/dfinity/ICRC/blob/main/ICRCs/ICRC-7/ICRC-7.md"},
	{Name: "ICRC-37", URL: "https://github.com/dfinity/ICRC/blob/main/ICRCs/ICRC-37/ICRC-37.md"},
}

func (l *Ledger) Name() string   { return l.coll.Name }
func (l *Ledger) Symbol() string { return l.coll.Symbol }

// Description returns nil when the collection has none.
func (l *Ledger) Description() *string {
	if l.coll.Description == "" {
		return nil
	}
	d := l.coll.Description
	return &d
}

func (l *Ledger) SupplyCap() *uint64 {
	if l.coll.SupplyCap == nil {
		return nil
	}
	c := *l.coll.SupplyCap
	return &c
}

func (l *Ledger) Limits() Limits { return l.limits }

func (l *Ledger) SupportedStandards() []types.Standard {
	out := make([]types.Standard, len(supportedStandards))
	copy(out, supportedStandards)
	return out
}

func (l *Ledger) TotalSupply(ctx context.Context) (uint64, error) {
	n, err := l.store.Tokens().Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("total supply: %w", err)
	}
	return n, nil
}

func (l *Ledger) CollectionMetadata(ctx context.Context) (types.Metadata, error) {
	supply, err := l.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	lim := l.limits
	md := types.Metadata{
		{Key: "icrc7:name", Value: types.TextValue(l.coll.Name)},
		{Key: "icrc7:symbol", Value: types.TextValue(l.coll.Symbol)},
		{Key: "icrc7:total_supply", Value: types.NatValue(supply)},
	}
	if l.coll.Description != "" {
		md = append(md, types.MetadataEntry{Key: "icrc7:description", Value: types.TextValue(l.coll.Description)})
	}
	if l.coll.SupplyCap != nil {
		md = append(md, types.MetadataEntry{Key: "icrc7:supply_cap", Value: types.NatValue(*l.coll.SupplyCap)})
	}
	md = append(md,
		types.MetadataEntry{Key: "icrc7:max_memo_size", Value: types.NatValue(uint64(lim.MaxMemoSize))},
		types.MetadataEntry{Key: "icrc7:max_update_batch_size", Value: types.NatValue(uint64(lim.MaxUpdateBatchSize))},
		types.MetadataEntry{Key: "icrc7:default_take_value", Value: types.NatValue(uint64(lim.DefaultTake))},
		types.MetadataEntry{Key: "icrc7:max_take_value", Value: types.NatValue(uint64(lim.MaxTake))},
		types.MetadataEntry{Key: "icrc7:tx_window", Value: types.NatValue(uint64(lim.TxWindow.Seconds()))},
		types.MetadataEntry{Key: "icrc7:permitted_drift", Value: types.NatValue(uint64(lim.PermittedDrift.Seconds()))},
		types.MetadataEntry{Key: "icrc37:max_approvals_per_token_or_collection", Value: types.NatValue(uint64(lim.MaxApprovals))},
		types.MetadataEntry{Key: "icrc37:max_revoke_approvals", Value: types.NatValue(uint64(lim.MaxRevokeApproval))},
	)
	return md, nil
}

// TokenMetadata returns one entry per id: nil for unknown tokens, an empty
// non-nil Metadata for tokens minted without metadata.
func (l *Ledger) TokenMetadata(ctx context.Context, ids []uint64) ([]types.Metadata, error) {
	out := make([]types.Metadata, len(ids))
	for i, id := range ids {
		if id > math.MaxInt64 {
			continue
		}
		rec, ok, err := l.store.Tokens().Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("token metadata %d: %w", id, err)
		}
		if !ok {
			continue
		}
		if rec.Metadata == nil {
			rec.Metadata = types.Metadata{}
		}
		out[i] = rec.Metadata
	}
	return out, nil
}

func (l *Ledger) OwnerOf(ctx context.Context, ids []uint64) ([]*types.Account, error) {
	out := make([]*types.Account, len(ids))
	for i, id := range ids {
		if id > math.MaxInt64 {
			continue
		}
		owner, ok, err := l.store.Tokens().GetOwner(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("owner of %d: %w", id, err)
		}
		if ok {
			out[i] = &owner
		}
	}
	return out, nil
}

func (l *Ledger) BalanceOf(ctx context.Context, accounts []types.Account) ([]uint64, error) {
	out := make([]uint64, len(accounts))
	for i, a := range accounts {
		n, err := l.store.Tokens().BalanceOf(ctx, a.Canonical())
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", a, err)
		}
		out[i] = n
	}
	return out, nil
}

// Tokens lists token ids in ascending order strictly after prev.
func (l *Ledger) Tokens(ctx context.Context, prev *uint64, take int) ([]uint64, error) {
	if prev != nil && *prev > math.MaxInt64 {
		return []uint64{}, nil
	}
	ids, err := l.store.Tokens().List(ctx, prev, l.clampTake(take))
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return nonNil(ids), nil
}

func (l *Ledger) TokensOf(ctx context.Context, account types.Account, prev *uint64, take int) ([]uint64, error) {
	if prev != nil && *prev > math.MaxInt64 {
		return []uint64{}, nil
	}
	ids, err := l.store.Tokens().ListOwned(ctx, account.Canonical(), prev, l.clampTake(take))
	if err != nil {
		return nil, fmt.Errorf("list tokens of %s: %w", account, err)
	}
	return nonNil(ids), nil
}

// IsApproved answers each arg against the token's current owner, whose
// subaccount must equal from_subaccount (absent means default).
func (l *Ledger) IsApproved(ctx context.Context, args []types.IsApprovedArg) ([]bool, error) {
	now := l.LedgerTime()
	out := make([]bool, len(args))
	for i, a := range args {
		if a.TokenID > math.MaxInt64 {
			continue
		}
		owner, ok, err := l.store.Tokens().GetOwner(ctx, a.TokenID)
		if err != nil {
			return nil, fmt.Errorf("is approved %d: %w", a.TokenID, err)
		}
		if !ok || !owner.Subaccount.Equal(a.FromSubaccount) {
			continue
		}
		approved, err := l.store.Approvals().IsApproved(ctx, owner, a.Spender.Canonical(), a.TokenID, now)
		if err != nil {
			return nil, fmt.Errorf("is approved %d: %w", a.TokenID, err)
		}
		out[i] = approved
	}
	return out, nil
}

// TokenApprovals lists approvals of one token ordered by spender, starting
// strictly after prev. Expired records are listed until swept.
func (l *Ledger) TokenApprovals(ctx context.Context, tokenID uint64, prev *types.Account, take int) ([]types.TokenApproval, error) {
	if tokenID > math.MaxInt64 {
		return []types.TokenApproval{}, nil
	}
	recs, err := l.store.Approvals().TokenApprovals(ctx, tokenID, canonicalPtr(prev), l.clampTake(take))
	if err != nil {
		return nil, fmt.Errorf("token approvals %d: %w", tokenID, err)
	}
	out := make([]types.TokenApproval, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Approval())
	}
	return out, nil
}

func (l *Ledger) CollectionApprovals(ctx context.Context, owner types.Account, prev *types.Account, take int) ([]types.CollectionApproval, error) {
	recs, err := l.store.Approvals().CollectionApprovals(ctx, owner.Canonical(), canonicalPtr(prev), l.clampTake(take))
	if err != nil {
		return nil, fmt.Errorf("collection approvals %s: %w", owner, err)
	}
	out := make([]types.CollectionApproval, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Approval())
	}
	return out, nil
}

// GetTransactions returns up to length records starting at id start, in
// ascending id order.
func (l *Ledger) GetTransactions(ctx context.Context, start uint64, length int) ([]types.TransactionRecord, error) {
	if length <= 0 {
		return []types.TransactionRecord{}, nil
	}
	recs, err := l.store.Transactions().Range(ctx, start, length)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	if recs == nil {
		recs = []types.TransactionRecord{}
	}
	return recs, nil
}

func (l *Ledger) TransactionCount(ctx context.Context) (uint64, error) {
	n, err := l.store.Transactions().Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("transaction count: %w", err)
	}
	return n, nil
}

func (l *Ledger) clampTake(take int) int {
	switch {
	case take <= 0:
		return l.limits.DefaultTake
	case take > l.limits.MaxTake:
		return l.limits.MaxTake
	}
	return take
}

func nonNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}
