package service

import (
	"context"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

const (
	opRevokeToken      = "revoke_token"
	opRevokeCollection = "revoke_collection"
)

// RevokeTokenApprovals removes the caller's approvals on individual tokens.
// Each item appends one revoke_token record however many approvals it
// removed.
func (l *Ledger) RevokeTokenApprovals(ctx context.Context, caller types.Principal, args []types.RevokeTokenApprovalArg) []*types.RevokeTokenApprovalResult {
	return runBatch[types.RevokeTokenApprovalArg, types.RevokeTokenApprovalError](l, opRevokeToken, args, l.limits.MaxRevokeApproval,
		func(arg types.RevokeTokenApprovalArg) *types.RevokeTokenApprovalResult {
			return l.revokeToken(ctx, caller, arg)
		})
}

func (l *Ledger) revokeToken(ctx context.Context, caller types.Principal, arg types.RevokeTokenApprovalArg) *types.RevokeTokenApprovalResult {
	owner := types.NewAccount(caller, arg.FromSubaccount)
	spender := canonicalPtr(arg.Spender)

	return commitItem[types.RevokeTokenApprovalError](ctx, l, opRevokeToken, func(ctx context.Context, tx store.Tx, now uint64) (*types.TransactionRecord, types.RevokeTokenApprovalError, error) {
		if g := l.checkRevokeFilters(arg.Memo, arg.FromSubaccount, spender); g != nil {
			return nil, *g, nil
		}
		if v := l.checkCreatedAt(arg.CreatedAtTime, now); v != nil {
			return nil, v.(types.RevokeTokenApprovalError), nil
		}

		tokenOwner, ok, err := tx.Tokens().GetOwner(ctx, arg.TokenID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, types.NonExistingTokenID{}, nil
		}
		if !tokenOwner.Equal(owner) {
			return nil, types.Unauthorized{}, nil
		}

		recs, err := tx.Approvals().TokenApprovals(ctx, arg.TokenID, nil, 0)
		if err != nil {
			return nil, nil, err
		}
		var matched []store.TokenApprovalRecord
		live := false
		for _, r := range recs {
			if !r.Owner.Equal(owner) || (spender != nil && !r.Spender.Equal(*spender)) {
				continue
			}
			matched = append(matched, r)
			live = live || r.LiveAt(now)
		}
		if !live {
			return nil, types.ApprovalDoesNotExist{}, nil
		}
		for _, r := range matched {
			if err := tx.Approvals().RemoveTokenApproval(ctx, r.TokenID, r.Owner, r.Spender); err != nil {
				return nil, nil, err
			}
		}

		rec := &types.TransactionRecord{Kind: types.TxRevokeToken, TokenID: arg.TokenID, Memo: cloneMemo(arg.Memo)}
		rec.SetFrom(owner)
		if spender != nil {
			rec.SetSpender(*spender)
		}
		return rec, nil, nil
	}, nil)
}

// RevokeCollectionApprovals removes collection approvals granted by
// caller+from_subaccount.
func (l *Ledger) RevokeCollectionApprovals(ctx context.Context, caller types.Principal, args []types.RevokeCollectionApprovalArg) []*types.RevokeCollectionApprovalResult {
	return runBatch[types.RevokeCollectionApprovalArg, types.RevokeCollectionApprovalError](l, opRevokeCollection, args, l.limits.MaxRevokeApproval,
		func(arg types.RevokeCollectionApprovalArg) *types.RevokeCollectionApprovalResult {
			return l.revokeCollection(ctx, caller, arg)
		})
}

func (l *Ledger) revokeCollection(ctx context.Context, caller types.Principal, arg types.RevokeCollectionApprovalArg) *types.RevokeCollectionApprovalResult {
	owner := types.NewAccount(caller, arg.FromSubaccount)
	spender := canonicalPtr(arg.Spender)

	return commitItem[types.RevokeCollectionApprovalError](ctx, l, opRevokeCollection, func(ctx context.Context, tx store.Tx, now uint64) (*types.TransactionRecord, types.RevokeCollectionApprovalError, error) {
		if g := l.checkRevokeFilters(arg.Memo, arg.FromSubaccount, spender); g != nil {
			return nil, *g, nil
		}
		if err := owner.Validate(); err != nil {
			return nil, *invalidAccount("owner", err), nil
		}
		if v := l.checkCreatedAt(arg.CreatedAtTime, now); v != nil {
			return nil, v.(types.RevokeCollectionApprovalError), nil
		}

		recs, err := tx.Approvals().CollectionApprovals(ctx, owner, nil, 0)
		if err != nil {
			return nil, nil, err
		}
		var matched []store.CollectionApprovalRecord
		live := false
		for _, r := range recs {
			if spender != nil && !r.Spender.Equal(*spender) {
				continue
			}
			matched = append(matched, r)
			live = live || r.LiveAt(now)
		}
		if !live {
			return nil, types.ApprovalDoesNotExist{}, nil
		}
		for _, r := range matched {
			if err := tx.Approvals().RemoveCollectionApproval(ctx, r.Owner, r.Spender); err != nil {
				return nil, nil, err
			}
		}

		rec := &types.TransactionRecord{Kind: types.TxRevokeCollection, Memo: cloneMemo(arg.Memo)}
		rec.SetFrom(owner)
		if spender != nil {
			rec.SetSpender(*spender)
		}
		return rec, nil, nil
	}, nil)
}

func (l *Ledger) checkRevokeFilters(memo []byte, fromSub types.Subaccount, spender *types.Account) *types.GenericError {
	if g := l.checkMemo(memo); g != nil {
		return g
	}
	if err := fromSub.Validate(); err != nil {
		return invalidAccount("from", err)
	}
	if spender != nil {
		if err := spender.Validate(); err != nil {
			return invalidAccount("spender", err)
		}
	}
	return nil
}

func canonicalPtr(a *types.Account) *types.Account {
	if a == nil {
		return nil
	}
	c := a.Canonical()
	return &c
}
