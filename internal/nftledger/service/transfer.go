package service

import (
	"context"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

const (
	opTransfer     = "transfer"
	opTransferFrom = "transfer_from"
)

// Transfer moves tokens owned by caller+from_subaccount. Items are applied
// in order and independently; a rejected item leaves no trace.
func (l *Ledger) Transfer(ctx context.Context, caller types.Principal, args []types.TransferArg) []*types.TransferResult {
	return runBatch[types.TransferArg, types.TransferError](l, opTransfer, args, l.limits.MaxUpdateBatchSize,
		func(arg types.TransferArg) *types.TransferResult {
			return l.transfer(ctx, caller, arg)
		})
}

func (l *Ledger) transfer(ctx context.Context, caller types.Principal, arg types.TransferArg) *types.TransferResult {
	from := types.NewAccount(caller, arg.FromSubaccount)
	to := arg.To.Canonical()
	key := dedupKey(types.TxTransfer, from, from, to, arg.TokenID, arg.Memo, arg.CreatedAtTime)

	return commitItem[types.TransferError](ctx, l, opTransfer, func(ctx context.Context, tx store.Tx, now uint64) (*types.TransactionRecord, types.TransferError, error) {
		if g := l.checkMemo(arg.Memo); g != nil {
			return nil, *g, nil
		}
		if err := arg.FromSubaccount.Validate(); err != nil {
			return nil, *invalidAccount("from", err), nil
		}
		if err := to.Validate(); err != nil {
			return nil, *invalidAccount("to", err), nil
		}
		if v := l.checkCreatedAt(arg.CreatedAtTime, now); v != nil {
			return nil, v.(types.TransferError), nil
		}
		if id, dup, err := lookupDuplicate(ctx, tx, key); err != nil {
			return nil, nil, err
		} else if dup {
			return nil, types.Duplicate{DuplicateOf: id}, nil
		}

		owner, ok, err := tx.Tokens().GetOwner(ctx, arg.TokenID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, types.NonExistingTokenID{}, nil
		}
		if !owner.Equal(from) {
			return nil, types.Unauthorized{}, nil
		}
		if owner.Equal(to) {
			return nil, types.InvalidRecipient{}, nil
		}

		if err := moveToken(ctx, tx, arg.TokenID, to); err != nil {
			return nil, nil, err
		}

		rec := &types.TransactionRecord{Kind: types.TxTransfer, TokenID: arg.TokenID, Memo: cloneMemo(arg.Memo)}
		rec.SetFrom(from)
		rec.SetTo(to)
		return rec, nil, nil
	}, rememberFn(key, arg.CreatedAtTime))
}

// TransferFrom moves tokens on behalf of their owner. The caller account
// (caller+spender_subaccount) must be the owner or hold a live approval.
func (l *Ledger) TransferFrom(ctx context.Context, caller types.Principal, args []types.TransferFromArg) []*types.TransferFromResult {
	return runBatch[types.TransferFromArg, types.TransferFromError](l, opTransferFrom, args, l.limits.MaxUpdateBatchSize,
		func(arg types.TransferFromArg) *types.TransferFromResult {
			return l.transferFrom(ctx, caller, arg)
		})
}

func (l *Ledger) transferFrom(ctx context.Context, caller types.Principal, arg types.TransferFromArg) *types.TransferFromResult {
	spender := types.NewAccount(caller, arg.SpenderSubaccount)
	from := arg.From.Canonical()
	to := arg.To.Canonical()
	key := dedupKey(types.TxTransferFrom, spender, from, to, arg.TokenID, arg.Memo, arg.CreatedAtTime)

	return commitItem[types.TransferFromError](ctx, l, opTransferFrom, func(ctx context.Context, tx store.Tx, now uint64) (*types.TransactionRecord, types.TransferFromError, error) {
		if g := l.checkMemo(arg.Memo); g != nil {
			return nil, *g, nil
		}
		if err := arg.SpenderSubaccount.Validate(); err != nil {
			return nil, *invalidAccount("spender", err), nil
		}
		if err := from.Validate(); err != nil {
			return nil, *invalidAccount("from", err), nil
		}
		if err := to.Validate(); err != nil {
			return nil, *invalidAccount("to", err), nil
		}
		if v := l.checkCreatedAt(arg.CreatedAtTime, now); v != nil {
			return nil, v.(types.TransferFromError), nil
		}
		if id, dup, err := lookupDuplicate(ctx, tx, key); err != nil {
			return nil, nil, err
		} else if dup {
			return nil, types.Duplicate{DuplicateOf: id}, nil
		}

		owner, ok, err := tx.Tokens().GetOwner(ctx, arg.TokenID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, types.NonExistingTokenID{}, nil
		}
		if !owner.Equal(from) {
			return nil, types.Unauthorized{}, nil
		}

		consumeCollection := false
		if !spender.Equal(from) {
			approved, err := tx.Approvals().IsApproved(ctx, from, spender, arg.TokenID, now)
			if err != nil {
				return nil, nil, err
			}
			if !approved {
				return nil, types.Unauthorized{}, nil
			}
			if l.singleUse {
				viaToken, err := liveTokenApproval(ctx, tx, arg.TokenID, from, spender, now)
				if err != nil {
					return nil, nil, err
				}
				consumeCollection = !viaToken
			}
		}
		if owner.Equal(to) {
			return nil, types.InvalidRecipient{}, nil
		}

		if err := moveToken(ctx, tx, arg.TokenID, to); err != nil {
			return nil, nil, err
		}
		if consumeCollection {
			if err := tx.Approvals().RemoveCollectionApproval(ctx, from, spender); err != nil {
				return nil, nil, err
			}
		}

		rec := &types.TransactionRecord{Kind: types.TxTransferFrom, TokenID: arg.TokenID, Memo: cloneMemo(arg.Memo)}
		rec.SetFrom(from)
		rec.SetTo(to)
		rec.SetSpender(spender)
		return rec, nil, nil
	}, rememberFn(key, arg.CreatedAtTime))
}

// moveToken reassigns ownership and drops every token-level approval of
// the token. Collection approvals are untouched.
func moveToken(ctx context.Context, tx store.Tx, tokenID uint64, to types.Account) error {
	if err := tx.Tokens().SetOwner(ctx, tokenID, to); err != nil {
		return err
	}
	_, err := tx.Approvals().RemoveTokenApprovals(ctx, tokenID)
	return err
}

func liveTokenApproval(ctx context.Context, tx store.Tx, tokenID uint64, owner, spender types.Account, now uint64) (bool, error) {
	recs, err := tx.Approvals().TokenApprovals(ctx, tokenID, nil, 0)
	if err != nil {
		return false, err
	}
	for _, r := range recs {
		if r.Owner.Equal(owner) && r.Spender.Equal(spender) && r.LiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}
