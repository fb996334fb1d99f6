package service

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

const (
	opApproveToken      = "approve_token"
	opApproveCollection = "approve_collection"
)

// ApproveTokens grants spenders the right to transfer individual tokens
// owned by caller+from_subaccount.
func (l *Ledger) ApproveTokens(ctx context.Context, caller types.Principal, args []types.ApproveTokenArg) []*types.ApproveTokenResult {
	return runBatch[types.ApproveTokenArg, types.ApproveTokenError](l, opApproveToken, args, l.limits.MaxUpdateBatchSize,
		func(arg types.ApproveTokenArg) *types.ApproveTokenResult {
			return l.approveToken(ctx, caller, arg)
		})
}

func (l *Ledger) approveToken(ctx context.Context, caller types.Principal, arg types.ApproveTokenArg) *types.ApproveTokenResult {
	info := arg.ApprovalInfo
	owner := types.NewAccount(caller, info.FromSubaccount)
	spender := info.Spender.Canonical()

	return commitItem[types.ApproveTokenError](ctx, l, opApproveToken, func(ctx context.Context, tx store.Tx, now uint64) (*types.TransactionRecord, types.ApproveTokenError, error) {
		if g := l.checkApprovalInfo(info, spender); g != nil {
			return nil, *g, nil
		}
		if v := l.checkCreatedAt(info.CreatedAtTime, now); v != nil {
			return nil, v.(types.ApproveTokenError), nil
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
		if g := checkGrant(owner, spender, info.ExpiresAt, now); g != nil {
			return nil, *g, nil
		}

		existing, err := tx.Approvals().TokenApprovals(ctx, arg.TokenID, nil, 0)
		if err != nil {
			return nil, nil, err
		}
		replaces := false
		for _, r := range existing {
			if r.Owner.Equal(owner) && r.Spender.Equal(spender) {
				replaces = true
				break
			}
		}
		if g := l.checkApprovalCount(len(existing), replaces); g != nil {
			return nil, *g, nil
		}

		err = tx.Approvals().PutTokenApproval(ctx, store.TokenApprovalRecord{
			TokenID:   arg.TokenID,
			Owner:     owner,
			Spender:   spender,
			ExpiresAt: info.ExpiresAt,
			CreatedAt: createdAtOr(info.CreatedAtTime, now),
			Memo:      cloneMemo(info.Memo),
		})
		if err != nil {
			return nil, nil, err
		}

		rec := &types.TransactionRecord{Kind: types.TxApproveToken, TokenID: arg.TokenID, Memo: cloneMemo(info.Memo)}
		rec.SetFrom(owner)
		rec.SetSpender(spender)
		return rec, nil, nil
	}, nil)
}

// ApproveCollection grants spenders the right to transfer every token held,
// now or later, by caller+from_subaccount.
func (l *Ledger) ApproveCollection(ctx context.Context, caller types.Principal, args []types.ApproveCollectionArg) []*types.ApproveCollectionResult {
	return runBatch[types.ApproveCollectionArg, types.ApproveCollectionError](l, opApproveCollection, args, l.limits.MaxUpdateBatchSize,
		func(arg types.ApproveCollectionArg) *types.ApproveCollectionResult {
			return l.approveCollection(ctx, caller, arg)
		})
}

func (l *Ledger) approveCollection(ctx context.Context, caller types.Principal, arg types.ApproveCollectionArg) *types.ApproveCollectionResult {
	info := arg.ApprovalInfo
	owner := types.NewAccount(caller, info.FromSubaccount)
	spender := info.Spender.Canonical()

	return commitItem[types.ApproveCollectionError](ctx, l, opApproveCollection, func(ctx context.Context, tx store.Tx, now uint64) (*types.TransactionRecord, types.ApproveCollectionError, error) {
		if g := l.checkApprovalInfo(info, spender); g != nil {
			return nil, *g, nil
		}
		if err := owner.Validate(); err != nil {
			return nil, *invalidAccount("owner", err), nil
		}
		if v := l.checkCreatedAt(info.CreatedAtTime, now); v != nil {
			return nil, v.(types.ApproveCollectionError), nil
		}
		if g := checkGrant(owner, spender, info.ExpiresAt, now); g != nil {
			return nil, *g, nil
		}

		existing, err := tx.Approvals().CollectionApprovals(ctx, owner, nil, 0)
		if err != nil {
			return nil, nil, err
		}
		replaces := false
		for _, r := range existing {
			if r.Spender.Equal(spender) {
				replaces = true
				break
			}
		}
		if g := l.checkApprovalCount(len(existing), replaces); g != nil {
			return nil, *g, nil
		}

		err = tx.Approvals().PutCollectionApproval(ctx, store.CollectionApprovalRecord{
			Owner:     owner,
			Spender:   spender,
			ExpiresAt: info.ExpiresAt,
			CreatedAt: createdAtOr(info.CreatedAtTime, now),
			Memo:      cloneMemo(info.Memo),
		})
		if err != nil {
			return nil, nil, err
		}

		rec := &types.TransactionRecord{Kind: types.TxApproveCollection, Memo: cloneMemo(info.Memo)}
		rec.SetFrom(owner)
		rec.SetSpender(spender)
		return rec, nil, nil
	}, nil)
}

func (l *Ledger) checkApprovalInfo(info types.ApprovalInfo, spender types.Account) *types.GenericError {
	if g := l.checkMemo(info.Memo); g != nil {
		return g
	}
	if err := info.FromSubaccount.Validate(); err != nil {
		return invalidAccount("from", err)
	}
	if err := spender.Validate(); err != nil {
		return invalidAccount("spender", err)
	}
	return nil
}

// checkGrant rejects self-approval and approvals that are already expired.
func checkGrant(owner, spender types.Account, expiresAt *uint64, now uint64) *types.GenericError {
	if spender.Equal(owner) {
		return &types.GenericError{ErrorCode: types.ErrCodeSelfApproval, Message: "cannot approve own account"}
	}
	if expiresAt != nil && *expiresAt <= now {
		return &types.GenericError{
			ErrorCode: types.ErrCodeExpiredApproval,
			Message:   fmt.Sprintf("expires_at %d is not after ledger time %d", *expiresAt, now),
		}
	}
	return nil
}

func (l *Ledger) checkApprovalCount(existing int, replaces bool) *types.GenericError {
	limit := l.limits.MaxApprovals
	if limit <= 0 || replaces || existing < limit {
		return nil
	}
	return &types.GenericError{
		ErrorCode: types.ErrCodeTooManyApprovals,
		Message:   fmt.Sprintf("approval limit of %d reached", limit),
	}
}

func createdAtOr(createdAt *uint64, now uint64) uint64 {
	if createdAt != nil {
		return *createdAt
	}
	return now
}
