package store

import (
	"context"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// TokenApprovalRecord is keyed by (TokenID, Owner, Spender).
type TokenApprovalRecord struct {
	TokenID   uint64
	Owner     types.Account
	Spender   types.Account
	ExpiresAt *uint64
	CreatedAt uint64
	Memo      []byte
}

func (r TokenApprovalRecord) LiveAt(now uint64) bool {
	return r.ExpiresAt == nil || *r.ExpiresAt > now
}

func (r TokenApprovalRecord) Approval() types.TokenApproval {
	return types.TokenApproval{
		TokenID:      r.TokenID,
		ApprovalInfo: approvalInfo(r.Owner, r.Spender, r.ExpiresAt, r.CreatedAt, r.Memo),
	}
}

// CollectionApprovalRecord is keyed by (Owner, Spender).
type CollectionApprovalRecord struct {
	Owner     types.Account
	Spender   types.Account
	ExpiresAt *uint64
	CreatedAt uint64
	Memo      []byte
}

func (r CollectionApprovalRecord) LiveAt(now uint64) bool {
	return r.ExpiresAt == nil || *r.ExpiresAt > now
}

func (r CollectionApprovalRecord) Approval() types.CollectionApproval {
	return types.CollectionApproval{
		ApprovalInfo: approvalInfo(r.Owner, r.Spender, r.ExpiresAt, r.CreatedAt, r.Memo),
	}
}

func approvalInfo(owner, spender types.Account, expiresAt *uint64, createdAt uint64, memo []byte) types.ApprovalInfo {
	info := types.ApprovalInfo{
		Spender:        spender,
		FromSubaccount: owner.Subaccount,
		ExpiresAt:      expiresAt,
		Memo:           memo,
	}
	if createdAt != 0 {
		c := createdAt
		info.CreatedAtTime = &c
	}
	return info
}

// ApprovalStore holds token-level and collection-level approvals. Put
// replaces any record with the same key. Listings are ordered by spender
// (types.Account.Less) and start strictly after prev when prev is set;
// they include expired records that have not been pruned yet.
type ApprovalStore interface {
	PutTokenApproval(ctx context.Context, rec TokenApprovalRecord) error
	PutCollectionApproval(ctx context.Context, rec CollectionApprovalRecord) error

	RemoveTokenApproval(ctx context.Context, tokenID uint64, owner, spender types.Account) error
	RemoveCollectionApproval(ctx context.Context, owner, spender types.Account) error
	RemoveTokenApprovals(ctx context.Context, tokenID uint64) (int64, error)

	TokenApprovals(ctx context.Context, tokenID uint64, prev *types.Account, take int) ([]TokenApprovalRecord, error)
	CollectionApprovals(ctx context.Context, owner types.Account, prev *types.Account, take int) ([]CollectionApprovalRecord, error)

	// IsApproved reports whether spender holds a live token-level approval
	// from owner for tokenID, or a live collection-level approval from owner.
	IsApproved(ctx context.Context, owner, spender types.Account, tokenID uint64, now uint64) (bool, error)

	// PruneExpired deletes records whose expiry is at or before now.
	PruneExpired(ctx context.Context, now uint64) (int64, error)
}
