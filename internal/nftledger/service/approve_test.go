package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/service"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// ── Approve ───────────────────────────────────────────────────────────────

func TestApproveTokens_Rejections(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)
	past := clock.Nanos()

	res := l.ApproveTokens(ctx, "alice", []types.ApproveTokenArg{
		{TokenID: 99, ApprovalInfo: types.ApprovalInfo{Spender: bob}},
		{TokenID: 1, ApprovalInfo: types.ApprovalInfo{Spender: alice}},
		{TokenID: 1, ApprovalInfo: types.ApprovalInfo{Spender: bob, ExpiresAt: &past}},
		{TokenID: 1, ApprovalInfo: types.ApprovalInfo{Spender: types.Account{}}},
	})
	if _, ok := res[0].Err.(types.NonExistingTokenID); !ok {
		t.Errorf("unknown token: got %v", res[0].Err)
	}
	if code := genericCode(t, res[1].Err); code != types.ErrCodeSelfApproval {
		t.Errorf("self approval: code %d", code)
	}
	if code := genericCode(t, res[2].Err); code != types.ErrCodeExpiredApproval {
		t.Errorf("expired: code %d", code)
	}
	if code := genericCode(t, res[3].Err); code != types.ErrCodeInvalidAccount {
		t.Errorf("empty spender: code %d", code)
	}

	res = l.ApproveTokens(ctx, "bob", []types.ApproveTokenArg{{TokenID: 1, ApprovalInfo: types.ApprovalInfo{Spender: carol}}})
	if _, ok := res[0].Err.(types.Unauthorized); !ok {
		t.Errorf("non-owner: got %v", res[0].Err)
	}
}

func TestApproveTokens_ReplacesSameKey(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	mustApproveToken(t, l, 1, alice, bob, nil)
	later := clock.Nanos() + uint64(time.Hour.Nanoseconds())
	mustApproveToken(t, l, 1, alice, bob, &later)

	listed, err := l.TokenApprovals(ctx, 1, nil, 0)
	if err != nil {
		t.Fatalf("TokenApprovals: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("approvals = %d, want 1", len(listed))
	}
	info := listed[0].ApprovalInfo
	if info.ExpiresAt == nil || *info.ExpiresAt != later {
		t.Errorf("expires_at = %v, want %d", info.ExpiresAt, later)
	}
	if info.CreatedAtTime == nil || *info.CreatedAtTime != clock.Nanos() {
		t.Errorf("created_at_time = %v, want ledger time", info.CreatedAtTime)
	}
}

func TestApprove_LimitPerTokenAndCollection(t *testing.T) {
	lim := service.DefaultLimits()
	lim.MaxApprovals = 2
	l, _ := newTestLedger(t, service.WithLimits(lim))
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	mustApproveToken(t, l, 1, alice, bob, nil)
	mustApproveToken(t, l, 1, alice, carol, nil)
	res := l.ApproveTokens(ctx, "alice", []types.ApproveTokenArg{{TokenID: 1, ApprovalInfo: types.ApprovalInfo{Spender: dave}}})
	if code := genericCode(t, res[0].Err); code != types.ErrCodeTooManyApprovals {
		t.Errorf("token limit: code %d", code)
	}
	// Replacing an existing key is not a new approval.
	mustApproveToken(t, l, 1, alice, bob, nil)

	mustApproveCollection(t, l, alice, bob, nil)
	mustApproveCollection(t, l, alice, carol, nil)
	cres := l.ApproveCollection(ctx, "alice", []types.ApproveCollectionArg{{ApprovalInfo: types.ApprovalInfo{Spender: dave}}})
	if code := genericCode(t, cres[0].Err); code != types.ErrCodeTooManyApprovals {
		t.Errorf("collection limit: code %d", code)
	}
}

func TestApproveCollection_CoversLaterTokens(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustApproveCollection(t, l, alice, bob, nil)
	mustMint(t, l, 7, alice)

	res := l.TransferFrom(ctx, "bob", []types.TransferFromArg{{From: alice, To: carol, TokenID: 7}})
	if !res[0].IsOk() {
		t.Fatalf("transfer_from: %v", res[0].Err)
	}

	txs, _ := l.GetTransactions(ctx, 0, 1)
	if txs[0].Kind != types.TxApproveCollection || txs[0].FromPrincipal != "alice" || txs[0].SpenderPrincipal != "bob" {
		t.Errorf("approve record = %+v", txs[0])
	}
}

// ── Revoke ────────────────────────────────────────────────────────────────

func TestRevokeTokenApprovals_MissingApproval(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	res := l.RevokeTokenApprovals(ctx, "alice", []types.RevokeTokenApprovalArg{{TokenID: 1, Spender: &bob}})
	if _, ok := res[0].Err.(types.ApprovalDoesNotExist); !ok {
		t.Errorf("got %v, want ApprovalDoesNotExist", res[0].Err)
	}
	res = l.RevokeTokenApprovals(ctx, "alice", []types.RevokeTokenApprovalArg{{TokenID: 9}})
	if _, ok := res[0].Err.(types.NonExistingTokenID); !ok {
		t.Errorf("got %v, want NonExistingTokenId", res[0].Err)
	}
	res = l.RevokeTokenApprovals(ctx, "bob", []types.RevokeTokenApprovalArg{{TokenID: 1}})
	if _, ok := res[0].Err.(types.Unauthorized); !ok {
		t.Errorf("got %v, want Unauthorized", res[0].Err)
	}
}

func TestRevokeTokenApprovals_BlocksLaterTransferFrom(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)
	mustApproveToken(t, l, 1, alice, bob, nil)

	res := l.RevokeTokenApprovals(ctx, "alice", []types.RevokeTokenApprovalArg{{TokenID: 1, Spender: &bob}})
	if !res[0].IsOk() {
		t.Fatalf("revoke: %v", res[0].Err)
	}

	tf := l.TransferFrom(ctx, "bob", []types.TransferFromArg{{From: alice, To: bob, TokenID: 1}})
	if _, ok := tf[0].Err.(types.Unauthorized); !ok {
		t.Errorf("transfer_from after revoke: got %v, want Unauthorized", tf[0].Err)
	}

	txs, _ := l.GetTransactions(ctx, res[0].TxID, 1)
	if txs[0].Kind != types.TxRevokeToken || txs[0].SpenderPrincipal != "bob" {
		t.Errorf("revoke record = %+v", txs[0])
	}
}

func TestRevokeCollectionApprovals_WithoutSpenderRemovesAll(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustApproveCollection(t, l, alice, bob, nil)
	mustApproveCollection(t, l, alice, carol, nil)
	before, _ := l.TransactionCount(ctx)

	res := l.RevokeCollectionApprovals(ctx, "alice", []types.RevokeCollectionApprovalArg{{}})
	if !res[0].IsOk() {
		t.Fatalf("revoke all: %v", res[0].Err)
	}
	left, _ := l.CollectionApprovals(ctx, alice, nil, 0)
	if len(left) != 0 {
		t.Errorf("approvals left = %d, want 0", len(left))
	}
	after, _ := l.TransactionCount(ctx)
	if after != before+1 {
		t.Errorf("revoke appended %d records, want 1", after-before)
	}
	txs, _ := l.GetTransactions(ctx, res[0].TxID, 1)
	if txs[0].SpenderPrincipal != "" {
		t.Errorf("spender recorded without a filter: %+v", txs[0])
	}

	res = l.RevokeCollectionApprovals(ctx, "alice", []types.RevokeCollectionApprovalArg{{}})
	if _, ok := res[0].Err.(types.ApprovalDoesNotExist); !ok {
		t.Errorf("second revoke: got %v, want ApprovalDoesNotExist", res[0].Err)
	}
}

func TestRevoke_ExpiredOnlyCountsAsMissing(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	expires := clock.Nanos() + uint64(time.Second.Nanoseconds())
	mustApproveCollection(t, l, alice, bob, &expires)
	clock.Advance(2 * time.Second)

	res := l.RevokeCollectionApprovals(ctx, "alice", []types.RevokeCollectionApprovalArg{{Spender: &bob}})
	if _, ok := res[0].Err.(types.ApprovalDoesNotExist); !ok {
		t.Errorf("got %v, want ApprovalDoesNotExist", res[0].Err)
	}
}

// ── is_approved ───────────────────────────────────────────────────────────

func TestIsApproved(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)
	mustApproveToken(t, l, 1, alice, bob, nil)
	mustApproveCollection(t, l, alice, carol, nil)

	sub := make([]byte, 32)
	sub[0] = 9
	got, err := l.IsApproved(ctx, []types.IsApprovedArg{
		{Spender: bob, TokenID: 1},
		{Spender: carol, TokenID: 1},
		{Spender: dave, TokenID: 1},
		{Spender: bob, TokenID: 1, FromSubaccount: sub},
		{Spender: bob, TokenID: 2},
	})
	if err != nil {
		t.Fatalf("IsApproved: %v", err)
	}
	want := []bool{true, true, false, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("is_approved[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestIsApproved_OwnerOnSubaccount(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	sub := make([]byte, 32)
	sub[31] = 4
	aliceSub := types.NewAccount("alice", sub)
	mustMint(t, l, 1, aliceSub)
	mustApproveCollection(t, l, aliceSub, bob, nil)

	got, err := l.IsApproved(ctx, []types.IsApprovedArg{
		{Spender: bob, TokenID: 1},
		{Spender: bob, TokenID: 1, FromSubaccount: sub},
	})
	if err != nil {
		t.Fatalf("IsApproved: %v", err)
	}
	// An absent from_subaccount names the default subaccount, not "any".
	if got[0] {
		t.Error("absent from_subaccount matched an owner on a non-default subaccount")
	}
	if !got[1] {
		t.Error("explicit from_subaccount of the owner should be approved")
	}
}

// ── Time window and deduplication ─────────────────────────────────────────

func TestTimeWindow_AllDelegatedOperations(t *testing.T) {
	ctx := context.Background()

	// Each case submits one item with the given created_at_time and returns
	// its rejection, or nil when it committed.
	cases := []struct {
		name string
		run  func(l *service.Ledger, createdAt *uint64) any
	}{
		{"transfer_from", func(l *service.Ledger, createdAt *uint64) any {
			res := l.TransferFrom(ctx, "carol", []types.TransferFromArg{{
				From: alice, To: dave, TokenID: 1, CreatedAtTime: createdAt,
			}})
			return res[0].Err
		}},
		{"approve_tokens", func(l *service.Ledger, createdAt *uint64) any {
			res := l.ApproveTokens(ctx, "alice", []types.ApproveTokenArg{{
				TokenID:      1,
				ApprovalInfo: types.ApprovalInfo{Spender: dave, CreatedAtTime: createdAt},
			}})
			return res[0].Err
		}},
		{"approve_collection", func(l *service.Ledger, createdAt *uint64) any {
			res := l.ApproveCollection(ctx, "alice", []types.ApproveCollectionArg{{
				ApprovalInfo: types.ApprovalInfo{Spender: dave, CreatedAtTime: createdAt},
			}})
			return res[0].Err
		}},
		{"revoke_token_approvals", func(l *service.Ledger, createdAt *uint64) any {
			res := l.RevokeTokenApprovals(ctx, "alice", []types.RevokeTokenApprovalArg{{
				TokenID: 1, Spender: &bob, CreatedAtTime: createdAt,
			}})
			return res[0].Err
		}},
		{"revoke_collection_approvals", func(l *service.Ledger, createdAt *uint64) any {
			res := l.RevokeCollectionApprovals(ctx, "alice", []types.RevokeCollectionApprovalArg{{
				Spender: &carol, CreatedAtTime: createdAt,
			}})
			return res[0].Err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, clock := newTestLedger(t)
			mustMint(t, l, 1, alice)
			mustApproveToken(t, l, 1, alice, bob, nil)
			mustApproveCollection(t, l, alice, carol, nil)

			lim := l.Limits()
			now := clock.Nanos()
			tooOld := now - uint64((lim.TxWindow + lim.PermittedDrift + time.Second).Nanoseconds())
			future := now + uint64((lim.PermittedDrift + time.Second).Nanoseconds())

			if err := tc.run(l, &tooOld); err == nil {
				t.Fatal("too old: committed")
			} else if _, ok := err.(types.TooOld); !ok {
				t.Errorf("too old: got %v, want TooOld", err)
			}

			err := tc.run(l, &future)
			cif, ok := err.(types.CreatedInFuture)
			if !ok {
				t.Fatalf("future: got %v, want CreatedInFuture", err)
			}
			if cif.LedgerTime != now {
				t.Errorf("ledger_time = %d, want %d", cif.LedgerTime, now)
			}

			if n, _ := l.TransactionCount(ctx); n != 3 {
				t.Errorf("rejections appended records: count %d, want 3", n)
			}
		})
	}
}

func TestTransferFrom_DuplicateReturnsFirstID(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)
	mustApproveCollection(t, l, alice, carol, nil)

	arg := types.TransferFromArg{From: alice, To: dave, TokenID: 1, CreatedAtTime: u64(clock.Nanos())}
	first := l.TransferFrom(ctx, "carol", []types.TransferFromArg{arg})
	if !first[0].IsOk() {
		t.Fatalf("first: %v", first[0].Err)
	}

	clock.Advance(time.Second)
	second := l.TransferFrom(ctx, "carol", []types.TransferFromArg{arg})
	dup, ok := second[0].Err.(types.Duplicate)
	if !ok {
		t.Fatalf("second: got %v, want Duplicate", second[0].Err)
	}
	if dup.DuplicateOf != first[0].TxID {
		t.Errorf("duplicate_of = %d, want %d", dup.DuplicateOf, first[0].TxID)
	}
	if got := ownerOf(t, l, 1); got == nil || !got.Equal(dave) {
		t.Errorf("owner = %v, want dave", got)
	}
	if n, _ := l.TransactionCount(ctx); n != 3 {
		t.Errorf("transaction count = %d, want 3", n)
	}
}
