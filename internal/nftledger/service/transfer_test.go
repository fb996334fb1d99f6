package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/service"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// ── Transfer ──────────────────────────────────────────────────────────────

func TestTransfer_MovesOwnershipAndDropsTokenApprovals(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustMint(t, l, 1, alice)
	mustApproveToken(t, l, 1, alice, bob, nil)
	mustApproveCollection(t, l, alice, carol, nil)

	res := l.Transfer(ctx, "alice", []types.TransferArg{{To: dave, TokenID: 1, Memo: []byte("gift")}})
	if !res[0].IsOk() {
		t.Fatalf("transfer: %v", res[0].Err)
	}
	if got := ownerOf(t, l, 1); !got.Equal(dave) {
		t.Fatalf("owner = %v, want dave", got)
	}

	tokenApprovals, err := l.TokenApprovals(ctx, 1, nil, 0)
	if err != nil {
		t.Fatalf("TokenApprovals: %v", err)
	}
	if len(tokenApprovals) != 0 {
		t.Errorf("token approvals survived transfer: %+v", tokenApprovals)
	}
	collApprovals, err := l.CollectionApprovals(ctx, alice, nil, 0)
	if err != nil {
		t.Fatalf("CollectionApprovals: %v", err)
	}
	if len(collApprovals) != 1 {
		t.Errorf("collection approvals = %d, want 1 (untouched)", len(collApprovals))
	}

	txs, _ := l.GetTransactions(ctx, res[0].TxID, 1)
	if len(txs) != 1 {
		t.Fatalf("record %d not found", res[0].TxID)
	}
	rec := txs[0]
	if rec.Kind != types.TxTransfer || rec.FromPrincipal != "alice" || rec.ToPrincipal != "dave" || string(rec.Memo) != "gift" {
		t.Errorf("record = %+v", rec)
	}
}

func TestTransfer_Rejections(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	res := l.Transfer(ctx, "alice", []types.TransferArg{
		{To: bob, TokenID: 99},
		{To: bob, TokenID: 1, FromSubaccount: []byte{1, 2, 3}},
		{To: alice, TokenID: 1},
		{To: bob, TokenID: 1, Memo: make([]byte, 33)},
		{To: types.Account{}, TokenID: 1},
	})

	if _, ok := res[0].Err.(types.NonExistingTokenID); !ok {
		t.Errorf("unknown token: got %v", res[0].Err)
	}
	if code := genericCode(t, res[1].Err); code != types.ErrCodeInvalidAccount {
		t.Errorf("bad subaccount: code %d", code)
	}
	if _, ok := res[2].Err.(types.InvalidRecipient); !ok {
		t.Errorf("self transfer: got %v", res[2].Err)
	}
	if code := genericCode(t, res[3].Err); code != types.ErrCodeMemoTooLarge {
		t.Errorf("memo: code %d", code)
	}
	if code := genericCode(t, res[4].Err); code != types.ErrCodeInvalidAccount {
		t.Errorf("empty recipient: code %d", code)
	}

	res = l.Transfer(ctx, "bob", []types.TransferArg{{To: carol, TokenID: 1}})
	if _, ok := res[0].Err.(types.Unauthorized); !ok {
		t.Errorf("non-owner: got %v", res[0].Err)
	}

	sub := make([]byte, 32)
	sub[31] = 1
	res = l.Transfer(ctx, "alice", []types.TransferArg{{To: carol, TokenID: 1, FromSubaccount: sub}})
	if _, ok := res[0].Err.(types.Unauthorized); !ok {
		t.Errorf("wrong subaccount: got %v", res[0].Err)
	}

	if n, _ := l.TransactionCount(ctx); n != 1 {
		t.Errorf("rejections appended records: count %d", n)
	}
}

func TestTransfer_DuplicateReturnsFirstID(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	arg := types.TransferArg{To: bob, TokenID: 1, CreatedAtTime: u64(clock.Nanos())}
	first := l.Transfer(ctx, "alice", []types.TransferArg{arg})
	if !first[0].IsOk() {
		t.Fatalf("first: %v", first[0].Err)
	}

	clock.Advance(time.Second)
	second := l.Transfer(ctx, "alice", []types.TransferArg{arg})
	dup, ok := second[0].Err.(types.Duplicate)
	if !ok {
		t.Fatalf("second: got %v, want Duplicate", second[0].Err)
	}
	if dup.DuplicateOf != first[0].TxID {
		t.Errorf("duplicate_of = %d, want %d", dup.DuplicateOf, first[0].TxID)
	}

	txs, _ := l.GetTransactions(ctx, 0, 10)
	transfers := 0
	for _, tx := range txs {
		if tx.Kind == types.TxTransfer {
			transfers++
		}
	}
	if transfers != 1 {
		t.Errorf("transfer records = %d, want 1", transfers)
	}

	// Without created_at_time nothing is deduplicated.
	back := l.Transfer(ctx, "bob", []types.TransferArg{{To: alice, TokenID: 1}})
	again := l.Transfer(ctx, "alice", []types.TransferArg{{To: bob, TokenID: 1}})
	if !back[0].IsOk() || !again[0].IsOk() {
		t.Fatalf("plain transfers: %v, %v", back[0].Err, again[0].Err)
	}
}

func TestTransfer_TimeWindow(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	lim := l.Limits()
	now := clock.Nanos()
	tooOld := now - uint64((lim.TxWindow + lim.PermittedDrift + time.Second).Nanoseconds())
	future := now + uint64((lim.PermittedDrift + time.Second).Nanoseconds())
	edge := now + uint64(lim.PermittedDrift.Nanoseconds())

	res := l.Transfer(ctx, "alice", []types.TransferArg{
		{To: bob, TokenID: 1, CreatedAtTime: &tooOld},
		{To: bob, TokenID: 1, CreatedAtTime: &future},
	})
	if _, ok := res[0].Err.(types.TooOld); !ok {
		t.Errorf("old: got %v, want TooOld", res[0].Err)
	}
	cif, ok := res[1].Err.(types.CreatedInFuture)
	if !ok {
		t.Fatalf("future: got %v, want CreatedInFuture", res[1].Err)
	}
	if cif.LedgerTime != now {
		t.Errorf("ledger_time = %d, want %d", cif.LedgerTime, now)
	}

	res = l.Transfer(ctx, "alice", []types.TransferArg{{To: bob, TokenID: 1, CreatedAtTime: &edge}})
	if !res[0].IsOk() {
		t.Errorf("created_at at the drift edge: %v", res[0].Err)
	}
}

// ── Transfer-from ─────────────────────────────────────────────────────────

func TestTransferFrom_BatchWithBadMiddleItem(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	for id := uint64(1); id <= 3; id++ {
		mustMint(t, l, id, alice)
	}
	mustApproveCollection(t, l, alice, bob, nil)

	res := l.TransferFrom(ctx, "bob", []types.TransferFromArg{
		{From: alice, To: carol, TokenID: 1},
		{From: alice, To: carol, TokenID: 99},
		{From: alice, To: carol, TokenID: 3},
	})
	if len(res) != 3 {
		t.Fatalf("len = %d, want 3", len(res))
	}
	if !res[0].IsOk() || !res[2].IsOk() {
		t.Fatalf("outer items: %v, %v", res[0].Err, res[2].Err)
	}
	if _, ok := res[1].Err.(types.NonExistingTokenID); !ok {
		t.Errorf("middle: got %v, want NonExistingTokenId", res[1].Err)
	}
	if res[2].TxID != res[0].TxID+1 {
		t.Errorf("tx ids %d, %d are not consecutive", res[0].TxID, res[2].TxID)
	}

	for id, want := range map[uint64]types.Account{1: carol, 2: alice, 3: carol} {
		if got := ownerOf(t, l, id); !got.Equal(want) {
			t.Errorf("owner_of(%d) = %v, want %v", id, got, want)
		}
	}

	txs, _ := l.GetTransactions(ctx, res[0].TxID, 1)
	if txs[0].Kind != types.TxTransferFrom || txs[0].SpenderPrincipal != "bob" {
		t.Errorf("record = %+v", txs[0])
	}
}

func TestTransferFrom_ExpiredApprovalNeverHonoured(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	expires := clock.Nanos() + uint64(time.Minute.Nanoseconds())
	mustApproveToken(t, l, 1, alice, bob, &expires)

	clock.Advance(time.Minute)
	res := l.TransferFrom(ctx, "bob", []types.TransferFromArg{{From: alice, To: bob, TokenID: 1}})
	if _, ok := res[0].Err.(types.Unauthorized); !ok {
		t.Fatalf("got %v, want Unauthorized at expiry", res[0].Err)
	}

	listed, err := l.TokenApprovals(ctx, 1, nil, 0)
	if err != nil {
		t.Fatalf("TokenApprovals: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expired approval should stay listed until swept, got %d", len(listed))
	}

	st, err := l.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if st.ApprovalsPruned != 1 {
		t.Errorf("pruned = %d, want 1", st.ApprovalsPruned)
	}
	listed, _ = l.TokenApprovals(ctx, 1, nil, 0)
	if len(listed) != 0 {
		t.Errorf("approval still listed after sweep")
	}
}

func TestTransferFrom_RequiresOwnerAsFrom(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)
	mustApproveCollection(t, l, carol, bob, nil)

	res := l.TransferFrom(ctx, "bob", []types.TransferFromArg{{From: carol, To: dave, TokenID: 1}})
	if _, ok := res[0].Err.(types.Unauthorized); !ok {
		t.Errorf("from is not owner: got %v", res[0].Err)
	}

	// The owner may use transfer_from on its own tokens.
	res = l.TransferFrom(ctx, "alice", []types.TransferFromArg{{From: alice, To: dave, TokenID: 1}})
	if !res[0].IsOk() {
		t.Errorf("owner transfer_from: %v", res[0].Err)
	}
}

func TestTransferFrom_StandingVersusSingleUseApprovals(t *testing.T) {
	run := func(t *testing.T, singleUse bool) []*types.TransferFromResult {
		l, _ := newTestLedger(t, service.WithSingleUseApprovals(singleUse))
		mustMint(t, l, 1, alice)
		mustMint(t, l, 2, alice)
		mustApproveCollection(t, l, alice, bob, nil)

		return l.TransferFrom(context.Background(), "bob", []types.TransferFromArg{
			{From: alice, To: carol, TokenID: 1},
			{From: alice, To: carol, TokenID: 2},
		})
	}

	t.Run("standing", func(t *testing.T) {
		res := run(t, false)
		if !res[0].IsOk() || !res[1].IsOk() {
			t.Errorf("standing approval should cover both: %v, %v", res[0].Err, res[1].Err)
		}
	})
	t.Run("single use", func(t *testing.T) {
		res := run(t, true)
		if !res[0].IsOk() {
			t.Fatalf("first: %v", res[0].Err)
		}
		if _, ok := res[1].Err.(types.Unauthorized); !ok {
			t.Errorf("second: got %v, want Unauthorized", res[1].Err)
		}
	})
}

func TestTransferFrom_SingleUseConsumesOnlyTheAuthorisingApproval(t *testing.T) {
	l, _ := newTestLedger(t, service.WithSingleUseApprovals(true))
	ctx := context.Background()
	mustMint(t, l, 1, alice)
	mustMint(t, l, 2, alice)
	mustApproveToken(t, l, 1, alice, bob, nil)
	mustApproveCollection(t, l, alice, bob, nil)

	res := l.TransferFrom(ctx, "bob", []types.TransferFromArg{{From: alice, To: carol, TokenID: 1}})
	if !res[0].IsOk() {
		t.Fatalf("via token approval: %v", res[0].Err)
	}
	left, _ := l.CollectionApprovals(ctx, alice, nil, 0)
	if len(left) != 1 {
		t.Fatalf("collection approval consumed by a token-approved transfer")
	}

	res = l.TransferFrom(ctx, "bob", []types.TransferFromArg{{From: alice, To: carol, TokenID: 2}})
	if !res[0].IsOk() {
		t.Fatalf("via collection approval: %v", res[0].Err)
	}
	left, _ = l.CollectionApprovals(ctx, alice, nil, 0)
	if len(left) != 0 {
		t.Errorf("collection approval should be consumed")
	}
}
