package service_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/service"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

func TestCollectionMetadata(t *testing.T) {
	coll := testCollection()
	coll.Description = "for tests"
	coll.SupplyCap = u64(10)
	l, _ := newTestLedgerWith(t, coll)
	mustMint(t, l, 1, alice)

	md, err := l.CollectionMetadata(context.Background())
	if err != nil {
		t.Fatalf("CollectionMetadata: %v", err)
	}
	if md[0].Key != "icrc7:name" || *md[0].Value.Text != "Test Collection" {
		t.Errorf("first entry = %+v", md[0])
	}
	checks := map[string]uint64{
		"icrc7:total_supply":          1,
		"icrc7:supply_cap":            10,
		"icrc7:max_memo_size":         32,
		"icrc7:tx_window":             uint64((24 * time.Hour).Seconds()),
		"icrc7:permitted_drift":       120,
		"icrc37:max_revoke_approvals": uint64(service.DefaultLimits().MaxRevokeApproval),
	}
	for key, want := range checks {
		v, ok := md.Get(key)
		if !ok || v.Nat == nil || *v.Nat != want {
			t.Errorf("%s = %v, want Nat(%d)", key, v, want)
		}
	}
	if v, ok := md.Get("icrc7:description"); !ok || *v.Text != "for tests" {
		t.Errorf("description = %v", v)
	}

	std := l.SupportedStandards()
	if len(std) != 2 || std[0].Name != "ICRC-7" || std[1].Name != "ICRC-37" {
		t.Errorf("standards = %+v", std)
	}
	if l.Description() == nil || l.SupplyCap() == nil || *l.SupplyCap() != 10 {
		t.Error("description and supply cap should be set")
	}
}

func TestCollectionMetadata_OmitsUnsetOptionalKeys(t *testing.T) {
	l, _ := newTestLedger(t)
	md, err := l.CollectionMetadata(context.Background())
	if err != nil {
		t.Fatalf("CollectionMetadata: %v", err)
	}
	for _, key := range []string{"icrc7:description", "icrc7:supply_cap"} {
		if _, ok := md.Get(key); ok {
			t.Errorf("%s should be absent", key)
		}
	}
	if l.Description() != nil || l.SupplyCap() != nil {
		t.Error("description and supply cap should be nil")
	}
}

func TestTokenMetadata(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	meta := types.Metadata{
		{Key: "name", Value: types.TextValue("Rock")},
		{Key: "weight", Value: types.NatValue(7)},
	}
	if res := l.Mint(ctx, minter, types.MintArg{TokenID: 1, Owner: alice, Metadata: meta}); !res.IsOk() {
		t.Fatalf("mint: %v", res.Err)
	}
	mustMint(t, l, 2, alice)

	got, err := l.TokenMetadata(ctx, []uint64{1, 2, 3, math.MaxUint64})
	if err != nil {
		t.Fatalf("TokenMetadata: %v", err)
	}
	if len(got[0]) != 2 || got[0][0].Key != "name" || got[0][1].Key != "weight" {
		t.Errorf("token 1 metadata = %+v", got[0])
	}
	if got[1] == nil || len(got[1]) != 0 {
		t.Errorf("token 2 metadata = %#v, want empty", got[1])
	}
	if got[2] != nil || got[3] != nil {
		t.Error("unknown tokens should have nil metadata")
	}
}

func TestTokensPagination(t *testing.T) {
	lim := service.DefaultLimits()
	lim.DefaultTake = 2
	lim.MaxTake = 3
	l, _ := newTestLedger(t, service.WithLimits(lim))
	ctx := context.Background()
	for _, id := range []uint64{5, 1, 4, 2, 3} {
		owner := alice
		if id%2 == 0 {
			owner = bob
		}
		mustMint(t, l, id, owner)
	}

	page, err := l.Tokens(ctx, nil, 0)
	if err != nil {
		t.Fatalf("Tokens: %v", err)
	}
	if !equalIDs(page, []uint64{1, 2}) {
		t.Errorf("default page = %v, want [1 2]", page)
	}
	page, _ = l.Tokens(ctx, u64(2), 100)
	if !equalIDs(page, []uint64{3, 4, 5}) {
		t.Errorf("clamped page = %v, want [3 4 5]", page)
	}
	page, _ = l.Tokens(ctx, u64(math.MaxUint64), 1)
	if page == nil || len(page) != 0 {
		t.Errorf("page after max = %v, want empty", page)
	}

	owned, err := l.TokensOf(ctx, alice, u64(1), 10)
	if err != nil {
		t.Fatalf("TokensOf: %v", err)
	}
	if !equalIDs(owned, []uint64{3, 5}) {
		t.Errorf("alice after 1 = %v, want [3 5]", owned)
	}
	bal, _ := l.BalanceOf(ctx, []types.Account{alice, bob, carol})
	if bal[0] != 3 || bal[1] != 2 || bal[2] != 0 {
		t.Errorf("balances = %v", bal)
	}
}

func TestGetTransactions_IsStableAndBounded(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	for id := uint64(1); id <= 4; id++ {
		mustMint(t, l, id, alice)
	}

	for _, n := range []int{0, 2, 4, 10} {
		first, err := l.GetTransactions(ctx, 0, n)
		if err != nil {
			t.Fatalf("GetTransactions(0, %d): %v", n, err)
		}
		want := n
		if want > 4 {
			want = 4
		}
		if len(first) != want {
			t.Errorf("len(GetTransactions(0, %d)) = %d, want %d", n, len(first), want)
		}
		for i, rec := range first {
			if rec.ID != uint64(i) {
				t.Errorf("record %d has id %d", i, rec.ID)
			}
		}
		second, _ := l.GetTransactions(ctx, 0, n)
		if len(second) != len(first) {
			t.Fatalf("second read differs in length")
		}
		for i := range first {
			if first[i].ID != second[i].ID || first[i].Timestamp != second[i].Timestamp {
				t.Errorf("record %d changed between reads", i)
			}
		}
	}

	tail, _ := l.GetTransactions(ctx, 3, 10)
	if len(tail) != 1 || tail[0].ID != 3 {
		t.Errorf("tail = %+v", tail)
	}
	past, _ := l.GetTransactions(ctx, 10, 10)
	if len(past) != 0 {
		t.Errorf("start past end returned %d records", len(past))
	}
}

func TestResults_EncodeAsTaggedJSON(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	res := l.Transfer(ctx, "alice", []types.TransferArg{{To: bob, TokenID: 1}, {To: bob, TokenID: 2}})
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"Ok":1},{"Err":{"NonExistingTokenId":{}}}]`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

// ── Sweeper ───────────────────────────────────────────────────────────────

func TestSweeper_DisabledWhenIntervalZero(t *testing.T) {
	l, _ := newTestLedger(t)
	s := service.NewSweeper(l, 0, silentLogger())
	s.Start(context.Background())
	s.Stop()
}

func TestSweeper_PrunesExpiredApprovals(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)
	expires := clock.Nanos() + uint64(time.Second.Nanoseconds())
	mustApproveToken(t, l, 1, alice, bob, &expires)
	clock.Advance(time.Minute)

	s := service.NewSweeper(l, 10*time.Millisecond, silentLogger())
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		listed, err := l.TokenApprovals(ctx, 1, nil, 0)
		if err != nil {
			t.Fatalf("TokenApprovals: %v", err)
		}
		if len(listed) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sweeper did not prune the expired approval")
}

func TestSweep_DropsDedupEntriesOutsideWindow(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()
	mustMint(t, l, 1, alice)

	arg := types.TransferArg{To: bob, TokenID: 1, CreatedAtTime: u64(clock.Nanos())}
	if res := l.Transfer(ctx, "alice", []types.TransferArg{arg}); !res[0].IsOk() {
		t.Fatalf("transfer: %v", res[0].Err)
	}

	lim := l.Limits()
	clock.Advance(lim.TxWindow + lim.PermittedDrift + time.Second)
	st, err := l.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if st.DedupEntriesPruned != 1 {
		t.Errorf("dedup pruned = %d, want 1", st.DedupEntriesPruned)
	}

	// A replay is now too old rather than a duplicate.
	res := l.Transfer(ctx, "alice", []types.TransferArg{arg})
	if _, ok := res[0].Err.(types.TooOld); !ok {
		t.Errorf("replay: got %v, want TooOld", res[0].Err)
	}
}

func equalIDs(got, want []uint64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
