package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/service"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store/memory"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

const minter types.Principal = "minter"

var (
	alice = types.NewAccount("alice", nil)
	bob   = types.NewAccount("bob", nil)
	carol = types.NewAccount("carol", nil)
	dave  = types.NewAccount("dave", nil)
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable ledger clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Nanos() uint64 {
	return uint64(c.Now().UnixNano())
}

func testCollection() service.Collection {
	return service.Collection{
		Name:   "Test Collection",
		Symbol: "TST",
		Minter: minter,
	}
}

// newTestLedger builds a Ledger over an in-memory store with a fake clock.
func newTestLedger(t *testing.T, opts ...service.Option) (*service.Ledger, *fakeClock) {
	t.Helper()
	return newTestLedgerWith(t, testCollection(), opts...)
}

func newTestLedgerWith(t *testing.T, coll service.Collection, opts ...service.Option) (*service.Ledger, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	base := []service.Option{
		service.WithLogger(silentLogger()),
		service.WithClock(clock.Now),
	}
	l := service.New(memory.New(), coll, append(base, opts...)...)
	if err := l.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	return l, clock
}

func mustMint(t *testing.T, l *service.Ledger, id uint64, owner types.Account) uint64 {
	t.Helper()

	res := l.Mint(context.Background(), minter, types.MintArg{TokenID: id, Owner: owner})
	if !res.IsOk() {
		t.Fatalf("mint %d: %v", id, res.Err)
	}
	return res.TxID
}

func mustApproveCollection(t *testing.T, l *service.Ledger, owner, spender types.Account, expiresAt *uint64) {
	t.Helper()

	res := l.ApproveCollection(context.Background(), owner.Owner, []types.ApproveCollectionArg{{
		ApprovalInfo: types.ApprovalInfo{Spender: spender, FromSubaccount: owner.Subaccount, ExpiresAt: expiresAt},
	}})
	if !res[0].IsOk() {
		t.Fatalf("approve collection %s -> %s: %v", owner, spender, res[0].Err)
	}
}

func mustApproveToken(t *testing.T, l *service.Ledger, id uint64, owner, spender types.Account, expiresAt *uint64) {
	t.Helper()

	res := l.ApproveTokens(context.Background(), owner.Owner, []types.ApproveTokenArg{{
		TokenID:      id,
		ApprovalInfo: types.ApprovalInfo{Spender: spender, FromSubaccount: owner.Subaccount, ExpiresAt: expiresAt},
	}})
	if !res[0].IsOk() {
		t.Fatalf("approve token %d %s -> %s: %v", id, owner, spender, res[0].Err)
	}
}

func ownerOf(t *testing.T, l *service.Ledger, id uint64) *types.Account {
	t.Helper()

	owners, err := l.OwnerOf(context.Background(), []uint64{id})
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	return owners[0]
}

func genericCode(t *testing.T, err error) uint64 {
	t.Helper()

	g, ok := err.(types.GenericError)
	if !ok {
		t.Fatalf("expected GenericError, got %T (%v)", err, err)
	}
	return g.ErrorCode
}

func u64(v uint64) *uint64 { return &v }
