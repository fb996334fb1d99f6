package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store/postgres"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

var (
	alice = types.NewAccount("alice", nil)
	bob   = types.NewAccount("bob", nil)
	carol = types.NewAccount("carol", nil)
)

// openTestStore connects to NFTLEDGER_TEST_POSTGRES_URL and empties the
// ledger tables. Tests are skipped when the variable is unset.
func openTestStore(t *testing.T) *postgres.Store {
	t.Helper()

	url := os.Getenv("NFTLEDGER_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("NFTLEDGER_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	s, err := postgres.Open(ctx, url)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := postgres.Reset(ctx, s); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	return s
}

func mustAtomic(t *testing.T, s store.Store, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	if err := s.Atomic(context.Background(), fn); err != nil {
		t.Fatalf("Atomic: %v", err)
	}
}

func u64(v uint64) *uint64 { return &v }

func TestPostgres_TokenLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustAtomic(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Tokens().Create(ctx, store.TokenRecord{ID: 1, Owner: alice, MintedAt: 1}); err != nil {
			return err
		}
		return tx.Tokens().Create(ctx, store.TokenRecord{ID: 2, Owner: alice, MintedAt: 2})
	})

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Tokens().Create(ctx, store.TokenRecord{ID: 1, Owner: bob})
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate Create: got %v, want ErrAlreadyExists", err)
	}

	mustAtomic(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.Tokens().SetOwner(ctx, 2, bob)
	})

	ids, err := s.Tokens().ListOwned(ctx, alice, nil, 0)
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("ListOwned(alice) = %v", ids)
	}
	if owner, ok, _ := s.Tokens().GetOwner(ctx, 2); !ok || !owner.Equal(bob) {
		t.Errorf("owner of 2 = %v ok=%v", owner, ok)
	}
}

func TestPostgres_ApprovalsAndExpiry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustAtomic(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Tokens().Create(ctx, store.TokenRecord{ID: 1, Owner: alice}); err != nil {
			return err
		}
		if err := tx.Approvals().PutTokenApproval(ctx, store.TokenApprovalRecord{TokenID: 1, Owner: alice, Spender: carol, ExpiresAt: u64(100)}); err != nil {
			return err
		}
		return tx.Approvals().PutCollectionApproval(ctx, store.CollectionApprovalRecord{Owner: alice, Spender: bob})
	})

	if ok, _ := s.Approvals().IsApproved(ctx, alice, carol, 1, 99); !ok {
		t.Error("carol should be approved before expiry")
	}
	if ok, _ := s.Approvals().IsApproved(ctx, alice, carol, 1, 100); ok {
		t.Error("carol must not be approved at expiry")
	}
	if ok, _ := s.Approvals().IsApproved(ctx, alice, bob, 77, 1<<40); !ok {
		t.Error("collection approval should cover any token")
	}

	n, err := s.Approvals().PruneExpired(ctx, 100)
	if err != nil || n != 1 {
		t.Errorf("PruneExpired = %d, %v; want 1", n, err)
	}
}

func TestPostgres_TransactionIDsAreContiguous(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		var id uint64
		mustAtomic(t, s, func(ctx context.Context, tx store.Tx) error {
			var err error
			id, err = tx.Transactions().Append(ctx, types.TransactionRecord{Kind: types.TxMint, TokenID: uint64(i), Timestamp: 10})
			return err
		})
		if id != uint64(i) {
			t.Errorf("append %d returned id %d", i, id)
		}
	}

	recs, err := s.Transactions().Range(ctx, 1, 5)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != 1 {
		t.Errorf("Range(1,5) = %+v", recs)
	}
}
