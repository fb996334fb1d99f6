package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type TokenStore struct {
	c conn
}

func (s *TokenStore) Create(ctx context.Context, rec store.TokenRecord) error {
	md, err := types.EncodeMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("Create encode metadata: %w", err)
	}
	owner, sub := accountCols(rec.Owner)

	return s.c.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `
INSERT INTO tokens(token_id, owner_principal, owner_subaccount, metadata_json, minted_at_ns)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(token_id) DO NOTHING;
`, toDB(rec.ID), owner, sub, md, toDB(rec.MintedAt))
		if err != nil {
			return fmt.Errorf("Create insert token %d: %w", rec.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Create rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrAlreadyExists
		}
		return nil
	})
}

func (s *TokenStore) Get(ctx context.Context, tokenID uint64) (store.TokenRecord, bool, error) {
	var (
		owner, sub, md string
		mintedAt       int64
	)
	err := s.c.q.QueryRowContext(ctx, `
SELECT owner_principal, owner_subaccount, metadata_json, minted_at_ns
FROM tokens
WHERE token_id = ?;
`, toDB(tokenID)).Scan(&owner, &sub, &md, &mintedAt)
	if err == sql.ErrNoRows {
		return store.TokenRecord{}, false, nil
	}
	if err != nil {
		return store.TokenRecord{}, false, fmt.Errorf("Get token %d: %w", tokenID, err)
	}

	acct, err := scanAccount(owner, sub)
	if err != nil {
		return store.TokenRecord{}, false, err
	}
	meta, err := types.DecodeMetadata(md)
	if err != nil {
		return store.TokenRecord{}, false, fmt.Errorf("Get token %d metadata: %w", tokenID, err)
	}
	return store.TokenRecord{ID: tokenID, Owner: acct, Metadata: meta, MintedAt: fromDB(mintedAt)}, true, nil
}

func (s *TokenStore) GetOwner(ctx context.Context, tokenID uint64) (types.Account, bool, error) {
	var owner, sub string
	err := s.c.q.QueryRowContext(ctx,
		`SELECT owner_principal, owner_subaccount FROM tokens WHERE token_id = ?;`,
		toDB(tokenID),
	).Scan(&owner, &sub)
	if err == sql.ErrNoRows {
		return types.Account{}, false, nil
	}
	if err != nil {
		return types.Account{}, false, fmt.Errorf("GetOwner %d: %w", tokenID, err)
	}
	acct, err := scanAccount(owner, sub)
	if err != nil {
		return types.Account{}, false, err
	}
	return acct, true, nil
}

func (s *TokenStore) SetOwner(ctx context.Context, tokenID uint64, owner types.Account) error {
	p, sub := accountCols(owner)
	return s.c.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `
UPDATE tokens
SET owner_principal  = ?,
    owner_subaccount = ?
WHERE token_id = ?;
`, p, sub, toDB(tokenID))
		if err != nil {
			return fmt.Errorf("SetOwner %d: %w", tokenID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("SetOwner rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *TokenStore) Exists(ctx context.Context, tokenID uint64) (bool, error) {
	var ok bool
	err := s.c.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tokens WHERE token_id = ?);`, toDB(tokenID),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("Exists %d: %w", tokenID, err)
	}
	return ok, nil
}

func (s *TokenStore) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return uint64(n), nil
}

func (s *TokenStore) BalanceOf(ctx context.Context, owner types.Account) (uint64, error) {
	p, sub := accountCols(owner)
	var n int64
	err := s.c.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tokens WHERE owner_principal = ? AND owner_subaccount = ?;`, p, sub,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("BalanceOf %s: %w", owner, err)
	}
	return uint64(n), nil
}

func (s *TokenStore) List(ctx context.Context, prev *uint64, take int) ([]uint64, error) {
	rows, err := s.c.q.QueryContext(ctx, `
SELECT token_id FROM tokens
WHERE token_id > ?
ORDER BY token_id
LIMIT ?;
`, after(prev), limit(take))
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return scanIDs(rows)
}

func (s *TokenStore) ListOwned(ctx context.Context, owner types.Account, prev *uint64, take int) ([]uint64, error) {
	p, sub := accountCols(owner)
	rows, err := s.c.q.QueryContext(ctx, `
SELECT token_id FROM tokens
WHERE owner_principal = ? AND owner_subaccount = ? AND token_id > ?
ORDER BY token_id
LIMIT ?;
`, p, sub, after(prev), limit(take))
	if err != nil {
		return nil, fmt.Errorf("ListOwned: %w", err)
	}
	return scanIDs(rows)
}

// after returns the exclusive lower bound for a token id listing.
func after(prev *uint64) int64 {
	if prev == nil {
		return -1
	}
	return toDB(*prev)
}

func scanIDs(rows *sql.Rows) ([]uint64, error) {
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan token id: %w", err)
		}
		ids = append(ids, fromDB(id))
	}
	return ids, rows.Err()
}
