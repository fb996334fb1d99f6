package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type TokenStore struct {
	c conn
}

func (s *TokenStore) Create(ctx context.Context, rec store.TokenRecord) error {
	md, err := types.EncodeMetadata(rec.Metadata)
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	owner, sub := accountCols(rec.Owner)

	return s.c.write(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `
			INSERT INTO nft_tokens (token_id, owner_principal, owner_subaccount, metadata_json, minted_at_ns)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (token_id) DO NOTHING
		`, toDB(rec.ID), owner, sub, md, toDB(rec.MintedAt))
		if err != nil {
			return errors.Wrapf(err, "insert token %d", rec.ID)
		}
		if tag.RowsAffected() == 0 {
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
	err := s.c.q.QueryRow(ctx, `
		SELECT owner_principal, owner_subaccount, metadata_json, minted_at_ns
		FROM nft_tokens
		WHERE token_id = $1
	`, toDB(tokenID)).Scan(&owner, &sub, &md, &mintedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.TokenRecord{}, false, nil
	}
	if err != nil {
		return store.TokenRecord{}, false, errors.Wrapf(err, "get token %d", tokenID)
	}

	acct, err := scanAccount(owner, sub)
	if err != nil {
		return store.TokenRecord{}, false, err
	}
	meta, err := types.DecodeMetadata(md)
	if err != nil {
		return store.TokenRecord{}, false, errors.Wrapf(err, "token %d metadata", tokenID)
	}
	return store.TokenRecord{ID: tokenID, Owner: acct, Metadata: meta, MintedAt: fromDB(mintedAt)}, true, nil
}

func (s *TokenStore) GetOwner(ctx context.Context, tokenID uint64) (types.Account, bool, error) {
	var owner, sub string
	err := s.c.q.QueryRow(ctx,
		`SELECT owner_principal, owner_subaccount FROM nft_tokens WHERE token_id = $1`,
		toDB(tokenID),
	).Scan(&owner, &sub)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Account{}, false, nil
	}
	if err != nil {
		return types.Account{}, false, errors.Wrapf(err, "get owner of %d", tokenID)
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
		tag, err := q.Exec(ctx, `
			UPDATE nft_tokens
			SET owner_principal = $1, owner_subaccount = $2
			WHERE token_id = $3
		`, p, sub, toDB(tokenID))
		if err != nil {
			return errors.Wrapf(err, "set owner of %d", tokenID)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *TokenStore) Exists(ctx context.Context, tokenID uint64) (bool, error) {
	var ok bool
	err := s.c.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM nft_tokens WHERE token_id = $1)`, toDB(tokenID),
	).Scan(&ok)
	if err != nil {
		return false, errors.Wrapf(err, "token %d exists", tokenID)
	}
	return ok, nil
}

func (s *TokenStore) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.c.q.QueryRow(ctx, `SELECT COUNT(*) FROM nft_tokens`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count tokens")
	}
	return uint64(n), nil
}

func (s *TokenStore) BalanceOf(ctx context.Context, owner types.Account) (uint64, error) {
	p, sub := accountCols(owner)
	var n int64
	err := s.c.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM nft_tokens WHERE owner_principal = $1 AND owner_subaccount = $2`, p, sub,
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "balance of %s", owner)
	}
	return uint64(n), nil
}

func (s *TokenStore) List(ctx context.Context, prev *uint64, take int) ([]uint64, error) {
	rows, err := s.c.q.Query(ctx, `
		SELECT token_id FROM nft_tokens
		WHERE token_id > $1
		ORDER BY token_id
		LIMIT $2
	`, after(prev), limit(take))
	if err != nil {
		return nil, errors.Wrap(err, "list tokens")
	}
	return scanIDs(rows)
}

func (s *TokenStore) ListOwned(ctx context.Context, owner types.Account, prev *uint64, take int) ([]uint64, error) {
	p, sub := accountCols(owner)
	rows, err := s.c.q.Query(ctx, `
		SELECT token_id FROM nft_tokens
		WHERE owner_principal = $1 AND owner_subaccount = $2 AND token_id > $3
		ORDER BY token_id
		LIMIT $4
	`, p, sub, after(prev), limit(take))
	if err != nil {
		return nil, errors.Wrap(err, "list owned tokens")
	}
	return scanIDs(rows)
}

func after(prev *uint64) int64 {
	if prev == nil {
		return -1
	}
	return toDB(*prev)
}

func scanIDs(rows pgx.Rows) ([]uint64, error) {
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan token id")
		}
		ids = append(ids, fromDB(id))
	}
	return ids, rows.Err()
}
