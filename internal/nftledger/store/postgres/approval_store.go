package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type ApprovalStore struct {
	c conn
}

func (s *ApprovalStore) PutTokenApproval(ctx context.Context, rec store.TokenApprovalRecord) error {
	op, osub := accountCols(rec.Owner)
	sp, ssub := accountCols(rec.Spender)

	return s.c.write(ctx, func(q querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO nft_token_approvals (
				token_id, owner_principal, owner_subaccount,
				spender_principal, spender_subaccount,
				expires_at_ns, created_at_ns, memo
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (token_id, owner_principal, owner_subaccount, spender_principal, spender_subaccount)
			DO UPDATE SET
				expires_at_ns = EXCLUDED.expires_at_ns,
				created_at_ns = EXCLUDED.created_at_ns,
				memo = EXCLUDED.memo
		`, toDB(rec.TokenID), op, osub, sp, ssub, nullableU64(rec.ExpiresAt), toDB(rec.CreatedAt), rec.Memo)
		return errors.Wrapf(err, "put token approval %d", rec.TokenID)
	})
}

func (s *ApprovalStore) PutCollectionApproval(ctx context.Context, rec store.CollectionApprovalRecord) error {
	op, osub := accountCols(rec.Owner)
	sp, ssub := accountCols(rec.Spender)

	return s.c.write(ctx, func(q querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO nft_collection_approvals (
				owner_principal, owner_subaccount,
				spender_principal, spender_subaccount,
				expires_at_ns, created_at_ns, memo
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (owner_principal, owner_subaccount, spender_principal, spender_subaccount)
			DO UPDATE SET
				expires_at_ns = EXCLUDED.expires_at_ns,
				created_at_ns = EXCLUDED.created_at_ns,
				memo = EXCLUDED.memo
		`, op, osub, sp, ssub, nullableU64(rec.ExpiresAt), toDB(rec.CreatedAt), rec.Memo)
		return errors.Wrap(err, "put collection approval")
	})
}

func (s *ApprovalStore) RemoveTokenApproval(ctx context.Context, tokenID uint64, owner, spender types.Account) error {
	op, osub := accountCols(owner)
	sp, ssub := accountCols(spender)

	return s.c.write(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `
			DELETE FROM nft_token_approvals
			WHERE token_id = $1
			  AND owner_principal = $2 AND owner_subaccount = $3
			  AND spender_principal = $4 AND spender_subaccount = $5
		`, toDB(tokenID), op, osub, sp, ssub)
		if err != nil {
			return errors.Wrapf(err, "remove token approval %d", tokenID)
		}
		if tag.RowsAffected() == 0 {
			return store.ErrApprovalNotFound
		}
		return nil
	})
}

func (s *ApprovalStore) RemoveCollectionApproval(ctx context.Context, owner, spender types.Account) error {
	op, osub := accountCols(owner)
	sp, ssub := accountCols(spender)

	return s.c.write(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `
			DELETE FROM nft_collection_approvals
			WHERE owner_principal = $1 AND owner_subaccount = $2
			  AND spender_principal = $3 AND spender_subaccount = $4
		`, op, osub, sp, ssub)
		if err != nil {
			return errors.Wrap(err, "remove collection approval")
		}
		if tag.RowsAffected() == 0 {
			return store.ErrApprovalNotFound
		}
		return nil
	})
}

func (s *ApprovalStore) RemoveTokenApprovals(ctx context.Context, tokenID uint64) (int64, error) {
	var n int64
	err := s.c.write(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM nft_token_approvals WHERE token_id = $1`, toDB(tokenID))
		if err != nil {
			return errors.Wrapf(err, "remove approvals of token %d", tokenID)
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}

func (s *ApprovalStore) TokenApprovals(ctx context.Context, tokenID uint64, prev *types.Account, take int) ([]store.TokenApprovalRecord, error) {
	pp, ps := spenderCursor(prev)
	rows, err := s.c.q.Query(ctx, `
		SELECT owner_principal, owner_subaccount, spender_principal, spender_subaccount,
		       expires_at_ns, created_at_ns, memo
		FROM nft_token_approvals
		WHERE token_id = $1
		  AND (spender_principal, spender_subaccount) > ($2, $3)
		ORDER BY spender_principal, spender_subaccount, owner_principal, owner_subaccount
		LIMIT $4
	`, toDB(tokenID), pp, ps, limit(take))
	if err != nil {
		return nil, errors.Wrapf(err, "list approvals of token %d", tokenID)
	}
	defer rows.Close()

	out := []store.TokenApprovalRecord{}
	for rows.Next() {
		rec := store.TokenApprovalRecord{TokenID: tokenID}
		if err := scanApproval(rows, &rec.Owner, &rec.Spender, &rec.ExpiresAt, &rec.CreatedAt, &rec.Memo); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ApprovalStore) CollectionApprovals(ctx context.Context, owner types.Account, prev *types.Account, take int) ([]store.CollectionApprovalRecord, error) {
	op, osub := accountCols(owner)
	pp, ps := spenderCursor(prev)
	rows, err := s.c.q.Query(ctx, `
		SELECT owner_principal, owner_subaccount, spender_principal, spender_subaccount,
		       expires_at_ns, created_at_ns, memo
		FROM nft_collection_approvals
		WHERE owner_principal = $1 AND owner_subaccount = $2
		  AND (spender_principal, spender_subaccount) > ($3, $4)
		ORDER BY spender_principal, spender_subaccount
		LIMIT $5
	`, op, osub, pp, ps, limit(take))
	if err != nil {
		return nil, errors.Wrap(err, "list collection approvals")
	}
	defer rows.Close()

	out := []store.CollectionApprovalRecord{}
	for rows.Next() {
		var rec store.CollectionApprovalRecord
		if err := scanApproval(rows, &rec.Owner, &rec.Spender, &rec.ExpiresAt, &rec.CreatedAt, &rec.Memo); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func spenderCursor(prev *types.Account) (string, string) {
	if prev == nil {
		return "", ""
	}
	return accountCols(*prev)
}

func scanApproval(rows pgx.Rows, owner, spender *types.Account, expires **uint64, created *uint64, memo *[]byte) error {
	var (
		op, osub, sp, ssub string
		exp                *int64
		createdAt          int64
		m                  []byte
	)
	if err := rows.Scan(&op, &osub, &sp, &ssub, &exp, &createdAt, &m); err != nil {
		return errors.Wrap(err, "scan approval")
	}
	var err error
	if *owner, err = scanAccount(op, osub); err != nil {
		return err
	}
	if *spender, err = scanAccount(sp, ssub); err != nil {
		return err
	}
	*expires = fromNullable(exp)
	*created = fromDB(createdAt)
	*memo = m
	return nil
}

func (s *ApprovalStore) IsApproved(ctx context.Context, owner, spender types.Account, tokenID uint64, now uint64) (bool, error) {
	op, osub := accountCols(owner)
	sp, ssub := accountCols(spender)

	var ok bool
	err := s.c.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM nft_token_approvals
			WHERE token_id = $1
			  AND owner_principal = $2 AND owner_subaccount = $3
			  AND spender_principal = $4 AND spender_subaccount = $5
			  AND (expires_at_ns IS NULL OR expires_at_ns < 0 OR expires_at_ns > $6)
		) OR EXISTS (
			SELECT 1 FROM nft_collection_approvals
			WHERE owner_principal = $2 AND owner_subaccount = $3
			  AND spender_principal = $4 AND spender_subaccount = $5
			  AND (expires_at_ns IS NULL OR expires_at_ns < 0 OR expires_at_ns > $6)
		)
	`, toDB(tokenID), op, osub, sp, ssub, toDB(now)).Scan(&ok)
	if err != nil {
		return false, errors.Wrap(err, "check approval")
	}
	return ok, nil
}

func (s *ApprovalStore) PruneExpired(ctx context.Context, now uint64) (int64, error) {
	var total int64
	err := s.c.write(ctx, func(q querier) error {
		for _, table := range []string{"nft_token_approvals", "nft_collection_approvals"} {
			tag, err := q.Exec(ctx, `
				DELETE FROM `+table+`
				WHERE expires_at_ns IS NOT NULL AND expires_at_ns >= 0 AND expires_at_ns <= $1
			`, toDB(now))
			if err != nil {
				return errors.Wrapf(err, "prune %s", table)
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	return total, err
}
