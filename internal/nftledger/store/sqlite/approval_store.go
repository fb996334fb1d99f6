package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// liveClause matches approvals still honoured at the bound ledger time.
// Negative expiries are bit-cast values above 2^63.
const liveClause = `(expires_at_ns IS NULL OR expires_at_ns < 0 OR expires_at_ns > ?)`

type ApprovalStore struct {
	c conn
}

func (s *ApprovalStore) PutTokenApproval(ctx context.Context, rec store.TokenApprovalRecord) error {
	op, osub := accountCols(rec.Owner)
	sp, ssub := accountCols(rec.Spender)

	return s.c.write(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `
INSERT INTO token_approvals(
  token_id, owner_principal, owner_subaccount,
  spender_principal, spender_subaccount,
  expires_at_ns, created_at_ns, memo
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(token_id, owner_principal, owner_subaccount, spender_principal, spender_subaccount)
DO UPDATE SET
  expires_at_ns = excluded.expires_at_ns,
  created_at_ns = excluded.created_at_ns,
  memo          = excluded.memo;
`, toDB(rec.TokenID), op, osub, sp, ssub, nullableU64(rec.ExpiresAt), toDB(rec.CreatedAt), rec.Memo); err != nil {
			return fmt.Errorf("PutTokenApproval %d: %w", rec.TokenID, err)
		}
		return nil
	})
}

func (s *ApprovalStore) PutCollectionApproval(ctx context.Context, rec store.CollectionApprovalRecord) error {
	op, osub := accountCols(rec.Owner)
	sp, ssub := accountCols(rec.Spender)

	return s.c.write(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `
INSERT INTO collection_approvals(
  owner_principal, owner_subaccount,
  spender_principal, spender_subaccount,
  expires_at_ns, created_at_ns, memo
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(owner_principal, owner_subaccount, spender_principal, spender_subaccount)
DO UPDATE SET
  expires_at_ns = excluded.expires_at_ns,
  created_at_ns = excluded.created_at_ns,
  memo          = excluded.memo;
`, op, osub, sp, ssub, nullableU64(rec.ExpiresAt), toDB(rec.CreatedAt), rec.Memo); err != nil {
			return fmt.Errorf("PutCollectionApproval: %w", err)
		}
		return nil
	})
}

func (s *ApprovalStore) RemoveTokenApproval(ctx context.Context, tokenID uint64, owner, spender types.Account) error {
	op, osub := accountCols(owner)
	sp, ssub := accountCols(spender)

	return s.c.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `
DELETE FROM token_approvals
WHERE token_id = ?
  AND owner_principal = ? AND owner_subaccount = ?
  AND spender_principal = ? AND spender_subaccount = ?;
`, toDB(tokenID), op, osub, sp, ssub)
		return removed(res, err, "RemoveTokenApproval")
	})
}

func (s *ApprovalStore) RemoveCollectionApproval(ctx context.Context, owner, spender types.Account) error {
	op, osub := accountCols(owner)
	sp, ssub := accountCols(spender)

	return s.c.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `
DELETE FROM collection_approvals
WHERE owner_principal = ? AND owner_subaccount = ?
  AND spender_principal = ? AND spender_subaccount = ?;
`, op, osub, sp, ssub)
		return removed(res, err, "RemoveCollectionApproval")
	})
}

func removed(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return store.ErrApprovalNotFound
	}
	return nil
}

func (s *ApprovalStore) RemoveTokenApprovals(ctx context.Context, tokenID uint64) (int64, error) {
	var n int64
	err := s.c.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM token_approvals WHERE token_id = ?;`, toDB(tokenID))
		if err != nil {
			return fmt.Errorf("RemoveTokenApprovals %d: %w", tokenID, err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (s *ApprovalStore) TokenApprovals(ctx context.Context, tokenID uint64, prev *types.Account, take int) ([]store.TokenApprovalRecord, error) {
	pp, ps := spenderCursor(prev)
	rows, err := s.c.q.QueryContext(ctx, `
SELECT owner_principal, owner_subaccount, spender_principal, spender_subaccount,
       expires_at_ns, created_at_ns, memo
FROM token_approvals
WHERE token_id = ?
  AND (spender_principal > ? OR (spender_principal = ? AND spender_subaccount > ?))
ORDER BY spender_principal, spender_subaccount, owner_principal, owner_subaccount
LIMIT ?;
`, toDB(tokenID), pp, pp, ps, limit(take))
	if err != nil {
		return nil, fmt.Errorf("TokenApprovals %d: %w", tokenID, err)
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
	rows, err := s.c.q.QueryContext(ctx, `
SELECT owner_principal, owner_subaccount, spender_principal, spender_subaccount,
       expires_at_ns, created_at_ns, memo
FROM collection_approvals
WHERE owner_principal = ? AND owner_subaccount = ?
  AND (spender_principal > ? OR (spender_principal = ? AND spender_subaccount > ?))
ORDER BY spender_principal, spender_subaccount
LIMIT ?;
`, op, osub, pp, pp, ps, limit(take))
	if err != nil {
		return nil, fmt.Errorf("CollectionApprovals: %w", err)
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

// spenderCursor returns bounds that admit every spender when prev is nil:
// no principal sorts below "" with an empty subaccount except "" itself,
// which is never a valid principal.
func spenderCursor(prev *types.Account) (string, string) {
	if prev == nil {
		return "", ""
	}
	return accountCols(*prev)
}

func scanApproval(rows *sql.Rows, owner, spender *types.Account, expires **uint64, created *uint64, memo *[]byte) error {
	var (
		op, osub, sp, ssub string
		exp                sql.NullInt64
		createdAt          int64
		m                  []byte
	)
	if err := rows.Scan(&op, &osub, &sp, &ssub, &exp, &createdAt, &m); err != nil {
		return fmt.Errorf("scan approval: %w", err)
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
	err := s.c.q.QueryRowContext(ctx, `
SELECT EXISTS(
  SELECT 1 FROM token_approvals
  WHERE token_id = ?
    AND owner_principal = ? AND owner_subaccount = ?
    AND spender_principal = ? AND spender_subaccount = ?
    AND `+liveClause+`
) OR EXISTS(
  SELECT 1 FROM collection_approvals
  WHERE owner_principal = ? AND owner_subaccount = ?
    AND spender_principal = ? AND spender_subaccount = ?
    AND `+liveClause+`
);
`, toDB(tokenID), op, osub, sp, ssub, toDB(now), op, osub, sp, ssub, toDB(now)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("IsApproved: %w", err)
	}
	return ok, nil
}

func (s *ApprovalStore) PruneExpired(ctx context.Context, now uint64) (int64, error) {
	var total int64
	err := s.c.write(ctx, func(q querier) error {
		for _, table := range []string{"token_approvals", "collection_approvals"} {
			res, err := q.ExecContext(ctx, `
DELETE FROM `+table+`
WHERE expires_at_ns IS NOT NULL AND expires_at_ns >= 0 AND expires_at_ns <= ?;
`, toDB(now))
			if err != nil {
				return fmt.Errorf("PruneExpired %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("PruneExpired rows affected: %w", err)
			}
			total += n
		}
		return nil
	})
	return total, err
}
