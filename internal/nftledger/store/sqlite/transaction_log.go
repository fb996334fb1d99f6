package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type TransactionLog struct {
	c conn
}

const txColumns = `tx_id, kind, timestamp_ns, token_id,
       from_principal, from_subaccount, to_principal, to_subaccount,
       spender_principal, spender_subaccount, memo`

// Append assigns the next id as the current row count. The worker runs one
// transaction at a time, so no other append can interleave.
func (l *TransactionLog) Append(ctx context.Context, rec types.TransactionRecord) (uint64, error) {
	var id uint64
	err := l.c.write(ctx, func(q querier) error {
		var next int64
		if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(tx_id) + 1, 0) FROM transactions;`).Scan(&next); err != nil {
			return fmt.Errorf("Append next id: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
INSERT INTO transactions(
  tx_id, kind, timestamp_ns, token_id,
  from_principal, from_subaccount, to_principal, to_subaccount,
  spender_principal, spender_subaccount, memo
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, next, string(rec.Kind), toDB(rec.Timestamp), toDB(rec.TokenID),
			rec.FromPrincipal, rec.FromSubaccount, rec.ToPrincipal, rec.ToSubaccount,
			rec.SpenderPrincipal, rec.SpenderSubaccount, rec.Memo,
		); err != nil {
			return fmt.Errorf("Append insert %s: %w", rec.Kind, err)
		}
		id = fromDB(next)
		return nil
	})
	return id, err
}

func (l *TransactionLog) Range(ctx context.Context, start uint64, length int) ([]types.TransactionRecord, error) {
	if length <= 0 || start > math.MaxInt64 {
		return []types.TransactionRecord{}, nil
	}
	rows, err := l.c.q.QueryContext(ctx, `
SELECT `+txColumns+`
FROM transactions
WHERE tx_id >= ?
ORDER BY tx_id
LIMIT ?;
`, toDB(start), length)
	if err != nil {
		return nil, fmt.Errorf("Range: %w", err)
	}
	defer rows.Close()

	out := []types.TransactionRecord{}
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (l *TransactionLog) Len(ctx context.Context) (uint64, error) {
	var n int64
	if err := l.c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Len: %w", err)
	}
	return uint64(n), nil
}

func (l *TransactionLog) Last(ctx context.Context) (types.TransactionRecord, bool, error) {
	rows, err := l.c.q.QueryContext(ctx, `
SELECT `+txColumns+`
FROM transactions
ORDER BY tx_id DESC
LIMIT 1;
`)
	if err != nil {
		return types.TransactionRecord{}, false, fmt.Errorf("Last: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return types.TransactionRecord{}, false, rows.Err()
	}
	rec, err := scanTransaction(rows)
	if err != nil {
		return types.TransactionRecord{}, false, err
	}
	return rec, true, nil
}

func scanTransaction(rows *sql.Rows) (types.TransactionRecord, error) {
	var (
		rec             types.TransactionRecord
		id, ts, tokenID int64
		kind            string
	)
	if err := rows.Scan(&id, &kind, &ts, &tokenID,
		&rec.FromPrincipal, &rec.FromSubaccount, &rec.ToPrincipal, &rec.ToSubaccount,
		&rec.SpenderPrincipal, &rec.SpenderSubaccount, &rec.Memo,
	); err != nil {
		return types.TransactionRecord{}, fmt.Errorf("scan transaction: %w", err)
	}
	rec.ID, rec.Timestamp, rec.TokenID = fromDB(id), fromDB(ts), fromDB(tokenID)
	rec.Kind = types.TxKind(kind)
	return rec, nil
}

type DedupIndex struct {
	c conn
}

func (d *DedupIndex) Lookup(ctx context.Context, key string) (uint64, bool, error) {
	var id int64
	err := d.c.q.QueryRowContext(ctx,
		`SELECT tx_id FROM dedup_entries WHERE fingerprint = ?;`, key,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("dedup Lookup: %w", err)
	}
	return fromDB(id), true, nil
}

func (d *DedupIndex) Remember(ctx context.Context, key string, txID uint64, createdAt uint64) error {
	return d.c.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `
INSERT INTO dedup_entries(fingerprint, tx_id, created_at_ns)
VALUES (?, ?, ?)
ON CONFLICT(fingerprint) DO NOTHING;
`, key, toDB(txID), toDB(createdAt))
		if err != nil {
			return fmt.Errorf("dedup Remember: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("dedup Remember rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrAlreadyExists
		}
		return nil
	})
}

func (d *DedupIndex) PruneOlderThan(ctx context.Context, cutoff uint64) (int64, error) {
	var n int64
	err := d.c.write(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM dedup_entries WHERE created_at_ns < ?;`, toDB(cutoff))
		if err != nil {
			return fmt.Errorf("dedup PruneOlderThan: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
