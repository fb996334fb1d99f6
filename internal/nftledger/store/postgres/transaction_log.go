package postgres

import (
	"context"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type TransactionLog struct {
	c conn
}

const txColumns = `tx_id, kind, timestamp_ns, token_id,
		       from_principal, from_subaccount, to_principal, to_subaccount,
		       spender_principal, spender_subaccount, memo`

// Append relies on the advisory lock held by every write transaction for
// gap-free ids.
func (l *TransactionLog) Append(ctx context.Context, rec types.TransactionRecord) (uint64, error) {
	var id int64
	err := l.c.write(ctx, func(q querier) error {
		return errors.Wrapf(q.QueryRow(ctx, `
			INSERT INTO nft_transactions (
				tx_id, kind, timestamp_ns, token_id,
				from_principal, from_subaccount, to_principal, to_subaccount,
				spender_principal, spender_subaccount, memo
			)
			SELECT COALESCE(MAX(tx_id) + 1, 0), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
			FROM nft_transactions
			RETURNING tx_id
		`, string(rec.Kind), toDB(rec.Timestamp), toDB(rec.TokenID),
			rec.FromPrincipal, rec.FromSubaccount, rec.ToPrincipal, rec.ToSubaccount,
			rec.SpenderPrincipal, rec.SpenderSubaccount, rec.Memo,
		).Scan(&id), "append %s", rec.Kind)
	})
	return fromDB(id), err
}

func (l *TransactionLog) Range(ctx context.Context, start uint64, length int) ([]types.TransactionRecord, error) {
	if length <= 0 || start > math.MaxInt64 {
		return []types.TransactionRecord{}, nil
	}
	rows, err := l.c.q.Query(ctx, `
		SELECT `+txColumns+`
		FROM nft_transactions
		WHERE tx_id >= $1
		ORDER BY tx_id
		LIMIT $2
	`, toDB(start), length)
	if err != nil {
		return nil, errors.Wrap(err, "range transactions")
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
	if err := l.c.q.QueryRow(ctx, `SELECT COUNT(*) FROM nft_transactions`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count transactions")
	}
	return uint64(n), nil
}

func (l *TransactionLog) Last(ctx context.Context) (types.TransactionRecord, bool, error) {
	rows, err := l.c.q.Query(ctx, `
		SELECT `+txColumns+`
		FROM nft_transactions
		ORDER BY tx_id DESC
		LIMIT 1
	`)
	if err != nil {
		return types.TransactionRecord{}, false, errors.Wrap(err, "last transaction")
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

func scanTransaction(rows pgx.Rows) (types.TransactionRecord, error) {
	var (
		rec             types.TransactionRecord
		id, ts, tokenID int64
		kind            string
	)
	if err := rows.Scan(&id, &kind, &ts, &tokenID,
		&rec.FromPrincipal, &rec.FromSubaccount, &rec.ToPrincipal, &rec.ToSubaccount,
		&rec.SpenderPrincipal, &rec.SpenderSubaccount, &rec.Memo,
	); err != nil {
		return types.TransactionRecord{}, errors.Wrap(err, "scan transaction")
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
	err := d.c.q.QueryRow(ctx,
		`SELECT tx_id FROM nft_dedup_entries WHERE fingerprint = $1`, key,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "dedup lookup")
	}
	return fromDB(id), true, nil
}

func (d *DedupIndex) Remember(ctx context.Context, key string, txID uint64, createdAt uint64) error {
	return d.c.write(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `
			INSERT INTO nft_dedup_entries (fingerprint, tx_id, created_at_ns)
			VALUES ($1, $2, $3)
			ON CONFLICT (fingerprint) DO NOTHING
		`, key, toDB(txID), toDB(createdAt))
		if err != nil {
			return errors.Wrap(err, "dedup remember")
		}
		if tag.RowsAffected() == 0 {
			return store.ErrAlreadyExists
		}
		return nil
	})
}

func (d *DedupIndex) PruneOlderThan(ctx context.Context, cutoff uint64) (int64, error) {
	var n int64
	err := d.c.write(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM nft_dedup_entries WHERE created_at_ns < $1`, toDB(cutoff))
		if err != nil {
			return errors.Wrap(err, "dedup prune")
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}
