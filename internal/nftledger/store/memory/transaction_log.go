package memory

import (
	"context"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type transactionLog struct {
	view
}

func (l *transactionLog) Append(_ context.Context, rec types.TransactionRecord) (uint64, error) {
	defer l.lock()()

	rec.ID = uint64(len(l.s.st.txs))
	rec.Memo = cloneBytes(rec.Memo)
	l.s.st.txs = append(l.s.st.txs, rec)

	n := len(l.s.st.txs) - 1
	l.record(func(st *state) { st.txs = st.txs[:n] })
	return rec.ID, nil
}

func (l *transactionLog) Range(_ context.Context, start uint64, length int) ([]types.TransactionRecord, error) {
	defer l.rlock()()

	total := uint64(len(l.s.st.txs))
	if start >= total || length <= 0 {
		return []types.TransactionRecord{}, nil
	}
	end := total
	if uint64(length) < total-start {
		end = start + uint64(length)
	}
	out := make([]types.TransactionRecord, end-start)
	copy(out, l.s.st.txs[start:end])
	return out, nil
}

func (l *transactionLog) Len(_ context.Context) (uint64, error) {
	defer l.rlock()()
	return uint64(len(l.s.st.txs)), nil
}

func (l *transactionLog) Last(_ context.Context) (types.TransactionRecord, bool, error) {
	defer l.rlock()()

	if len(l.s.st.txs) == 0 {
		return types.TransactionRecord{}, false, nil
	}
	return l.s.st.txs[len(l.s.st.txs)-1], true, nil
}

type dedupIndex struct {
	view
}

func (d *dedupIndex) Lookup(_ context.Context, key string) (uint64, bool, error) {
	defer d.rlock()()

	e, ok := d.s.st.dedup[key]
	return e.txID, ok, nil
}

func (d *dedupIndex) Remember(_ context.Context, key string, txID uint64, createdAt uint64) error {
	defer d.lock()()

	if _, ok := d.s.st.dedup[key]; ok {
		return store.ErrAlreadyExists
	}
	d.s.st.dedup[key] = dedupEntry{txID: txID, createdAt: createdAt}

	d.record(func(st *state) { delete(st.dedup, key) })
	return nil
}

func (d *dedupIndex) PruneOlderThan(_ context.Context, cutoff uint64) (int64, error) {
	defer d.lock()()

	removed := make(map[string]dedupEntry)
	for k, e := range d.s.st.dedup {
		if e.createdAt < cutoff {
			removed[k] = e
			delete(d.s.st.dedup, k)
		}
	}

	d.record(func(st *state) {
		for k, e := range removed {
			st.dedup[k] = e
		}
	})
	return int64(len(removed)), nil
}
