package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

const verifyPageSize = 1000

type report struct {
	Transactions uint64
	Mints        uint64
	Tokens       uint64
	Problems     []string
}

func (r *report) ok() bool { return len(r.Problems) == 0 }

func (r *report) addf(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "transactions: %d\nmints: %d\ntokens: %d\n", r.Transactions, r.Mints, r.Tokens)
	for _, p := range r.Problems {
		fmt.Fprintf(w, "problem: %s\n", p)
	}
	if r.ok() {
		fmt.Fprintln(w, "ok")
	}
}

// verify replays the transaction log and checks that ids are contiguous,
// that the supply matches the number of mints and that every token's owner
// is the destination of its latest mint or transfer.
func verify(ctx context.Context, st store.Tx) (*report, error) {
	rep := &report{}
	owners := make(map[uint64]types.Account)

	var next uint64
	for {
		recs, err := st.Transactions().Range(ctx, next, verifyPageSize)
		if err != nil {
			return nil, errors.Wrapf(err, "read transactions from %d", next)
		}
		for _, rec := range recs {
			if rec.ID != next {
				rep.addf("transaction id %d found where %d was expected", rec.ID, next)
			}
			next = rec.ID + 1
			rep.Transactions++

			if !rec.Kind.Valid() {
				rep.addf("transaction %d has unknown kind %q", rec.ID, rec.Kind)
				continue
			}
			switch rec.Kind {
			case types.TxMint:
				rep.Mints++
				if _, dup := owners[rec.TokenID]; dup {
					rep.addf("token %d minted twice (transaction %d)", rec.TokenID, rec.ID)
				}
			case types.TxTransfer, types.TxTransferFrom:
				if _, known := owners[rec.TokenID]; !known {
					rep.addf("transaction %d moves unminted token %d", rec.ID, rec.TokenID)
				}
			default:
				continue
			}
			to, err := destination(rec)
			if err != nil {
				rep.addf("transaction %d: %v", rec.ID, err)
				continue
			}
			owners[rec.TokenID] = to
		}
		if len(recs) < verifyPageSize {
			break
		}
	}

	n, err := st.Transactions().Len(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "transaction count")
	}
	if n != rep.Transactions {
		rep.addf("log length is %d but %d transactions were read", n, rep.Transactions)
	}

	supply, err := st.Tokens().Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "token count")
	}
	rep.Tokens = supply
	if supply != rep.Mints {
		rep.addf("total supply is %d but the log records %d mints", supply, rep.Mints)
	}

	if err := checkOwners(ctx, st, owners, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func checkOwners(ctx context.Context, st store.Tx, owners map[uint64]types.Account, rep *report) error {
	var prev *uint64
	for {
		ids, err := st.Tokens().List(ctx, prev, verifyPageSize)
		if err != nil {
			return errors.Wrap(err, "list tokens")
		}
		for _, id := range ids {
			want, ok := owners[id]
			if !ok {
				rep.addf("token %d exists but was never minted", id)
				continue
			}
			got, _, err := st.Tokens().GetOwner(ctx, id)
			if err != nil {
				return errors.Wrapf(err, "owner of token %d", id)
			}
			if !got.Equal(want) {
				rep.addf("token %d is owned by %s but the log says %s", id, got, want)
			}
		}
		if len(ids) < verifyPageSize {
			return nil
		}
		last := ids[len(ids)-1]
		prev = &last
	}
}

func destination(rec types.TransactionRecord) (types.Account, error) {
	if rec.ToPrincipal == "" {
		return types.Account{}, errors.New("missing destination")
	}
	sub, err := types.ParseSubaccount(rec.ToSubaccount)
	if err != nil {
		return types.Account{}, err
	}
	return types.NewAccount(types.Principal(rec.ToPrincipal), sub), nil
}
