// Command nftledgerctl inspects a ledger database offline. It opens the
// SQLite file read-only and never writes to it.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/BrandonDHaskell/nftledger/internal/db"
	sqlitestore "github.com/BrandonDHaskell/nftledger/internal/nftledger/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	cmd, cfg := parseCommandLine()
	ctx := context.Background()

	var err error
	switch cmd {
	case transactionsSubCmd:
		c := cfg.(*transactionsConfig)
		err = withStore(ctx, c.DBPath, func(st *sqlitestore.Store) error {
			return printTransactions(ctx, st, c.Start, c.Length)
		})
	case ownerSubCmd:
		c := cfg.(*ownerConfig)
		err = withStore(ctx, c.DBPath, func(st *sqlitestore.Store) error {
			return printOwner(ctx, st, c.TokenID)
		})
	case verifySubCmd:
		c := cfg.(*verifyConfig)
		err = withStore(ctx, c.DBPath, func(st *sqlitestore.Store) error {
			rep, err := verify(ctx, st)
			if err != nil {
				return err
			}
			rep.print(os.Stdout)
			if !rep.ok() {
				return errors.Errorf("ledger verification failed with %d problem(s)", len(rep.Problems))
			}
			return nil
		})
	default:
		printErrorAndExit("Unknown command")
	}

	if err != nil {
		printErrorAndExit(err.Error())
	}
}

func withStore(ctx context.Context, path string, fn func(st *sqlitestore.Store) error) error {
	sqlDB, err := db.Open(ctx, db.Config{Path: path, ReadOnly: true})
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func(d *sql.DB) { _ = d.Close() }(sqlDB)

	return fn(sqlitestore.NewReadOnly(sqlDB))
}

func printTransactions(ctx context.Context, st *sqlitestore.Store, start uint64, length int) error {
	recs, err := st.Transactions().Range(ctx, start, length)
	if err != nil {
		return errors.Wrap(err, "read transactions")
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return errors.Wrap(err, "encode transaction")
		}
	}
	return nil
}

func printOwner(ctx context.Context, st *sqlitestore.Store, tokenID uint64) error {
	owner, ok, err := st.Tokens().GetOwner(ctx, tokenID)
	if err != nil {
		return errors.Wrapf(err, "owner of token %d", tokenID)
	}
	if !ok {
		return errors.Errorf("token %d does not exist", tokenID)
	}
	fmt.Println(owner.Key())
	return nil
}
