package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// fingerprint identifies a request for deduplication. Fields are length
// prefixed so that no two distinct requests share an encoding.
func fingerprint(kind types.TxKind, caller, from, to types.Account, tokenID uint64, memo []byte, createdAt uint64) string {
	var b strings.Builder
	field := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	field(string(kind))
	field(caller.Key())
	field(from.Key())
	field(to.Key())
	field(strconv.FormatUint(tokenID, 10))
	field(hex.EncodeToString(memo))
	field(strconv.FormatUint(createdAt, 10))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// dedupKey returns the fingerprint for a request, or "" when the request
// carries no created_at_time and is never deduplicated.
func dedupKey(kind types.TxKind, caller, from, to types.Account, tokenID uint64, memo []byte, createdAt *uint64) string {
	if createdAt == nil {
		return ""
	}
	return fingerprint(kind, caller, from, to, tokenID, memo, *createdAt)
}

func lookupDuplicate(ctx context.Context, tx store.Tx, key string) (uint64, bool, error) {
	if key == "" {
		return 0, false, nil
	}
	return tx.Dedup().Lookup(ctx, key)
}

func rememberFn(key string, createdAt *uint64) func(ctx context.Context, tx store.Tx, txID uint64) error {
	if key == "" {
		return nil
	}
	at := *createdAt
	return func(ctx context.Context, tx store.Tx, txID uint64) error {
		return tx.Dedup().Remember(ctx, key, txID, at)
	}
}
