package memory

import (
	"context"
	"sort"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type tokenStore struct {
	view
}

func (s *tokenStore) Create(_ context.Context, rec store.TokenRecord) error {
	defer s.lock()()

	if _, ok := s.s.st.tokens[rec.ID]; ok {
		return store.ErrAlreadyExists
	}
	rec.Owner = rec.Owner.Canonical()
	rec.Metadata = rec.Metadata.Clone()
	s.s.st.tokens[rec.ID] = rec

	id := rec.ID
	s.record(func(st *state) { delete(st.tokens, id) })
	return nil
}

func (s *tokenStore) Get(_ context.Context, tokenID uint64) (store.TokenRecord, bool, error) {
	defer s.rlock()()

	rec, ok := s.s.st.tokens[tokenID]
	if !ok {
		return store.TokenRecord{}, false, nil
	}
	rec.Metadata = rec.Metadata.Clone()
	return rec, true, nil
}

func (s *tokenStore) GetOwner(_ context.Context, tokenID uint64) (types.Account, bool, error) {
	defer s.rlock()()

	rec, ok := s.s.st.tokens[tokenID]
	if !ok {
		return types.Account{}, false, nil
	}
	return rec.Owner.Canonical(), true, nil
}

func (s *tokenStore) SetOwner(_ context.Context, tokenID uint64, owner types.Account) error {
	defer s.lock()()

	rec, ok := s.s.st.tokens[tokenID]
	if !ok {
		return store.ErrNotFound
	}
	prev := rec.Owner
	rec.Owner = owner.Canonical()
	s.s.st.tokens[tokenID] = rec

	s.record(func(st *state) {
		r := st.tokens[tokenID]
		r.Owner = prev
		st.tokens[tokenID] = r
	})
	return nil
}

func (s *tokenStore) Exists(_ context.Context, tokenID uint64) (bool, error) {
	defer s.rlock()()
	_, ok := s.s.st.tokens[tokenID]
	return ok, nil
}

func (s *tokenStore) Count(_ context.Context) (uint64, error) {
	defer s.rlock()()
	return uint64(len(s.s.st.tokens)), nil
}

func (s *tokenStore) BalanceOf(_ context.Context, owner types.Account) (uint64, error) {
	defer s.rlock()()

	var n uint64
	for _, rec := range s.s.st.tokens {
		if rec.Owner.Equal(owner) {
			n++
		}
	}
	return n, nil
}

func (s *tokenStore) List(_ context.Context, prev *uint64, take int) ([]uint64, error) {
	defer s.rlock()()
	return s.sortedIDs(func(store.TokenRecord) bool { return true }, prev, take), nil
}

func (s *tokenStore) ListOwned(_ context.Context, owner types.Account, prev *uint64, take int) ([]uint64, error) {
	defer s.rlock()()
	return s.sortedIDs(func(rec store.TokenRecord) bool { return rec.Owner.Equal(owner) }, prev, take), nil
}

// sortedIDs must be called with the lock held.
func (s *tokenStore) sortedIDs(match func(store.TokenRecord) bool, prev *uint64, take int) []uint64 {
	ids := make([]uint64, 0, len(s.s.st.tokens))
	for id, rec := range s.s.st.tokens {
		if prev != nil && id <= *prev {
			continue
		}
		if match(rec) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if take > 0 && len(ids) > take {
		ids = ids[:take]
	}
	return ids
}
