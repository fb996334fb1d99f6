package memory

import (
	"context"
	"sort"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type approvalStore struct {
	view
}

func tokenKey(tokenID uint64, owner, spender types.Account) tokenApprovalKey {
	return tokenApprovalKey{tokenID: tokenID, owner: owner.Key(), spender: spender.Key()}
}

func collectionKey(owner, spender types.Account) collectionApprovalKey {
	return collectionApprovalKey{owner: owner.Key(), spender: spender.Key()}
}

func copyTokenApproval(r store.TokenApprovalRecord) store.TokenApprovalRecord {
	r.Owner = r.Owner.Canonical()
	r.Spender = r.Spender.Canonical()
	r.ExpiresAt = cloneUint64(r.ExpiresAt)
	r.Memo = cloneBytes(r.Memo)
	return r
}

func copyCollectionApproval(r store.CollectionApprovalRecord) store.CollectionApprovalRecord {
	r.Owner = r.Owner.Canonical()
	r.Spender = r.Spender.Canonical()
	r.ExpiresAt = cloneUint64(r.ExpiresAt)
	r.Memo = cloneBytes(r.Memo)
	return r
}

func (s *approvalStore) PutTokenApproval(_ context.Context, rec store.TokenApprovalRecord) error {
	defer s.lock()()

	k := tokenKey(rec.TokenID, rec.Owner, rec.Spender)
	prev, existed := s.s.st.approvals[k]
	s.s.st.approvals[k] = copyTokenApproval(rec)

	s.record(func(st *state) {
		if existed {
			st.approvals[k] = prev
		} else {
			delete(st.approvals, k)
		}
	})
	return nil
}

func (s *approvalStore) PutCollectionApproval(_ context.Context, rec store.CollectionApprovalRecord) error {
	defer s.lock()()

	k := collectionKey(rec.Owner, rec.Spender)
	prev, existed := s.s.st.collection[k]
	s.s.st.collection[k] = copyCollectionApproval(rec)

	s.record(func(st *state) {
		if existed {
			st.collection[k] = prev
		} else {
			delete(st.collection, k)
		}
	})
	return nil
}

func (s *approvalStore) RemoveTokenApproval(_ context.Context, tokenID uint64, owner, spender types.Account) error {
	defer s.lock()()

	k := tokenKey(tokenID, owner, spender)
	prev, ok := s.s.st.approvals[k]
	if !ok {
		return store.ErrApprovalNotFound
	}
	delete(s.s.st.approvals, k)

	s.record(func(st *state) { st.approvals[k] = prev })
	return nil
}

func (s *approvalStore) RemoveCollectionApproval(_ context.Context, owner, spender types.Account) error {
	defer s.lock()()

	k := collectionKey(owner, spender)
	prev, ok := s.s.st.collection[k]
	if !ok {
		return store.ErrApprovalNotFound
	}
	delete(s.s.st.collection, k)

	s.record(func(st *state) { st.collection[k] = prev })
	return nil
}

func (s *approvalStore) RemoveTokenApprovals(_ context.Context, tokenID uint64) (int64, error) {
	defer s.lock()()

	removed := make(map[tokenApprovalKey]store.TokenApprovalRecord)
	for k, rec := range s.s.st.approvals {
		if k.tokenID == tokenID {
			removed[k] = rec
			delete(s.s.st.approvals, k)
		}
	}

	if len(removed) > 0 {
		s.record(func(st *state) {
			for k, rec := range removed {
				st.approvals[k] = rec
			}
		})
	}
	return int64(len(removed)), nil
}

func (s *approvalStore) TokenApprovals(_ context.Context, tokenID uint64, prev *types.Account, take int) ([]store.TokenApprovalRecord, error) {
	defer s.rlock()()

	var out []store.TokenApprovalRecord
	for k, rec := range s.s.st.approvals {
		if k.tokenID != tokenID {
			continue
		}
		if prev != nil && !prev.Less(rec.Spender) {
			continue
		}
		out = append(out, copyTokenApproval(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Spender.Equal(out[j].Spender) {
			return out[i].Spender.Less(out[j].Spender)
		}
		return out[i].Owner.Less(out[j].Owner)
	})
	if take > 0 && len(out) > take {
		out = out[:take]
	}
	return out, nil
}

func (s *approvalStore) CollectionApprovals(_ context.Context, owner types.Account, prev *types.Account, take int) ([]store.CollectionApprovalRecord, error) {
	defer s.rlock()()

	ownerKey := owner.Key()
	var out []store.CollectionApprovalRecord
	for k, rec := range s.s.st.collection {
		if k.owner != ownerKey {
			continue
		}
		if prev != nil && !prev.Less(rec.Spender) {
			continue
		}
		out = append(out, copyCollectionApproval(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spender.Less(out[j].Spender) })
	if take > 0 && len(out) > take {
		out = out[:take]
	}
	return out, nil
}

func (s *approvalStore) IsApproved(_ context.Context, owner, spender types.Account, tokenID uint64, now uint64) (bool, error) {
	defer s.rlock()()

	if rec, ok := s.s.st.approvals[tokenKey(tokenID, owner, spender)]; ok && rec.LiveAt(now) {
		return true, nil
	}
	if rec, ok := s.s.st.collection[collectionKey(owner, spender)]; ok && rec.LiveAt(now) {
		return true, nil
	}
	return false, nil
}

func (s *approvalStore) PruneExpired(_ context.Context, now uint64) (int64, error) {
	defer s.lock()()

	tokenRemoved := make(map[tokenApprovalKey]store.TokenApprovalRecord)
	for k, rec := range s.s.st.approvals {
		if !rec.LiveAt(now) {
			tokenRemoved[k] = rec
			delete(s.s.st.approvals, k)
		}
	}
	collRemoved := make(map[collectionApprovalKey]store.CollectionApprovalRecord)
	for k, rec := range s.s.st.collection {
		if !rec.LiveAt(now) {
			collRemoved[k] = rec
			delete(s.s.st.collection, k)
		}
	}

	s.record(func(st *state) {
		for k, rec := range tokenRemoved {
			st.approvals[k] = rec
		}
		for k, rec := range collRemoved {
			st.collection[k] = rec
		}
	})
	return int64(len(tokenRemoved) + len(collRemoved)), nil
}
