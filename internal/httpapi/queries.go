package httpapi

import (
	"net/http"
	"strconv"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// ── Queries ──────────────────────────────────────────────────────────────────

type collectionResponse struct {
	Name               string           `json:"name"`
	Symbol             string           `json:"symbol"`
	Description        *string          `json:"description,omitempty"`
	SupplyCap          *uint64          `json:"supply_cap,omitempty"`
	TotalSupply        uint64           `json:"total_supply"`
	SupportedStandards []types.Standard `json:"supported_standards"`
	Metadata           types.Metadata   `json:"metadata"`
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	supply, err := s.ledger.TotalSupply(ctx)
	if err != nil {
		s.storeError(w, "total supply", err)
		return
	}
	md, err := s.ledger.CollectionMetadata(ctx)
	if err != nil {
		s.storeError(w, "collection metadata", err)
		return
	}

	writeJSON(w, http.StatusOK, collectionResponse{
		Name:               s.ledger.Name(),
		Symbol:             s.ledger.Symbol(),
		Description:        s.ledger.Description(),
		SupplyCap:          s.ledger.SupplyCap(),
		TotalSupply:        supply,
		SupportedStandards: s.ledger.SupportedStandards(),
		Metadata:           md,
	})
}

func (s *Server) handleCollectionMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := s.ledger.CollectionMetadata(r.Context())
	if err != nil {
		s.storeError(w, "collection metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleSupportedStandards(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.SupportedStandards())
}

type tokenIDsRequest struct {
	TokenIDs []uint64 `json:"token_ids"`
}

func (s *Server) handleTokenMetadata(w http.ResponseWriter, r *http.Request) {
	var req tokenIDsRequest
	if !decodeQuery(w, r, &req) {
		return
	}
	out, err := s.ledger.TokenMetadata(r.Context(), req.TokenIDs)
	if err != nil {
		s.storeError(w, "token metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOwnerOf(w http.ResponseWriter, r *http.Request) {
	var req tokenIDsRequest
	if !decodeQuery(w, r, &req) {
		return
	}
	out, err := s.ledger.OwnerOf(r.Context(), req.TokenIDs)
	if err != nil {
		s.storeError(w, "owner of", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type accountsRequest struct {
	Accounts []types.Account `json:"accounts"`
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, r *http.Request) {
	var req accountsRequest
	if !decodeQuery(w, r, &req) {
		return
	}
	out, err := s.ledger.BalanceOf(r.Context(), req.Accounts)
	if err != nil {
		s.storeError(w, "balance of", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTokens serves GET /v1/tokens?prev=<id>&take=<n>.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var prev *uint64
	if v := q.Get("prev"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_query", "prev must be a token id")
			return
		}
		prev = &n
	}
	take, ok := queryInt(w, q.Get("take"), "take")
	if !ok {
		return
	}

	out, err := s.ledger.Tokens(r.Context(), prev, take)
	if err != nil {
		s.storeError(w, "tokens", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type tokensOfRequest struct {
	Account types.Account `json:"account"`
	Prev    *uint64       `json:"prev,omitempty"`
	Take    int           `json:"take,omitempty"`
}

func (s *Server) handleTokensOf(w http.ResponseWriter, r *http.Request) {
	var req tokensOfRequest
	if !decodeQuery(w, r, &req) {
		return
	}
	out, err := s.ledger.TokensOf(r.Context(), req.Account, req.Prev, req.Take)
	if err != nil {
		s.storeError(w, "tokens of", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleIsApproved(w http.ResponseWriter, r *http.Request) {
	var args []types.IsApprovedArg
	if !decodeQuery(w, r, &args) {
		return
	}
	out, err := s.ledger.IsApproved(r.Context(), args)
	if err != nil {
		s.storeError(w, "is approved", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type tokenApprovalsRequest struct {
	TokenID uint64         `json:"token_id"`
	Prev    *types.Account `json:"prev,omitempty"`
	Take    int            `json:"take,omitempty"`
}

func (s *Server) handleTokenApprovals(w http.ResponseWriter, r *http.Request) {
	var req tokenApprovalsRequest
	if !decodeQuery(w, r, &req) {
		return
	}
	out, err := s.ledger.TokenApprovals(r.Context(), req.TokenID, req.Prev, req.Take)
	if err != nil {
		s.storeError(w, "token approvals", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type collectionApprovalsRequest struct {
	Owner types.Account  `json:"owner"`
	Prev  *types.Account `json:"prev,omitempty"`
	Take  int            `json:"take,omitempty"`
}

func (s *Server) handleCollectionApprovals(w http.ResponseWriter, r *http.Request) {
	var req collectionApprovalsRequest
	if !decodeQuery(w, r, &req) {
		return
	}
	out, err := s.ledger.CollectionApprovals(r.Context(), req.Owner, req.Prev, req.Take)
	if err != nil {
		s.storeError(w, "collection approvals", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type transactionsResponse struct {
	LogLength    uint64                    `json:"log_length"`
	Transactions []types.TransactionRecord `json:"transactions"`
}

// handleTransactions serves GET /v1/transactions?start=<id>&length=<n>.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var start uint64
	if v := q.Get("start"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_query", "start must be a transaction id")
			return
		}
		start = n
	}
	length := s.ledger.Limits().DefaultTake
	if v := q.Get("length"); v != "" {
		n, ok := queryInt(w, v, "length")
		if !ok {
			return
		}
		length = n
	}

	ctx := r.Context()
	n, err := s.ledger.TransactionCount(ctx)
	if err != nil {
		s.storeError(w, "transaction count", err)
		return
	}
	txs, err := s.ledger.GetTransactions(ctx, start, length)
	if err != nil {
		s.storeError(w, "get transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{LogLength: n, Transactions: txs})
}

// decodeQuery reads a query body, writing a 400 on failure.
func decodeQuery(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := readJSON(w, r, v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, v, name string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "bad_query", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("query failed", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, "internal", "ledger store error")
}
