package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/nftledger/internal/nftledger/service"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

type Dependencies struct {
	Logger *slog.Logger
	Addr   string
	Ledger *service.Ledger
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	ledger     *service.Ledger
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger: logger,
		mux:    mux,
		ledger: d.Ledger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Updates
	mux.HandleFunc("POST /v1/mint", s.handleMint)
	mux.HandleFunc("POST /v1/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/transfer_from", s.handleTransferFrom)
	mux.HandleFunc("POST /v1/approve_tokens", s.handleApproveTokens)
	mux.HandleFunc("POST /v1/approve_collection", s.handleApproveCollection)
	mux.HandleFunc("POST /v1/revoke_token_approvals", s.handleRevokeTokenApprovals)
	mux.HandleFunc("POST /v1/revoke_collection_approvals", s.handleRevokeCollectionApprovals)

	// Queries
	mux.HandleFunc("GET /v1/collection", s.handleCollection)
	mux.HandleFunc("GET /v1/collection/metadata", s.handleCollectionMetadata)
	mux.HandleFunc("GET /v1/supported_standards", s.handleSupportedStandards)
	mux.HandleFunc("POST /v1/token_metadata", s.handleTokenMetadata)
	mux.HandleFunc("POST /v1/owner_of", s.handleOwnerOf)
	mux.HandleFunc("POST /v1/balance_of", s.handleBalanceOf)
	mux.HandleFunc("GET /v1/tokens", s.handleTokens)
	mux.HandleFunc("POST /v1/tokens_of", s.handleTokensOf)
	mux.HandleFunc("POST /v1/is_approved", s.handleIsApproved)
	mux.HandleFunc("POST /v1/token_approvals", s.handleTokenApprovals)
	mux.HandleFunc("POST /v1/collection_approvals", s.handleCollectionApprovals)
	mux.HandleFunc("GET /v1/transactions", s.handleTransactions)

	handler := requestIDMiddleware(loggingMiddleware(logger, mux))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.TransactionCount(r.Context())
	if err != nil {
		s.logger.Error("health check", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "ledger store is not reachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "transactions": n})
}

// ── Updates ──────────────────────────────────────────────────────────────────

// update decodes a request body of type A, requires a caller and writes
// whatever run returns. Per-item rejections are part of a 200 response.
func update[A any](w http.ResponseWriter, r *http.Request, run func(ctx context.Context, caller types.Principal, arg A) any) {
	caller, ok := callerFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_caller", "X-Caller-Principal header is required")
		return
	}

	var arg A
	if err := readJSON(w, r, &arg); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	writeJSON(w, http.StatusOK, run(r.Context(), caller, arg))
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(ctx context.Context, caller types.Principal, arg types.MintArg) any {
		return s.ledger.Mint(ctx, caller, arg)
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(ctx context.Context, caller types.Principal, args []types.TransferArg) any {
		return s.ledger.Transfer(ctx, caller, args)
	})
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(ctx context.Context, caller types.Principal, args []types.TransferFromArg) any {
		return s.ledger.TransferFrom(ctx, caller, args)
	})
}

func (s *Server) handleApproveTokens(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(ctx context.Context, caller types.Principal, args []types.ApproveTokenArg) any {
		return s.ledger.ApproveTokens(ctx, caller, args)
	})
}

func (s *Server) handleApproveCollection(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(ctx context.Context, caller types.Principal, args []types.ApproveCollectionArg) any {
		return s.ledger.ApproveCollection(ctx, caller, args)
	})
}

func (s *Server) handleRevokeTokenApprovals(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(ctx context.Context, caller types.Principal, args []types.RevokeTokenApprovalArg) any {
		return s.ledger.RevokeTokenApprovals(ctx, caller, args)
	})
}

func (s *Server) handleRevokeCollectionApprovals(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(ctx context.Context, caller types.Principal, args []types.RevokeCollectionApprovalArg) any {
		return s.ledger.RevokeCollectionApprovals(ctx, caller, args)
	})
}
