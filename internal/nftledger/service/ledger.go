package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/nftledger/internal/metrics"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/store"
	"github.com/BrandonDHaskell/nftledger/internal/nftledger/types"
)

// Collection describes the static configuration of the NFT collection.
type Collection struct {
	Name        string
	Symbol      string
	Description string

	// SupplyCap limits the number of tokens that can ever be minted.
	// Nil means uncapped.
	SupplyCap *uint64

	// Minter is the only principal allowed to mint, unless TestMode is set,
	// in which case any non-empty caller may mint.
	Minter   types.Principal
	TestMode bool
}

// Limits bounds request sizes and the deduplication window.
type Limits struct {
	MaxMemoSize        int
	MaxUpdateBatchSize int
	DefaultTake        int
	MaxTake            int

	// MaxApprovals caps live-or-expired approval records per token and per
	// owner account at the collection level. 0 disables the cap.
	MaxApprovals      int
	MaxRevokeApproval int

	TxWindow       time.Duration
	PermittedDrift time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxMemoSize:        32,
		MaxUpdateBatchSize: 100,
		DefaultTake:        100,
		MaxTake:            1000,
		MaxApprovals:       100,
		MaxRevokeApproval:  100,
		TxWindow:           24 * time.Hour,
		PermittedDrift:     2 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxMemoSize <= 0 {
		l.MaxMemoSize = d.MaxMemoSize
	}
	if l.MaxUpdateBatchSize <= 0 {
		l.MaxUpdateBatchSize = d.MaxUpdateBatchSize
	}
	if l.DefaultTake <= 0 {
		l.DefaultTake = d.DefaultTake
	}
	if l.MaxTake <= 0 {
		l.MaxTake = d.MaxTake
	}
	if l.DefaultTake > l.MaxTake {
		l.DefaultTake = l.MaxTake
	}
	if l.MaxRevokeApproval <= 0 {
		l.MaxRevokeApproval = d.MaxRevokeApproval
	}
	if l.TxWindow <= 0 {
		l.TxWindow = d.TxWindow
	}
	if l.PermittedDrift < 0 {
		l.PermittedDrift = d.PermittedDrift
	}
	return l
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces the wall clock used as ledger time.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.clock = now }
}

func WithLimits(lim Limits) Option {
	return func(l *Ledger) { l.limits = lim.withDefaults() }
}

// WithSingleUseApprovals makes a transfer_from authorised by a collection
// approval delete that approval. Token approvals are always dropped when the
// token changes hands.
func WithSingleUseApprovals(on bool) Option {
	return func(l *Ledger) { l.singleUse = on }
}

// Ledger is the ownership, approval and transfer engine. Every mutating
// call holds mu for its whole duration, so batch items run strictly one
// after another; queries read committed store state without the lock.
// Several Ledgers may share one store: each item first catches its counters
// up with whatever the others appended.
type Ledger struct {
	store     store.Store
	coll      Collection
	limits    Limits
	singleUse bool
	logger    *slog.Logger
	clock     func() time.Time

	mu        sync.Mutex
	recovered bool

	lastTime atomic.Uint64 // timestamp of the last appended record
	txCount  atomic.Uint64
	supply   atomic.Uint64
}

func New(st store.Store, coll Collection, opts ...Option) *Ledger {
	l := &Ledger{
		store:  st,
		coll:   coll,
		limits: DefaultLimits(),
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Recover reloads the transaction counter, the last ledger time and the
// total supply from the store. Mutating calls recover lazily if it was not
// called.
func (l *Ledger) Recover(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recoverLocked(ctx)
}

func (l *Ledger) recoverLocked(ctx context.Context) error {
	n, err := l.store.Transactions().Len(ctx)
	if err != nil {
		return fmt.Errorf("recover tx count: %w", err)
	}
	last, ok, err := l.store.Transactions().Last(ctx)
	if err != nil {
		return fmt.Errorf("recover last tx: %w", err)
	}
	if ok && last.ID+1 != n {
		return fmt.Errorf("recover: last id %d with %d records: %w", last.ID, n, store.ErrNonContiguousTxID)
	}
	supply, err := l.store.Tokens().Count(ctx)
	if err != nil {
		return fmt.Errorf("recover supply: %w", err)
	}

	l.txCount.Store(n)
	l.supply.Store(supply)
	if ok {
		l.lastTime.Store(last.Timestamp)
	}
	l.recovered = true

	metrics.TransactionCount.Set(float64(n))
	metrics.TotalSupply.Set(float64(supply))
	l.logger.Info("ledger recovered",
		"tx_count", n,
		"total_supply", supply,
		"last_timestamp", l.lastTime.Load(),
	)
	return nil
}

// resync catches the counters up with records appended through the same
// store by another Ledger. It runs inside the item's unit, so what it reads
// cannot change before the item commits.
func (l *Ledger) resync(ctx context.Context, tx store.Tx) error {
	last, ok, err := tx.Transactions().Last(ctx)
	if err != nil {
		return fmt.Errorf("resync last tx: %w", err)
	}
	var next uint64
	if ok {
		next = last.ID + 1
	}
	if next == l.txCount.Load() {
		return nil
	}

	supply, err := tx.Tokens().Count(ctx)
	if err != nil {
		return fmt.Errorf("resync supply: %w", err)
	}
	l.logger.Info("ledger resynced",
		"tx_count", next,
		"previous_tx_count", l.txCount.Load(),
		"total_supply", supply,
	)
	l.txCount.Store(next)
	l.supply.Store(supply)
	if ok && last.Timestamp > l.lastTime.Load() {
		l.lastTime.Store(last.Timestamp)
	}
	metrics.TransactionCount.Set(float64(next))
	metrics.TotalSupply.Set(float64(supply))
	return nil
}

func (l *Ledger) ensureRecovered(ctx context.Context) error {
	if l.recovered {
		return nil
	}
	return l.recoverLocked(ctx)
}

// now returns the ledger time in nanoseconds. It never goes backwards
// relative to the last committed record.
func (l *Ledger) now() uint64 {
	t := l.clock().UnixNano()
	if t < 0 {
		t = 0
	}
	last := l.lastTime.Load()
	if u := uint64(t); u > last {
		return u
	}
	return last
}

// LedgerTime returns the current ledger time in nanoseconds.
func (l *Ledger) LedgerTime() uint64 {
	return l.now()
}

// ── per-item commit ──────────────────────────────────────────────────────

// errRejected aborts an Atomic unit after a typed rejection.
var errRejected = errors.New("item rejected")

// itemFn validates and applies one batch item inside a store transaction.
// A non-nil rejection aborts the unit without side effects; a non-nil error
// is an infrastructure failure.
type itemFn[E types.VariantError] func(ctx context.Context, tx store.Tx, now uint64) (rec *types.TransactionRecord, rej E, err error)

// commitItem runs fn atomically. On success it appends rec to the log and
// returns its id; fn must not append on its own. onCommit runs inside the
// same unit after the append, so dedup fingerprints share the item's fate.
func commitItem[E types.VariantError](
	ctx context.Context,
	l *Ledger,
	op string,
	fn itemFn[E],
	onCommit func(ctx context.Context, tx store.Tx, txID uint64) error,
) *types.Result[E] {
	if err := l.ensureRecovered(ctx); err != nil {
		return storageFailure[E](l, op, err)
	}

	var (
		id  uint64
		ts  uint64
		rej E
	)
	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := l.resync(ctx, tx); err != nil {
			return err
		}
		now := l.now()

		rec, r, err := fn(ctx, tx, now)
		if err != nil {
			return err
		}
		if any(r) != nil {
			rej = r
			return errRejected
		}

		rec.Timestamp = now
		id, err = tx.Transactions().Append(ctx, *rec)
		if err != nil {
			return err
		}
		if want := l.txCount.Load(); id != want {
			return fmt.Errorf("append returned id %d, expected %d: %w", id, want, store.ErrNonContiguousTxID)
		}
		ts = rec.Timestamp

		if onCommit != nil {
			return onCommit(ctx, tx, id)
		}
		return nil
	})

	switch {
	case errors.Is(err, errRejected):
		metrics.OperationItems.WithLabelValues(op, metrics.OutcomeRejected, rej.Variant()).Inc()
		l.logger.Debug("item rejected", "op", op, "variant", rej.Variant(), "reason", rej.Error())
		return types.Fail(rej)
	case err != nil:
		// A failed unit may have left the in-memory counters stale.
		l.recovered = false
		return storageFailure[E](l, op, err)
	}

	l.txCount.Store(id + 1)
	l.lastTime.Store(ts)
	metrics.TransactionCount.Set(float64(id + 1))
	metrics.OperationItems.WithLabelValues(op, metrics.OutcomeOK, "").Inc()
	l.logger.Debug("item committed", "op", op, "tx_id", id)
	return types.Ok[E](id)
}

func storageFailure[E types.VariantError](l *Ledger, op string, err error) *types.Result[E] {
	metrics.OperationItems.WithLabelValues(op, metrics.OutcomeFailed, "GenericError").Inc()
	l.logger.Error("ledger storage failure", "op", op, "err", err)
	return types.Fail(genericFor[E](types.GenericError{ErrorCode: types.ErrCodeStorage, Message: err.Error()}))
}

// genericFor converts a GenericError into any family's error type; every
// family includes the GenericError variant.
func genericFor[E types.VariantError](g types.GenericError) E {
	return any(g).(E)
}

// ── batch helpers ────────────────────────────────────────────────────────

// runBatch applies item to each element of args in order. Batches over
// limit get a GenericBatchError in the first slot and no other results.
func runBatch[A any, E types.VariantError](
	l *Ledger,
	op string,
	args []A,
	limit int,
	item func(arg A) *types.Result[E],
) []*types.Result[E] {
	defer observe(op, time.Now())

	out := make([]*types.Result[E], len(args))
	if len(args) == 0 {
		return out
	}
	metrics.BatchSize.Observe(float64(len(args)))

	if len(args) > limit {
		be := batchTooLarge[E](len(args), limit)
		out[0] = types.Fail(be)
		metrics.OperationItems.WithLabelValues(op, metrics.OutcomeRejected, be.Variant()).Inc()
		return out
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, a := range args {
		out[i] = item(a)
	}
	return out
}

// batchTooLarge returns a GenericBatchError, or a GenericError with the same
// code for families without a batch variant (mint).
func batchTooLarge[E types.VariantError](n, limit int) E {
	msg := fmt.Sprintf("batch of %d exceeds limit %d", n, limit)
	if e, ok := any(types.GenericBatchError{ErrorCode: types.ErrCodeBatchTooLarge, Message: msg}).(E); ok {
		return e
	}
	return genericFor[E](types.GenericError{ErrorCode: types.ErrCodeBatchTooLarge, Message: msg})
}

func observe(op string, start time.Time) {
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ── shared validation ────────────────────────────────────────────────────

func (l *Ledger) windowNs() (window, drift uint64) {
	return uint64(l.limits.TxWindow.Nanoseconds()), uint64(l.limits.PermittedDrift.Nanoseconds())
}

// checkCreatedAt reports the time-window variant for createdAt, or nil.
func (l *Ledger) checkCreatedAt(createdAt *uint64, now uint64) types.VariantError {
	if createdAt == nil {
		return nil
	}
	window, drift := l.windowNs()
	if now > window+drift && *createdAt < now-(window+drift) {
		return types.TooOld{}
	}
	if *createdAt > now+drift {
		return types.CreatedInFuture{LedgerTime: now}
	}
	return nil
}

// dedupCutoff is the oldest created_at_time still inside the window.
func (l *Ledger) dedupCutoff(now uint64) uint64 {
	window, drift := l.windowNs()
	if now <= window+drift {
		return 0
	}
	return now - (window + drift)
}

func (l *Ledger) checkMemo(memo []byte) *types.GenericError {
	if len(memo) > l.limits.MaxMemoSize {
		return &types.GenericError{
			ErrorCode: types.ErrCodeMemoTooLarge,
			Message:   fmt.Sprintf("memo of %d bytes exceeds %d", len(memo), l.limits.MaxMemoSize),
		}
	}
	return nil
}

func invalidAccount(role string, err error) *types.GenericError {
	return &types.GenericError{ErrorCode: types.ErrCodeInvalidAccount, Message: role + ": " + err.Error()}
}

func checkTokenID(id uint64) *types.GenericError {
	if id > math.MaxInt64 {
		return &types.GenericError{ErrorCode: types.ErrCodeTokenIDOverflow, Message: fmt.Sprintf("token id %d out of range", id)}
	}
	return nil
}

func cloneMemo(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
