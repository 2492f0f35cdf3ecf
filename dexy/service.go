package dexy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stableminer/stableminer/erg"
	"github.com/stableminer/stableminer/state"
)

// Account identifies the wallet an operation runs for.
type Account struct {
	SessionID string
	Address   string
	Network   string
}

// Locker serializes mints per wallet. Acquire fails fast when a mint for key
// is already running.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MintNotice describes a broadcast mint.
type MintNotice struct {
	Address   string
	Mode      Mode
	Amount    string
	TokenName string
	TxID      string
}

// Notifier is told about every broadcast mint.
type Notifier interface {
	NotifyMint(ctx context.Context, notice MintNotice) error
}

type Service struct {
	locker   Locker
	notifier Notifier
}

// NewService builds the public Dexy operations. A nil locker falls back to an
// in-process mint guard; notifier may be nil.
func NewService(locker Locker, notifier Notifier) *Service {
	if locker == nil {
		locker = state.NewMintGuard(nil, 0)
	}
	return &Service{
		locker:   locker,
		notifier: notifier,
	}
}

// Status loads fresh state and formats it for account.
func (s *Service) Status(ctx context.Context, node StateReader, account Account) (StatusResponse, error) {
	state, err := LoadState(ctx, node, account.Network)
	if err != nil {
		return StatusResponse{}, err
	}
	return NewStatusResponse(state, account.Address), nil
}

// Quote validates the request, loads fresh state and prices the mint.
func (s *Service) Quote(ctx context.Context, node StateReader, account Account, ergAmount, mode string) (QuoteResponse, error) {
	nano, m, err := validate(ergAmount, mode)
	if err != nil {
		return QuoteResponse{}, err
	}

	state, err := LoadState(ctx, node, account.Network)
	if err != nil {
		return QuoteResponse{}, err
	}

	q, err := QuoteFor(state, nano, m)
	if err != nil {
		return QuoteResponse{}, err
	}
	metricQuote(q.Mode)

	return NewQuoteResponse(state, q), nil
}

// Mint recomputes state and quote, assembles the mint and submits it through
// the node. Only one mint per wallet runs at a time. Once started a mint runs
// to completion or failure; cancelling ctx does not abort it.
func (s *Service) Mint(ctx context.Context, node Node, account Account, ergAmount, mode string) (resp MintResponse, err error) {
	nano, m, err := validate(ergAmount, mode)
	if err != nil {
		return MintResponse{}, err
	}
	if strings.TrimSpace(account.Address) == "" {
		return MintResponse{}, fmt.Errorf("wallet %w", ErrMissingAddress)
	}

	ctx = detached{ctx}

	release, err := s.locker.Acquire(ctx, account.Address)
	if err != nil {
		return MintResponse{}, err
	}
	defer release()

	start := time.Now()
	log := zap.L().With(
		zap.String("session_id", account.SessionID),
		zap.String("wallet_addr", account.Address),
	)

	state, err := LoadState(ctx, node, account.Network)
	if err != nil {
		return MintResponse{}, err
	}

	q, err := QuoteFor(state, nano, m)
	if err != nil {
		return MintResponse{}, err
	}
	defer func() { metricMint(q.Mode, err) }()

	plan, err := BuildPlan(ctx, node, state, q, account.Address)
	if err != nil {
		log.Debug("mint plan rejected", zap.Error(err))
		return MintResponse{}, err
	}

	txID, err := Submit(ctx, node, plan)
	if err != nil {
		log.Info("mint submission failed", zap.Error(err), zap.Int64("durationMs", time.Since(start).Milliseconds()))
		return MintResponse{}, err
	}

	log.Info("mint submitted",
		zap.String("tx_id", txID),
		zap.String("mode", string(q.Mode)),
		zap.Int("inputs", len(plan.Inputs)),
		zap.Int64("durationMs", time.Since(start).Milliseconds()),
	)

	resp = MintResponse{TxID: txID, Quote: NewQuoteResponse(state, q)}
	s.notify(ctx, log, MintNotice{
		Address:   account.Address,
		Mode:      q.Mode,
		Amount:    resp.Quote.UseMinted,
		TokenName: state.TokenLabel(),
		TxID:      txID,
	})

	return resp, nil
}

func (s *Service) notify(ctx context.Context, log *zap.Logger, notice MintNotice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyMint(ctx, notice); err != nil {
		log.Error("failed to publish mint notification", zap.Error(err), zap.String("tx_id", notice.TxID))
	}
}

// detached keeps the values of its parent but none of its cancellation, so a
// caller going away cannot abort a broadcast the node already accepted.
type detached struct {
	parent context.Context
}

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detached) Done() <-chan struct{} { return nil }
func (detached) Err() error { return nil }
func (d detached) Value(key interface{}) interface{} { return d.parent.Value(key) }

// validate rejects bad input before any network call.
func validate(ergAmount, mode string) (erg.Amount, Mode, error) {
	nano, err := ParseNanoErg(ergAmount)
	if err != nil {
		return erg.Amount{}, "", err
	}
	if nano.Sign() <= 0 {
		return erg.Amount{}, "", ErrAmountNotPositive
	}
	m, err := ParseMode(mode)
	if err != nil {
		return erg.Amount{}, "", err
	}
	return nano, m, nil
}
