// Package escrow sequences the escrow protocol: build the bonded bundle,
// obtain signatures, post the collateral lock, announce the bundle, and
// rebuild escrow history from the ledger.
package escrow

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mosaicswap/escrow-engine/pkg/builder"
	"github.com/mosaicswap/escrow-engine/pkg/config"
	"github.com/mosaicswap/escrow-engine/pkg/ledger"
	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/metrics"
	"github.com/mosaicswap/escrow-engine/pkg/models"
	"github.com/mosaicswap/escrow-engine/pkg/signer"
	"github.com/mosaicswap/escrow-engine/pkg/tracker"
)

// State is a stage of an escrow flow. Terminal state is always
// StateResolved; there are no retry transitions.
type State int

const (
	StateBuilt State = iota
	StateAwaitingBundleSignature
	StateAwaitingLockSignature
	StateAwaitingLockConfirmation
	StateAwaitingBundleConfirmation
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateAwaitingBundleSignature:
		return "awaiting-bundle-signature"
	case StateAwaitingLockSignature:
		return "awaiting-lock-signature"
	case StateAwaitingLockConfirmation:
		return "awaiting-lock-confirmation"
	case StateAwaitingBundleConfirmation:
		return "awaiting-bundle-confirmation"
	case StateResolved:
		return "resolved"
	}
	return "unknown"
}

// SessionFactory opens a fresh signer session. Each flow holds exactly one.
type SessionFactory func() signer.Device

// Service is the escrow orchestrator. One Service handles any number of
// concurrent flows; each flow owns its own signer session and subscriptions.
type Service struct {
	cfg      *config.Config
	gateway  ledger.Gateway
	builder  *builder.Builder
	tracker  *tracker.Tracker
	sessions SessionFactory
	logger   logger.Logger
}

// NewService creates the orchestrator.
func NewService(cfg *config.Config, gateway ledger.Gateway, sessions SessionFactory, log logger.Logger) *Service {
	return &Service{
		cfg:      cfg,
		gateway:  gateway,
		builder:  builder.New(cfg),
		tracker:  tracker.New(gateway, log, cfg.PollTimeout),
		sessions: sessions,
		logger:   log,
	}
}

// Create runs the escrow-creation flow to its terminal outcome. Errors are
// returned only for precondition failures (invalid terms, unknown address,
// no node reachable before anything was posted); once the flow starts, every
// result is an Outcome.
func (s *Service) Create(ctx context.Context, terms models.EscrowTerms) (models.Outcome, error) {
	started := time.Now()
	defer func() {
		metrics.EscrowProcessingTime.WithLabelValues("create").Observe(time.Since(started).Seconds())
	}()

	if err := builder.ValidateTerms(terms); err != nil {
		return models.Outcome{}, err
	}

	requester, err := s.gateway.AccountInfo(ctx, terms.RequesterAddress)
	if err != nil {
		return models.Outcome{}, err
	}
	counterparty, err := s.gateway.AccountInfo(ctx, terms.CounterpartyAddress)
	if err != nil {
		return models.Outcome{}, err
	}

	expiration, err := s.expirationInstant(ctx)
	if err != nil {
		return models.Outcome{}, err
	}

	bundle, err := s.builder.BuildBundle(terms, requester, counterparty, expiration)
	if err != nil {
		return models.Outcome{}, err
	}

	f := s.newFlow(StateBuilt, logger.Bundle)
	session := s.sessions()

	// First signature: the bundle itself. The lock cannot be built before
	// it, because the lock references the signed bundle's hash.
	f.advance(StateAwaitingBundleSignature)
	if err := session.SetBundle(bundle); err != nil {
		return s.resolveCreate(f, "signer", models.UndeterminedOutcome("", err.Error())), nil
	}
	signedBundle, err := session.RequestSignature(ctx)
	if err != nil {
		return s.resolveCreate(f, "signer", models.UndeterminedOutcome("", "bundle signature: "+err.Error())), nil
	}

	// The signer device rejects back-to-back requests without spacing.
	if err := wait(ctx, s.cfg.SignerSpacing); err != nil {
		return s.resolveCreate(f, "signer", models.UndeterminedOutcome(signedBundle.Hash, "cancelled")), nil
	}

	f.advance(StateAwaitingLockSignature)
	lock := s.builder.BuildHashLock(signedBundle)
	if err := session.SetHashLock(lock); err != nil {
		return s.resolveCreate(f, "signer", models.UndeterminedOutcome(signedBundle.Hash, err.Error())), nil
	}
	signedLock, err := session.RequestSignature(ctx)
	if err != nil {
		return s.resolveCreate(f, "signer", models.UndeterminedOutcome(signedBundle.Hash, "lock signature: "+err.Error())), nil
	}

	// The ledger rejects a bonded bundle without a confirmed lock, so the
	// bundle is never announced unless the lock succeeds.
	f.advance(StateAwaitingLockConfirmation)
	lockOutcome := s.tracker.Confirm(ctx, requester.Address, signedLock, logger.Lock)
	if !lockOutcome.Succeeded() {
		return s.resolveCreate(f, "lock", lockOutcome), nil
	}

	// Give the just-confirmed lock time to propagate; nodes that have not
	// seen it yet would reject the bundle.
	s.logger.InfoWithStage(logger.Lock, "lock %s confirmed, settling for %s", signedLock.Hash, s.cfg.SettlingDelay)
	if err := wait(ctx, s.cfg.SettlingDelay); err != nil {
		return s.resolveCreate(f, "lock", models.UndeterminedOutcome(signedBundle.Hash, "cancelled")), nil
	}

	f.advance(StateAwaitingBundleConfirmation)
	bundleOutcome := s.tracker.ConfirmBonded(ctx, requester.Address, signedBundle)
	return s.resolveCreate(f, "bundle", bundleOutcome), nil
}

// Cosign runs the cosignature-completion flow: locate the pending bundle by
// hash, obtain a cosignature over its serialized form, announce it, and wait
// for the parent bundle to confirm.
func (s *Service) Cosign(ctx context.Context, partyAddress, hash string) (models.Outcome, error) {
	started := time.Now()
	defer func() {
		metrics.EscrowProcessingTime.WithLabelValues("cosign").Observe(time.Since(started).Seconds())
	}()

	account, err := s.gateway.AccountInfo(ctx, partyAddress)
	if err != nil {
		return models.Outcome{}, err
	}

	detail, err := s.gateway.Transaction(ctx, hash, models.ScopePending)
	if errors.Is(err, ledger.ErrNotFound) {
		return models.Outcome{}, errors.Errorf("no pending bundle %s", hash)
	}
	if err != nil {
		return models.Outcome{}, err
	}

	session := s.sessions()
	if err := session.SetCosignPayload(detail.Payload); err != nil {
		return models.Outcome{}, err
	}
	cosig, err := session.RequestCosignature(ctx)
	if err != nil {
		outcome := models.UndeterminedOutcome(hash, "cosignature: "+err.Error())
		metrics.EscrowStageOutcomes.WithLabelValues("cosign", outcome.Status.String()).Inc()
		return outcome, nil
	}

	outcome := s.tracker.ConfirmCosignature(ctx, account.Address, cosig)
	metrics.EscrowStageOutcomes.WithLabelValues("cosign", outcome.Status.String()).Inc()
	return outcome, nil
}

// expirationInstant derives the escrow expiration: current block time plus
// the lock validity window, in unix ms.
func (s *Service) expirationInstant(ctx context.Context) (int64, error) {
	height, err := s.gateway.ChainHeight(ctx)
	if err != nil {
		return 0, err
	}
	block, err := s.gateway.BlockByHeight(ctx, height)
	if err != nil {
		return 0, err
	}

	current := block.Timestamp + s.cfg.EpochAdjustment.Milliseconds()
	window := int64(s.cfg.LockDurationBlocks) * s.cfg.BlockTime.Milliseconds()
	return current + window, nil
}

func (s *Service) resolveCreate(f *flow, stage string, outcome models.Outcome) models.Outcome {
	f.advance(StateResolved)
	metrics.EscrowsCreated.WithLabelValues(outcome.Status.String()).Inc()
	metrics.EscrowStageOutcomes.WithLabelValues(stage, outcome.Status.String()).Inc()
	if outcome.Succeeded() {
		s.logger.NoticeWithStage(logger.Bundle, "escrow %s entered the partial pool", outcome.Hash)
	} else {
		s.logger.NoticeWithStage(logger.Bundle, "escrow flow resolved %s at %s stage: %s %s",
			outcome.Status, stage, outcome.Code, outcome.Detail)
	}
	return outcome
}

// flow tracks and logs state transitions of one escrow operation.
type flow struct {
	state  State
	stage  logger.Stage
	logger logger.Logger
}

func (s *Service) newFlow(initial State, stage logger.Stage) *flow {
	return &flow{state: initial, stage: stage, logger: s.logger}
}

func (f *flow) advance(to State) {
	f.logger.DebugWithStage(f.stage, "state %s -> %s", f.state, to)
	f.state = to
}

// wait sleeps for d unless the context is cancelled first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
