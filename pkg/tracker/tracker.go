// Package tracker posts a signed transaction and determines its terminal
// outcome by racing a ledger event subscription against a bounded poll of
// transaction status.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mosaicswap/escrow-engine/pkg/ledger"
	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/metrics"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// Tracker announces transactions and resolves their terminal outcome.
// Safe for concurrent use; each invocation owns its own subscription.
type Tracker struct {
	gateway   ledger.Gateway
	logger    logger.Logger
	pollDelay time.Duration
}

// New creates a Tracker. pollDelay bounds how long a caller can be blocked
// without any signal from the node.
func New(gateway ledger.Gateway, log logger.Logger, pollDelay time.Duration) *Tracker {
	return &Tracker{
		gateway:   gateway,
		logger:    log,
		pollDelay: pollDelay,
	}
}

// request describes one announce-and-watch invocation.
type request struct {
	hash      string
	stage     logger.Stage
	subscribe func(ctx context.Context) (ledger.Subscription, error)
	announce  func(ctx context.Context) error
}

// Confirm announces a signed transaction and waits for it to confirm on
// address.
func (t *Tracker) Confirm(ctx context.Context, address string, tx *ledger.SignedTransaction, stage logger.Stage) models.Outcome {
	return t.track(ctx, request{
		hash:  tx.Hash,
		stage: stage,
		subscribe: func(ctx context.Context) (ledger.Subscription, error) {
			return t.gateway.SubscribeConfirmed(ctx, address, tx.Hash)
		},
		announce: func(ctx context.Context) error {
			return t.gateway.Announce(ctx, tx)
		},
	})
}

// ConfirmBonded announces a signed bonded bundle and waits for it to enter
// the partial pool on address. This is pool entry, not final settlement;
// finality requires the cosignature flow.
func (t *Tracker) ConfirmBonded(ctx context.Context, address string, tx *ledger.SignedTransaction) models.Outcome {
	return t.track(ctx, request{
		hash:  tx.Hash,
		stage: logger.Bundle,
		subscribe: func(ctx context.Context) (ledger.Subscription, error) {
			return t.gateway.SubscribeBondedAdded(ctx, address, tx.Hash)
		},
		announce: func(ctx context.Context) error {
			return t.gateway.AnnounceBonded(ctx, tx)
		},
	})
}

// ConfirmCosignature announces a cosignature and waits for the parent bundle
// (not the cosignature itself) to confirm on address.
func (t *Tracker) ConfirmCosignature(ctx context.Context, address string, cosig *ledger.SignedCosignature) models.Outcome {
	return t.track(ctx, request{
		hash:  cosig.ParentHash,
		stage: logger.Cosign,
		subscribe: func(ctx context.Context) (ledger.Subscription, error) {
			return t.gateway.SubscribeConfirmed(ctx, address, cosig.ParentHash)
		},
		announce: func(ctx context.Context) error {
			return t.gateway.AnnounceCosignature(ctx, cosig)
		},
	})
}

// track runs the confirmation race. Exactly one branch resolves and the
// subscription is torn down exactly once, whichever branch wins.
func (t *Tracker) track(ctx context.Context, req request) models.Outcome {
	sub, err := req.subscribe(ctx)
	if err != nil {
		t.logger.ErrorWithStage(req.stage, "cannot subscribe for %s: %v", req.hash, err)
		return models.UndeterminedOutcome(req.hash, "subscription unavailable: "+err.Error())
	}

	if err := req.announce(ctx); err != nil {
		sub.Close()
		t.logger.ErrorWithStage(req.stage, "announce of %s failed: %v", req.hash, err)
		return models.UndeterminedOutcome(req.hash, "announce failed: "+err.Error())
	}
	t.logger.InfoWithStage(req.stage, "announced %s, racing event against %s poll", req.hash, t.pollDelay)

	// Single-resolution cell: first branch to call resolve wins, the loser
	// is abandoned and the subscription closes exactly once.
	var (
		once   sync.Once
		result = make(chan models.Outcome, 1)
		done   = make(chan struct{})
	)
	resolve := func(outcome models.Outcome, branch string) {
		once.Do(func() {
			sub.Close()
			close(done)
			metrics.ConfirmationRaces.WithLabelValues(branch).Inc()
			result <- outcome
		})
	}

	// Event branch: the subscription delivers a notification matching the
	// watched hash, then the final status decides success or failure.
	go func() {
		select {
		case <-sub.Notified():
			resolve(t.finalStatus(ctx, req), "event")
		case <-ctx.Done():
			resolve(models.UndeterminedOutcome(req.hash, "cancelled"), "cancel")
		}
	}()

	// Poll branch: after the poll delay, fetch status once. Only an explicit
	// failure code resolves the race; a still-pending poll leaves the
	// decision to the event branch.
	go func() {
		timer := time.NewTimer(t.pollDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-done:
			return
		case <-ctx.Done():
			return
		}

		select {
		case <-done:
			return
		default:
		}

		status, err := t.gateway.TransactionStatus(ctx, req.hash)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			// Node has no status yet; keep waiting on the event.
			return
		case err != nil:
			resolve(models.UndeterminedOutcome(req.hash, "status poll failed: "+err.Error()), "poll")
			return
		}

		if status.Code != models.StatusCodeSuccess {
			t.logger.NoticeWithStage(req.stage, "%s rejected by ledger: %s", req.hash, status.Code)
			resolve(models.FailureOutcome(req.hash, status.Code), "poll")
		}
	}()

	return <-result
}

// finalStatus resolves the outcome after an event notification.
func (t *Tracker) finalStatus(ctx context.Context, req request) models.Outcome {
	status, err := t.gateway.TransactionStatus(ctx, req.hash)
	if err != nil {
		return models.UndeterminedOutcome(req.hash, "final status unavailable: "+err.Error())
	}
	if status.Code != models.StatusCodeSuccess {
		return models.FailureOutcome(req.hash, status.Code)
	}
	t.logger.InfoWithStage(req.stage, "%s reached target state", req.hash)
	return models.SuccessOutcome(req.hash)
}
