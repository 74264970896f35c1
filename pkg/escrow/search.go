package escrow

import (
	"context"
	"strconv"

	"github.com/mosaicswap/escrow-engine/pkg/builder"
	"github.com/mosaicswap/escrow-engine/pkg/ledger"
	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/metrics"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// Search rebuilds escrow records from the ledger for a party, newest first.
// A returned error means the search could not run (unknown address, no node
// reachable); zero matches is an empty slice, not an error. Malformed or
// unrelated bundles are skipped, never fatal.
func (s *Service) Search(ctx context.Context, partyAddress string, scope models.Scope) ([]models.EscrowRecord, error) {
	account, err := s.gateway.AccountInfo(ctx, partyAddress)
	if err != nil {
		metrics.SearchesExecuted.WithLabelValues("error").Inc()
		return nil, err
	}

	summaries, err := s.gateway.SearchBonded(ctx, account.Address, scope, s.cfg.SearchPageSize)
	if err != nil {
		metrics.SearchesExecuted.WithLabelValues("error").Inc()
		return nil, err
	}

	records := make([]models.EscrowRecord, 0, len(summaries))
	for _, summary := range summaries {
		record, err := s.reconstruct(ctx, summary, scope)
		if err != nil {
			reason := "fetch"
			if _, ok := err.(*models.ShapeMismatchError); ok {
				reason = "shape"
			}
			metrics.SearchBundlesSkipped.WithLabelValues(reason).Inc()
			s.logger.DebugWithStage(logger.Search, "skipping bundle %s: %v", summary.Hash, err)
			continue
		}
		records = append(records, *record)
	}

	metrics.SearchesExecuted.WithLabelValues("ok").Inc()
	metrics.SearchRecordsReturned.Observe(float64(len(records)))
	s.logger.InfoWithStage(logger.Search, "%s scan for %s: %d bundles, %d escrows",
		scope, partyAddress, len(summaries), len(records))
	return records, nil
}

// reconstruct rebuilds one escrow record from a bonded bundle, or reports
// why the bundle is not an escrow.
func (s *Service) reconstruct(ctx context.Context, summary ledger.BundleSummary, scope models.Scope) (*models.EscrowRecord, error) {
	detail, err := s.gateway.Transaction(ctx, summary.Hash, scope)
	if err != nil {
		return nil, err
	}

	if len(detail.Inner) != 3 {
		return nil, &models.ShapeMismatchError{Hash: summary.Hash, Reason: "inner transaction count"}
	}

	payment := detail.Inner[builder.PositionPayment]
	asset := detail.Inner[builder.PositionAsset]
	fee := detail.Inner[builder.PositionFee]

	// The fee payload is the sole filter separating escrow bundles from
	// unrelated bonded bundles on the same addresses.
	if fee.Message != models.ServiceDiscriminator {
		return nil, &models.ShapeMismatchError{Hash: summary.Hash, Reason: "no service discriminator"}
	}
	if len(payment.Mosaics) != 1 || len(asset.Mosaics) != 1 {
		return nil, &models.ShapeMismatchError{Hash: summary.Hash, Reason: "mosaic count"}
	}

	expiration, err := strconv.ParseInt(payment.Message, 10, 64)
	if err != nil {
		return nil, &models.ShapeMismatchError{Hash: summary.Hash, Reason: "expiration payload"}
	}

	var blockTime int64
	if scope == models.ScopeFinalized && detail.Height > 0 {
		block, err := s.gateway.BlockByHeight(ctx, detail.Height)
		if err != nil {
			return nil, err
		}
		blockTime = block.Timestamp + s.cfg.EpochAdjustment.Milliseconds()
	}

	return &models.EscrowRecord{
		RequesterAddress:    payment.SignerAddress,
		CounterpartyAddress: payment.Recipient,
		BlockTime:           blockTime,
		Expiration:          expiration,
		MosaicID:            asset.Mosaics[0].ID,
		Amount:              asset.Mosaics[0].Amount,
		Price:               payment.Mosaics[0].Amount / models.PriceScale,
		Message:             asset.Message,
		Hash:                detail.Hash,
	}, nil
}
