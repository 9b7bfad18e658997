package service

import (
	"context"
	"errors"

	"medledger/internal/batch/cache"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	"medledger/pkg/platform/audit"
	"medledger/pkg/platform/sentinel"
	"medledger/pkg/requestcontext"
)

// Verify answers the public scan question: does this batch exist, and is
// it still good. Results are cached briefly; a cached answer can lag an
// expiry crossing by at most the cache TTL, and the expiry check endpoint
// always sees live state.
func (s *Service) Verify(ctx context.Context, owner id.ManufacturerID, batchID id.BatchID) (*cache.VerifyResult, error) {
	if _, err := id.ParseManufacturerID(string(owner)); err != nil {
		return nil, err
	}
	if _, err := id.ParseBatchID(string(batchID)); err != nil {
		return nil, err
	}
	return s.VerifyByAddress(ctx, id.DeriveBatchAddress(owner, batchID))
}

// VerifyByAddress verifies a batch by its derived address directly, the
// path QR codes take.
func (s *Service) VerifyByAddress(ctx context.Context, address id.Address) (*cache.VerifyResult, error) {
	ctx, span := s.tracer.Start(ctx, "batch.Verify")
	defer span.End()

	if _, err := id.ParseAddress(string(address)); err != nil {
		return nil, err
	}

	if s.verifyCache != nil {
		if result, ok := s.verifyCache.Get(ctx, address); ok {
			s.recordVerification(ctx, result)
			return result, nil
		}
	}

	batch, err := s.store.FindByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "batch not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load batch")
	}

	now := requestcontext.Now(ctx)
	result := &cache.VerifyResult{
		Address:      batch.Address,
		BatchID:      batch.BatchID,
		Manufacturer: batch.Manufacturer,
		Status:       batch.Status,
		Valid:        batch.IsValid(now),
		Expired:      batch.IsExpired(now),
		ExpiryDate:   batch.ExpiryDate,
		Schema:       batch.Schema,
		Details:      batch.Details,
	}
	if s.verifyCache != nil {
		s.verifyCache.Set(ctx, address, result)
	}
	s.recordVerification(ctx, result)
	return result, nil
}

// recordVerification emits the scan event and bumps the counter. The read
// path never fails because of audit plumbing.
func (s *Service) recordVerification(ctx context.Context, result *cache.VerifyResult) {
	if s.metrics != nil {
		label := "false"
		if result.Valid {
			label = "true"
		}
		s.metrics.Verifications.WithLabelValues(label).Inc()
	}
	if s.auditPublisher == nil {
		return
	}
	valid := result.Valid
	expired := result.Expired
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:       audit.ActionBatchVerified,
		Address:      result.Address,
		BatchID:      result.BatchID,
		Manufacturer: result.Manufacturer,
		Actor:        requestcontext.Actor(ctx),
		NewStatus:    string(result.Status),
		IsValid:      &valid,
		IsExpired:    &expired,
		ExpiryDate:   result.ExpiryDate,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", audit.ActionBatchVerified,
			"address", result.Address,
			"error", err,
		)
	}
}
