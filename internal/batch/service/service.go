// Package service orchestrates the batch record lifecycle: registration
// behind the manufacturer gate, owner-only status transitions, the expiry
// check, and public verification.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"medledger/internal/batch/cache"
	"medledger/internal/batch/models"
	"medledger/internal/platform/metrics"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	"medledger/pkg/platform/audit"
	"medledger/pkg/platform/sentinel"
	"medledger/pkg/platform/tx"
	"medledger/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, batch *models.Batch) error
	FindByAddress(ctx context.Context, address id.Address) (*models.Batch, error)
	ListByManufacturer(ctx context.Context, manufacturer id.ManufacturerID) ([]*models.Batch, error)
	Execute(ctx context.Context, address id.Address, validate func(*models.Batch) error, mutate func(*models.Batch)) (*models.Batch, error)
}

// ManufacturerGate decides whether an identity may register batches.
type ManufacturerGate interface {
	IsVerified(ctx context.Context, manufacturer id.ManufacturerID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	List(ctx context.Context, address id.Address) ([]audit.Event, error)
}

// Service coordinates batch operations across the store, the manufacturer
// gate, and the audit trail.
type Service struct {
	store          Store
	gate           ManufacturerGate
	tx             tx.Transactor
	verifyCache    cache.Cache
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTransactor(t tx.Transactor) Option {
	return func(s *Service) { s.tx = t }
}

func WithVerifyCache(c cache.Cache) Option {
	return func(s *Service) { s.verifyCache = c }
}

func New(store Store, gate ManufacturerGate, opts ...Option) *Service {
	s := &Service{
		store:  store,
		gate:   gate,
		tracer: otel.Tracer("medledger/batch"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tx == nil {
		s.tx = tx.NoopTransactor{}
	}
	return s
}

// RegisterResult is the registration outcome. NearExpiry is advisory; the
// batch is registered either way.
type RegisterResult struct {
	Batch      *models.Batch
	NearExpiry bool
}

// Register validates the request, checks the manufacturer gate, and mints
// the record at its derived address. The record and its audit event commit
// as one unit when the store supports transactions.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*RegisterResult, error) {
	ctx, span := s.tracer.Start(ctx, "batch.Register")
	defer span.End()

	req.Normalize()
	now := requestcontext.Now(ctx)
	if err := req.Validate(now); err != nil {
		return nil, err
	}
	if err := s.gate.IsVerified(ctx, req.Manufacturer); err != nil {
		return nil, err
	}

	batch := models.NewBatch(req, now)
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, batch); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.NewWithReason(dErrors.CodeConflict, dErrors.ReasonRecordExists,
					"batch already registered for this manufacturer and id")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create batch record")
		}
		return s.emit(txCtx, audit.Event{
			Action:            audit.ActionBatchRegistered,
			Address:           batch.Address,
			BatchID:           batch.BatchID,
			Manufacturer:      batch.Manufacturer,
			Actor:             batch.Manufacturer,
			NewStatus:         string(batch.Status),
			ManufacturingDate: batch.ManufacturingDate,
			ExpiryDate:        batch.ExpiryDate,
			Quantity:          batch.Quantity,
			MRP:               batch.MRP,
		})
	})
	if err != nil {
		return nil, err
	}

	nearExpiry := batch.NearExpiry(now)
	if s.metrics != nil {
		s.metrics.BatchesRegistered.Inc()
		if nearExpiry {
			s.metrics.BatchesNearExpiry.Inc()
		}
	}
	s.logger.InfoContext(ctx, "batch registered",
		"address", batch.Address,
		"batch_id", batch.BatchID,
		"manufacturer", batch.Manufacturer,
		"near_expiry", nearExpiry,
	)
	return &RegisterResult{Batch: batch, NearExpiry: nearExpiry}, nil
}

// UpdateStatus applies an explicit owner-requested transition. Owner is the
// manufacturer the batch was registered under; only that identity may move
// the record, and only along the allowed edges.
func (s *Service) UpdateStatus(ctx context.Context, owner id.ManufacturerID, req *models.UpdateStatusRequest) (*models.Batch, error) {
	ctx, span := s.tracer.Start(ctx, "batch.UpdateStatus")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := id.ParseBatchID(string(req.BatchID)); err != nil {
		return nil, err
	}

	address := id.DeriveBatchAddress(owner, req.BatchID)
	now := requestcontext.Now(ctx)

	var oldStatus models.BatchStatus
	var updated *models.Batch
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		batch, err := s.store.Execute(txCtx, address,
			func(b *models.Batch) error {
				if b.Manufacturer != req.Actor {
					return dErrors.NewWithReason(dErrors.CodeForbidden, dErrors.ReasonUnauthorizedManufacturer,
						"only the registering manufacturer may update this batch")
				}
				if err := b.CanUpdateStatus(req.Status); err != nil {
					return err
				}
				oldStatus = b.Status
				return nil
			},
			func(b *models.Batch) {
				b.ApplyStatus(req.Status, now)
			},
		)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "batch not found")
			}
			return err
		}
		updated = batch
		return s.emit(txCtx, audit.Event{
			Action:       audit.ActionBatchStatusUpdated,
			Address:      batch.Address,
			BatchID:      batch.BatchID,
			Manufacturer: batch.Manufacturer,
			Actor:        req.Actor,
			OldStatus:    string(oldStatus),
			NewStatus:    string(batch.Status),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StatusUpdates.WithLabelValues(string(updated.Status)).Inc()
	}
	s.logger.InfoContext(ctx, "batch status updated",
		"address", updated.Address,
		"old_status", oldStatus,
		"new_status", updated.Status,
	)
	return updated, nil
}

// CheckExpiry runs the public expiry check. A batch past its expiry date
// moves to Expired exactly once; repeat calls are no-ops. Anyone may call
// this, matching the open verification surface.
func (s *Service) CheckExpiry(ctx context.Context, owner id.ManufacturerID, batchID id.BatchID) (*models.Batch, bool, error) {
	ctx, span := s.tracer.Start(ctx, "batch.CheckExpiry")
	defer span.End()

	if _, err := id.ParseManufacturerID(string(owner)); err != nil {
		return nil, false, err
	}
	if _, err := id.ParseBatchID(string(batchID)); err != nil {
		return nil, false, err
	}

	address := id.DeriveBatchAddress(owner, batchID)
	now := requestcontext.Now(ctx)

	var expiredNow bool
	var updated *models.Batch
	err := s.tx.InTx(ctx, func(txCtx context.Context) error {
		batch, err := s.store.Execute(txCtx, address,
			func(b *models.Batch) error { return nil },
			func(b *models.Batch) {
				if b.ShouldExpire(now) {
					b.ApplyExpiry(now)
					expiredNow = true
				}
			},
		)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "batch not found")
			}
			return err
		}
		updated = batch
		if !expiredNow {
			return nil
		}
		return s.emit(txCtx, audit.Event{
			Action:       audit.ActionBatchExpired,
			Address:      batch.Address,
			BatchID:      batch.BatchID,
			Manufacturer: batch.Manufacturer,
			Actor:        requestcontext.Actor(txCtx),
			OldStatus:    string(models.StatusActive),
			NewStatus:    string(batch.Status),
			ExpiryDate:   batch.ExpiryDate,
		})
	})
	if err != nil {
		return nil, false, err
	}

	if expiredNow {
		if s.metrics != nil {
			s.metrics.BatchesExpired.Inc()
		}
		s.logger.InfoContext(ctx, "batch expired", "address", updated.Address)
	}
	return updated, expiredNow, nil
}

// ListByManufacturer returns every batch registered under a manufacturer,
// oldest first.
func (s *Service) ListByManufacturer(ctx context.Context, manufacturer id.ManufacturerID) ([]*models.Batch, error) {
	ctx, span := s.tracer.Start(ctx, "batch.ListByManufacturer")
	defer span.End()

	parsed, err := id.ParseManufacturerID(string(manufacturer))
	if err != nil {
		return nil, err
	}
	batches, err := s.store.ListByManufacturer(ctx, parsed)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list batches")
	}
	return batches, nil
}

// AuditTrail returns the ordered event history for a batch.
func (s *Service) AuditTrail(ctx context.Context, owner id.ManufacturerID, batchID id.BatchID) ([]audit.Event, error) {
	ctx, span := s.tracer.Start(ctx, "batch.AuditTrail")
	defer span.End()

	if s.auditPublisher == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "audit trail not configured")
	}
	if _, err := id.ParseManufacturerID(string(owner)); err != nil {
		return nil, err
	}
	if _, err := id.ParseBatchID(string(batchID)); err != nil {
		return nil, err
	}
	events, err := s.auditPublisher.List(ctx, id.DeriveBatchAddress(owner, batchID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return events, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
	}
	return nil
}
