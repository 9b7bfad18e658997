package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"medledger/internal/jwtauth"
	"medledger/internal/manufacturer/models"
	"medledger/internal/platform/metrics"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	"medledger/pkg/platform/audit"
	"medledger/pkg/platform/sentinel"
	"medledger/pkg/requestcontext"
	"medledger/pkg/secrets"
)

type Store interface {
	Create(ctx context.Context, entry *models.Entry) error
	FindByID(ctx context.Context, manufacturer id.ManufacturerID) (*models.Entry, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages manufacturer registration and credential exchange.
type Service struct {
	store          Store
	tokens         *jwtauth.Service
	tokenTTL       time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func New(store Store, tokens *jwtauth.Service, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{store: store, tokens: tokens, tokenTTL: tokenTTL}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Register creates a manufacturer entry and returns it along with the
// cleartext API secret. The secret is only available at creation time.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Entry, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash secret")
	}

	entry := models.NewEntry(req, hash, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "manufacturer already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to register manufacturer")
	}

	s.emitRegistered(ctx, entry)
	if s.metrics != nil {
		s.metrics.ManufacturersRegistered.Inc()
	}
	s.logger.InfoContext(ctx, "manufacturer registered",
		"manufacturer", entry.Manufacturer,
		"address", entry.Address,
	)
	return entry, secret, nil
}

// Token exchanges a manufacturer id and API secret for a signed access token.
// Unknown ids and bad secrets return the same unauthorized error.
func (s *Service) Token(ctx context.Context, req *models.TokenRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	entry, err := s.store.FindByID(ctx, req.Manufacturer)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load manufacturer")
	}
	if err := secrets.Verify(req.Secret, entry.SecretHash); err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.GenerateAccessToken(entry.Manufacturer, s.tokenTTL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return token, nil
}

// Get returns the public registry entry for a manufacturer.
func (s *Service) Get(ctx context.Context, manufacturer id.ManufacturerID) (*models.Entry, error) {
	parsed, err := id.ParseManufacturerID(string(manufacturer))
	if err != nil {
		return nil, err
	}
	entry, err := s.store.FindByID(ctx, parsed)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "manufacturer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load manufacturer")
	}
	return entry, nil
}

// IsVerified reports whether a manufacturer exists and may register batches.
// The batch service uses this as its authorization gate.
func (s *Service) IsVerified(ctx context.Context, manufacturer id.ManufacturerID) error {
	entry, err := s.store.FindByID(ctx, manufacturer)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.NewWithReason(dErrors.CodeForbidden, dErrors.ReasonUnauthorizedManufacturer,
				"manufacturer is not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load manufacturer")
	}
	if !entry.Verified {
		return dErrors.NewWithReason(dErrors.CodeForbidden, dErrors.ReasonManufacturerNotVerified,
			"manufacturer is not verified")
	}
	return nil
}

func (s *Service) emitRegistered(ctx context.Context, entry *models.Entry) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:       audit.ActionManufacturerRegistered,
		Address:      entry.Address,
		Manufacturer: entry.Manufacturer,
		Actor:        entry.Manufacturer,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", audit.ActionManufacturerRegistered,
			"error", err,
		)
	}
}
