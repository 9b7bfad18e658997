// Package handler exposes the batch registry over HTTP. Mutating endpoints
// sit behind token auth; verification and the expiry check are open, since
// anyone holding a pack should be able to check it.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medledger/internal/batch/cache"
	"medledger/internal/batch/models"
	"medledger/internal/batch/service"
	id "medledger/pkg/domain"
	"medledger/pkg/platform/audit"
	"medledger/pkg/platform/httputil"
	"medledger/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*service.RegisterResult, error)
	UpdateStatus(ctx context.Context, owner id.ManufacturerID, req *models.UpdateStatusRequest) (*models.Batch, error)
	CheckExpiry(ctx context.Context, owner id.ManufacturerID, batchID id.BatchID) (*models.Batch, bool, error)
	Verify(ctx context.Context, owner id.ManufacturerID, batchID id.BatchID) (*cache.VerifyResult, error)
	VerifyByAddress(ctx context.Context, address id.Address) (*cache.VerifyResult, error)
	AuditTrail(ctx context.Context, owner id.ManufacturerID, batchID id.BatchID) ([]audit.Event, error)
	ListByManufacturer(ctx context.Context, manufacturer id.ManufacturerID) ([]*models.Batch, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the open verification surface.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/batches/{batchID}/verify", h.HandleVerify)
	r.Get("/verify/{address}", h.HandleVerifyByAddress)
	r.Post("/batches/{batchID}/expiry-check", h.HandleExpiryCheck)
	r.Get("/batches/{batchID}/audit", h.HandleAuditTrail)
	r.Get("/manufacturers/{manufacturerID}/batches", h.HandleListByManufacturer)
}

// RegisterProtected mounts endpoints that require a manufacturer token.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/batches", h.HandleRegister)
	r.Post("/batches/{batchID}/status", h.HandleUpdateStatus)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[models.RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}
	req.Manufacturer = requestcontext.Actor(ctx)

	result, err := h.service.Register(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "batch registration rejected",
			"manufacturer", req.Manufacturer,
			"batch_id", req.BatchID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		Batch:      result.Batch,
		NearExpiry: result.NearExpiry,
	})
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[models.UpdateStatusRequest](w, r, h.logger)
	if !ok {
		return
	}
	req.Actor = requestcontext.Actor(ctx)
	req.BatchID = id.BatchID(chi.URLParam(r, "batchID"))

	// The record owner defaults to the caller; naming another manufacturer
	// addresses their record, which only succeeds for the owner anyway.
	owner := req.Actor
	if raw := r.URL.Query().Get("manufacturer"); raw != "" {
		owner = id.ManufacturerID(raw)
	}

	batch, err := h.service.UpdateStatus(ctx, owner, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, batch)
}

func (h *Handler) HandleExpiryCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := id.ManufacturerID(r.URL.Query().Get("manufacturer"))
	batchID := id.BatchID(chi.URLParam(r, "batchID"))

	batch, expiredNow, err := h.service.CheckExpiry(ctx, owner, batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, expiryCheckResponse{
		Batch:      batch,
		ExpiredNow: expiredNow,
	})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := id.ManufacturerID(r.URL.Query().Get("manufacturer"))
	batchID := id.BatchID(chi.URLParam(r, "batchID"))

	result, err := h.service.Verify(ctx, owner, batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleVerifyByAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := id.Address(chi.URLParam(r, "address"))

	result, err := h.service.VerifyByAddress(ctx, address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := id.ManufacturerID(r.URL.Query().Get("manufacturer"))
	batchID := id.BatchID(chi.URLParam(r, "batchID"))

	events, err := h.service.AuditTrail(ctx, owner, batchID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditTrailResponse{Events: events})
}

func (h *Handler) HandleListByManufacturer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	manufacturer := id.ManufacturerID(chi.URLParam(r, "manufacturerID"))

	batches, err := h.service.ListByManufacturer(ctx, manufacturer)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Batches: batches})
}
