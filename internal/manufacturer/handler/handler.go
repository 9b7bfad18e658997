package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"medledger/internal/manufacturer/models"
	id "medledger/pkg/domain"
	"medledger/pkg/platform/httputil"
)

type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Entry, string, error)
	Token(ctx context.Context, req *models.TokenRequest) (string, error)
	Get(ctx context.Context, manufacturer id.ManufacturerID) (*models.Entry, error)
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

func (h *Handler) Register(r chi.Router) {
	r.Post("/manufacturers", h.HandleRegister)
	r.Post("/auth/token", h.HandleToken)
	r.Get("/manufacturers/{manufacturerID}", h.HandleGet)
}

type registerResponse struct {
	Entry *models.Entry `json:"manufacturer"`
	// Secret is returned exactly once, at registration.
	Secret string `json:"secret"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[models.RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}

	entry, secret, err := h.service.Register(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "manufacturer registration rejected",
			"manufacturer", req.Manufacturer,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerResponse{Entry: entry, Secret: secret})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[models.TokenRequest](w, r, h.logger)
	if !ok {
		return
	}

	token, err := h.service.Token(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer"})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := h.service.Get(ctx, id.ManufacturerID(chi.URLParam(r, "manufacturerID")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}
