package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medledger/internal/batch/cache"
	"medledger/internal/batch/models"
	storememory "medledger/internal/batch/store/memory"
	id "medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
	"medledger/pkg/platform/audit"
	auditmemory "medledger/pkg/platform/audit/store/memory"
	"medledger/pkg/requestcontext"
)

var (
	ownerA = id.ManufacturerID("mfr-acme")
	ownerB = id.ManufacturerID("mfr-other")
	t0     = time.Unix(1_700_000_000, 0).UTC()
)

// stubGate admits a fixed set of manufacturers.
type stubGate struct {
	verified map[id.ManufacturerID]bool
	known    map[id.ManufacturerID]bool
}

func newStubGate(verified ...id.ManufacturerID) *stubGate {
	g := &stubGate{verified: map[id.ManufacturerID]bool{}, known: map[id.ManufacturerID]bool{}}
	for _, m := range verified {
		g.verified[m] = true
		g.known[m] = true
	}
	return g
}

func (g *stubGate) addUnverified(m id.ManufacturerID) {
	g.known[m] = true
}

func (g *stubGate) IsVerified(_ context.Context, m id.ManufacturerID) error {
	if !g.known[m] {
		return dErrors.NewWithReason(dErrors.CodeForbidden, dErrors.ReasonUnauthorizedManufacturer,
			"manufacturer is not registered")
	}
	if !g.verified[m] {
		return dErrors.NewWithReason(dErrors.CodeForbidden, dErrors.ReasonManufacturerNotVerified,
			"manufacturer is not verified")
	}
	return nil
}

type fixture struct {
	svc        *Service
	auditStore *auditmemory.InMemoryStore
	gate       *stubGate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gate := newStubGate(ownerA, ownerB)
	auditStore := auditmemory.NewInMemoryStore()
	svc := New(storememory.New(), gate,
		WithAuditPublisher(audit.NewPublisher(auditStore)),
		WithVerifyCache(cache.NewInMemoryCache(30*time.Second)),
	)
	return &fixture{svc: svc, auditStore: auditStore, gate: gate}
}

func ctxAt(at time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), at)
}

func registerRequest(owner id.ManufacturerID, batchID id.BatchID) *models.RegisterRequest {
	return &models.RegisterRequest{
		Manufacturer:      owner,
		BatchID:           batchID,
		ManufacturingDate: t0.Add(-24 * time.Hour).Unix(),
		ExpiryDate:        t0.Add(365 * 24 * time.Hour).Unix(),
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)

	result, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, result.Batch.Status)
	assert.False(t, result.NearExpiry)
	assert.Equal(t, id.DeriveBatchAddress(ownerA, "B-001"), result.Batch.Address)

	events, err := f.auditStore.ListByAddress(ctx, result.Batch.Address)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionBatchRegistered, events[0].Action)
	assert.Equal(t, ownerA, events[0].Manufacturer)
}

func TestRegisterDuplicateConflict(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)

	_, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	assert.True(t, dErrors.HasReason(err, dErrors.ReasonRecordExists))
}

func TestRegisterSameIDDifferentOwners(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)

	a, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)
	b, err := f.svc.Register(ctx, registerRequest(ownerB, "B-001"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Batch.Address, b.Batch.Address)
}

func TestRegisterUnknownManufacturer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(ctxAt(t0), registerRequest("mfr-stranger", "B-001"))
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, dErrors.ReasonUnauthorizedManufacturer))
}

func TestRegisterUnverifiedManufacturer(t *testing.T) {
	f := newFixture(t)
	f.gate.addUnverified("mfr-pending")
	_, err := f.svc.Register(ctxAt(t0), registerRequest("mfr-pending", "B-001"))
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, dErrors.ReasonManufacturerNotVerified))
}

func TestRegisterValidationRejected(t *testing.T) {
	f := newFixture(t)
	req := registerRequest(ownerA, "B-001")
	req.ExpiryDate = req.ManufacturingDate

	_, err := f.svc.Register(ctxAt(t0), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, dErrors.ReasonInvalidDateRange))
}

func TestRegisterNearExpiryAdvisory(t *testing.T) {
	f := newFixture(t)
	req := registerRequest(ownerA, "B-001")
	req.ExpiryDate = t0.Add(7 * 24 * time.Hour).Unix()

	result, err := f.svc.Register(ctxAt(t0), req)
	require.NoError(t, err)
	assert.True(t, result.NearExpiry)
	assert.Equal(t, models.StatusActive, result.Batch.Status, "near expiry does not block registration")
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	reg, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	later := ctxAt(t0.Add(time.Hour))
	updated, err := f.svc.UpdateStatus(later, ownerA, &models.UpdateStatusRequest{
		Actor:   ownerA,
		BatchID: "B-001",
		Status:  models.StatusSuspended,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, updated.Status)
	assert.Equal(t, t0.Add(time.Hour), updated.UpdatedAt)

	events, err := f.auditStore.ListByAddress(ctx, reg.Batch.Address)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionBatchStatusUpdated, events[1].Action)
	assert.Equal(t, string(models.StatusActive), events[1].OldStatus)
	assert.Equal(t, string(models.StatusSuspended), events[1].NewStatus)
}

func TestUpdateStatusNonOwner(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	_, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, ownerA, &models.UpdateStatusRequest{
		Actor:   ownerB,
		BatchID: "B-001",
		Status:  models.StatusRecalled,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, dErrors.ReasonUnauthorizedManufacturer))

	result, err := f.svc.Verify(ctx, ownerA, "B-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, result.Status, "failed update leaves the record untouched")
}

func TestUpdateStatusRecalledAbsorbing(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	_, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, ownerA, &models.UpdateStatusRequest{
		Actor: ownerA, BatchID: "B-001", Status: models.StatusRecalled,
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, ownerA, &models.UpdateStatusRequest{
		Actor: ownerA, BatchID: "B-001", Status: models.StatusActive,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, dErrors.ReasonBatchAlreadyRecalled))
}

func TestUpdateStatusUnknownBatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateStatus(ctxAt(t0), ownerA, &models.UpdateStatusRequest{
		Actor: ownerA, BatchID: "B-404", Status: models.StatusSuspended,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestUpdateStatusExplicitExpiredRejected(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	_, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, ownerA, &models.UpdateStatusRequest{
		Actor: ownerA, BatchID: "B-001", Status: models.StatusExpired,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasReason(err, dErrors.ReasonInvalidBatchStatus))
}

func TestCheckExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	req := registerRequest(ownerA, "B-001")
	req.ExpiryDate = t0.Unix() + 1000
	reg, err := f.svc.Register(ctx, req)
	require.NoError(t, err)

	// Before the expiry date nothing happens.
	batch, expired, err := f.svc.CheckExpiry(ctxAt(t0.Add(999*time.Second)), ownerA, "B-001")
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, models.StatusActive, batch.Status)

	// At the expiry instant the batch is still within date.
	batch, expired, err = f.svc.CheckExpiry(ctxAt(t0.Add(1000*time.Second)), ownerA, "B-001")
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, models.StatusActive, batch.Status)

	// One second past, it expires.
	batch, expired, err = f.svc.CheckExpiry(ctxAt(t0.Add(1001*time.Second)), ownerA, "B-001")
	require.NoError(t, err)
	assert.True(t, expired)
	assert.Equal(t, models.StatusExpired, batch.Status)

	// Repeat calls are no-ops and emit nothing further.
	batch, expired, err = f.svc.CheckExpiry(ctxAt(t0.Add(2000*time.Second)), ownerA, "B-001")
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, models.StatusExpired, batch.Status)

	events, err := f.auditStore.ListByAddress(ctx, reg.Batch.Address)
	require.NoError(t, err)
	var expiredEvents int
	for _, e := range events {
		if e.Action == audit.ActionBatchExpired {
			expiredEvents++
		}
	}
	assert.Equal(t, 1, expiredEvents, "exactly one expiry event")
}

func TestCheckExpiryRecalledStaysRecalled(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	req := registerRequest(ownerA, "B-001")
	req.ExpiryDate = t0.Unix() + 1000
	_, err := f.svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, ownerA, &models.UpdateStatusRequest{
		Actor: ownerA, BatchID: "B-001", Status: models.StatusRecalled,
	})
	require.NoError(t, err)

	batch, expired, err := f.svc.CheckExpiry(ctxAt(t0.Add(2000*time.Second)), ownerA, "B-001")
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, models.StatusRecalled, batch.Status)
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	reg, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	result, err := f.svc.Verify(ctx, ownerA, "B-001")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.False(t, result.Expired)
	assert.Equal(t, reg.Batch.Address, result.Address)

	events, err := f.auditStore.ListByAddress(ctx, reg.Batch.Address)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, audit.ActionBatchVerified, last.Action)
	require.NotNil(t, last.IsValid)
	assert.True(t, *last.IsValid)
}

func TestVerifyRecalledInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	_, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, ownerA, &models.UpdateStatusRequest{
		Actor: ownerA, BatchID: "B-001", Status: models.StatusRecalled,
	})
	require.NoError(t, err)

	result, err := f.svc.Verify(ctx, ownerA, "B-001")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, models.StatusRecalled, result.Status)
}

func TestVerifyExpiredByDateWithoutStatusFlip(t *testing.T) {
	f := newFixture(t)
	req := registerRequest(ownerA, "B-001")
	req.ExpiryDate = t0.Unix() + 1000
	_, err := f.svc.Register(ctxAt(t0), req)
	require.NoError(t, err)

	result, err := f.svc.Verify(ctxAt(t0.Add(2000*time.Second)), ownerA, "B-001")
	require.NoError(t, err)
	assert.False(t, result.Valid, "past expiry date reads as invalid even before the status flips")
	assert.True(t, result.Expired)
	assert.Equal(t, models.StatusActive, result.Status)
}

func TestVerifyByAddress(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	reg, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	result, err := f.svc.VerifyByAddress(ctx, reg.Batch.Address)
	require.NoError(t, err)
	assert.Equal(t, id.BatchID("B-001"), result.BatchID)
}

func TestVerifyUnknownBatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Verify(ctxAt(t0), ownerA, "B-404")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestVerifyCacheHit(t *testing.T) {
	gate := newStubGate(ownerA)
	auditStore := auditmemory.NewInMemoryStore()
	store := storememory.New()
	svc := New(store, gate,
		WithAuditPublisher(audit.NewPublisher(auditStore)),
		WithVerifyCache(cache.NewInMemoryCache(time.Minute)),
	)
	ctx := ctxAt(t0)
	reg, err := svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)

	_, err = svc.Verify(ctx, ownerA, "B-001")
	require.NoError(t, err)

	// Drop the backing record; a cached result must still answer.
	store.Clear()
	result, err := svc.VerifyByAddress(ctx, reg.Batch.Address)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestAuditTrailOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	_, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, ownerA, &models.UpdateStatusRequest{
		Actor: ownerA, BatchID: "B-001", Status: models.StatusSuspended,
	})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, ownerA, &models.UpdateStatusRequest{
		Actor: ownerA, BatchID: "B-001", Status: models.StatusActive,
	})
	require.NoError(t, err)

	events, err := f.svc.AuditTrail(ctx, ownerA, "B-001")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, audit.ActionBatchRegistered, events[0].Action)
	assert.Equal(t, audit.ActionBatchStatusUpdated, events[1].Action)
	assert.Equal(t, string(models.StatusSuspended), events[1].NewStatus)
	assert.Equal(t, string(models.StatusActive), events[2].NewStatus)
}

func TestListByManufacturer(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(t0)
	_, err := f.svc.Register(ctx, registerRequest(ownerA, "B-001"))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, registerRequest(ownerA, "B-002"))
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, registerRequest(ownerB, "B-001"))
	require.NoError(t, err)

	batches, err := f.svc.ListByManufacturer(ctx, ownerA)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}
