package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medledger/pkg/domain"
	audit "medledger/pkg/platform/audit"
	auditmemory "medledger/pkg/platform/audit/store/memory"
	"medledger/pkg/requestcontext"
)

type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *captureSink) Publish(_ context.Context, event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

var testAddress = id.DeriveBatchAddress("mfr-acme", "BATCH-001")

func Test_Emit_StampsEvent(t *testing.T) {
	store := auditmemory.NewInMemoryStore()
	publisher := audit.NewPublisher(store)

	now := time.Unix(1_700_000_000, 0).UTC()
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), now), "req-123")

	err := publisher.Emit(ctx, audit.Event{
		Action:  audit.ActionBatchRegistered,
		Address: testAddress,
		BatchID: "BATCH-001",
	})
	require.NoError(t, err)

	events, err := publisher.List(ctx, testAddress)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, audit.CategoryCompliance, got.Category)
	assert.Equal(t, "req-123", got.RequestID)
}

func Test_Emit_PreservesExplicitStamps(t *testing.T) {
	store := auditmemory.NewInMemoryStore()
	publisher := audit.NewPublisher(store)

	stamped := time.Unix(1_600_000_000, 0).UTC()
	err := publisher.Emit(context.Background(), audit.Event{
		ID:        "evt-1",
		Action:    audit.ActionBatchVerified,
		Category:  audit.CategoryOperations,
		Timestamp: stamped,
		Address:   testAddress,
	})
	require.NoError(t, err)

	events, err := publisher.List(context.Background(), testAddress)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, stamped, events[0].Timestamp)
}

func Test_Emit_FansOutToSinks(t *testing.T) {
	store := auditmemory.NewInMemoryStore()
	sink := &captureSink{}
	publisher := audit.NewPublisher(store, sink)

	err := publisher.Emit(context.Background(), audit.Event{
		Action:  audit.ActionBatchStatusUpdated,
		Address: testAddress,
	})
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 1)
	assert.Equal(t, audit.ActionBatchStatusUpdated, sink.events[0].Action)
	assert.NotEmpty(t, sink.events[0].ID)
}

func Test_List_AppendOrder(t *testing.T) {
	store := auditmemory.NewInMemoryStore()
	publisher := audit.NewPublisher(store)
	ctx := context.Background()

	for _, action := range []audit.Action{
		audit.ActionBatchRegistered,
		audit.ActionBatchStatusUpdated,
		audit.ActionBatchExpired,
	} {
		require.NoError(t, publisher.Emit(ctx, audit.Event{Action: action, Address: testAddress}))
	}

	events, err := publisher.List(ctx, testAddress)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, audit.ActionBatchRegistered, events[0].Action)
	assert.Equal(t, audit.ActionBatchStatusUpdated, events[1].Action)
	assert.Equal(t, audit.ActionBatchExpired, events[2].Action)
}

func Test_Category_UnknownActionDefaultsToOperations(t *testing.T) {
	assert.Equal(t, audit.CategoryOperations, audit.Action("something_new").Category())
	assert.Equal(t, audit.CategoryCompliance, audit.ActionBatchRegistered.Category())
}
