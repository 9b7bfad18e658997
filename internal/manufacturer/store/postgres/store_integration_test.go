//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"medledger/internal/manufacturer/models"
	"medledger/internal/manufacturer/store/postgres"
	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
	"medledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "manufacturers"))
}

func newTestEntry(manufacturer id.ManufacturerID) *models.Entry {
	return models.NewEntry(&models.RegisterRequest{
		Manufacturer: manufacturer,
		Name:         "Acme Pharma",
	}, "hashed-secret", time.Unix(1_700_000_000, 0))
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	entry := newTestEntry("mfr-acme")

	s.Require().NoError(s.store.Create(ctx, entry))

	found, err := s.store.FindByID(ctx, "mfr-acme")
	s.Require().NoError(err)
	s.Equal(entry.Manufacturer, found.Manufacturer)
	s.Equal(entry.Name, found.Name)
	s.Equal(entry.Address, found.Address)
	s.Equal(entry.SecretHash, found.SecretHash)
	s.True(found.Verified)
}

func (s *PostgresStoreSuite) TestCreate_Duplicate() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newTestEntry("mfr-acme")))

	err := s.store.Create(ctx, newTestEntry("mfr-acme"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestConcurrentCreate() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newTestEntry("mfr-race"))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one registration should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestFindByID_NotFound() {
	_, err := s.store.FindByID(context.Background(), "mfr-ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
