package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/backstage/services/livestock/internal/apperrors"
	"example.com/backstage/services/livestock/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.SetupModels(db))
	return db
}

func TestReserveIsGetOrCreate(t *testing.T) {
	repo := NewRegistrationRepository(newTestDB(t))
	ctx := context.Background()

	first, err := repo.Reserve(ctx, 1, " a-1 ", 7)
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	require.Equal(t, "A-1", first.AnimalNumber)
	require.Equal(t, models.StatusAlive, first.Status)
	require.NotEmpty(t, first.ShortID)

	// Reserving again returns the same row
	second, err := repo.Reserve(ctx, 1, "A-1", 7)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.ShortID, second.ShortID)

	// A different tenant gets its own row
	other, err := repo.Reserve(ctx, 2, "A-1", 7)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestListFatherlessFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewRegistrationRepository(db)
	ctx := context.Background()

	born := time.Date(2024, 10, 28, 0, 0, 0, 0, time.UTC)
	mother := "M-1"
	father := "B-9"

	rows := []models.Registration{
		{ID: 1, ShortID: NewShortID(), AnimalNumber: "PENDING", CompanyID: 1, MotherID: &mother, BornDate: &born},
		{ID: 2, ShortID: NewShortID(), AnimalNumber: "ASSIGNED", CompanyID: 1, MotherID: &mother, FatherID: &father, BornDate: &born},
		{ID: 3, ShortID: NewShortID(), AnimalNumber: "NO-MOTHER", CompanyID: 1, BornDate: &born},
		{ID: 4, ShortID: NewShortID(), AnimalNumber: "NO-BORN", CompanyID: 1, MotherID: &mother},
		{ID: 5, ShortID: NewShortID(), AnimalNumber: "OTHER-TENANT", CompanyID: 2, MotherID: &mother, BornDate: &born},
		{ID: 6, ShortID: NewShortID(), AnimalNumber: "FATHER-NO-MOTHER", CompanyID: 1, FatherID: &father, BornDate: &born},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	pending, err := repo.ListFatherless(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "PENDING", pending[0].AnimalNumber)

	scoped, err := repo.ListFatherless(ctx, 1, "m-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)

	assigned, err := repo.ListAssigned(ctx, 1)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, "ASSIGNED", assigned[0].AnimalNumber)
}

func TestDistinctCompanies(t *testing.T) {
	db := newTestDB(t)
	repo := NewRegistrationRepository(db)
	ctx := context.Background()

	for i, companyID := range []int64{1, 1, 2} {
		require.NoError(t, db.Create(&models.Registration{
			ID:           int64(i + 1),
			ShortID:      NewShortID(),
			AnimalNumber: "A",
			CompanyID:    companyID,
		}).Error)
	}

	companies, err := repo.DistinctCompanies(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2}, companies)
}

func TestSnapshotRepositoryListFiltersByStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	for i, status := range []string{models.StatusAlive, models.StatusDead, models.StatusAlive} {
		require.NoError(t, repo.Create(ctx, &models.AnimalSnapshot{
			AnimalID:      int64(i + 1),
			CompanyID:     1,
			AnimalNumber:  string(rune('A' + i)),
			CurrentStatus: status,
		}))
	}

	alive, err := repo.List(ctx, 1, models.StatusAlive, 10, 0)
	require.NoError(t, err)
	require.Len(t, alive, 2)

	all, err := repo.List(ctx, 1, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Ordered by animal number
	require.Equal(t, "A", all[0].AnimalNumber)
	require.Equal(t, "C", all[2].AnimalNumber)

	_, err = repo.GetByNumber(ctx, 1, "MISSING")
	require.True(t, apperrors.IsNotFound(err))
}

func TestInseminationDuplicateDetectionIgnoresCancelled(t *testing.T) {
	db := newTestDB(t)
	repo := NewInseminationRepository(db)
	ctx := context.Background()

	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	record := &models.InseminationRecord{MotherID: "M-1", BullID: "B-9", InseminationDate: d, CompanyID: 1}
	require.NoError(t, repo.Create(ctx, record))

	// Active duplicate is rejected
	err := repo.Create(ctx, &models.InseminationRecord{MotherID: "M-1", InseminationDate: d, CompanyID: 1})
	require.True(t, apperrors.IsConflict(err))

	// After cancellation the same (mother, date) can be re-recorded
	require.NoError(t, repo.Cancel(ctx, record))
	err = repo.Create(ctx, &models.InseminationRecord{MotherID: "M-1", BullID: "B-2", InseminationDate: d, CompanyID: 1})
	require.NoError(t, err)
}
