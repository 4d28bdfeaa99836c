package projector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/backstage/services/livestock/internal/apperrors"
	"example.com/backstage/services/livestock/internal/domain"
	"example.com/backstage/services/livestock/internal/eventstore"
	"example.com/backstage/services/livestock/internal/models"
	"example.com/backstage/services/livestock/internal/repositories"
)

type projectorFixture struct {
	db        *gorm.DB
	store     eventstore.EventStore
	snapshots *repositories.SnapshotRepository
	proj      *Projector
}

func newFixture(t *testing.T) *projectorFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.SetupModels(db))

	store := eventstore.NewGormEventStore(db)
	snapshots := repositories.NewSnapshotRepository(db)
	return &projectorFixture{
		db:        db,
		store:     store,
		snapshots: snapshots,
		proj:      NewProjector(store, snapshots, nil),
	}
}

func (f *projectorFixture) appendBirth(t *testing.T, companyID int64, number string, animalID *int64, birthDate time.Time) {
	t.Helper()
	_, err := f.store.Append(context.Background(), eventstore.AppendInput{
		EventType:    domain.BirthRegistered,
		AnimalID:     animalID,
		AnimalNumber: number,
		CompanyID:    companyID,
		UserID:       7,
		EventTime:    birthDate,
		Payload: domain.BirthRegisteredPayload{
			AnimalNumber: number,
			BirthDate:    &birthDate,
			Gender:       "F",
			Status:       models.StatusAlive,
		},
	})
	require.NoError(t, err)
}

func TestProjectFullBuildsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	birthDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	animalID := int64(101)

	f.appendBirth(t, 1, "A-1", &animalID, birthDate)

	snap, err := f.proj.Project(ctx, 1, "A-1")
	require.NoError(t, err)
	require.Equal(t, animalID, snap.AnimalID)
	require.Equal(t, "A-1", snap.AnimalNumber)
	require.Equal(t, models.StatusAlive, snap.CurrentStatus)
	require.Equal(t, 1, snap.SnapshotVersion)
	require.NotZero(t, snap.LastEventID)
}

func TestProjectWithNoEventsReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.proj.Project(context.Background(), 1, "GHOST")
	require.True(t, apperrors.IsNotFound(err))
}

func TestProjectIsIdempotentWithoutNewEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	animalID := int64(101)
	f.appendBirth(t, 1, "A-1", &animalID, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	first, err := f.proj.Project(ctx, 1, "A-1")
	require.NoError(t, err)

	// No new events: same state, no version bump, no write
	second, err := f.proj.Project(ctx, 1, "A-1")
	require.NoError(t, err)
	require.Equal(t, first.SnapshotVersion, second.SnapshotVersion)
	require.Equal(t, first.LastEventID, second.LastEventID)
}

func TestIncrementalMatchesFullReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	animalID := int64(101)
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	f.appendBirth(t, 1, "A-1", &animalID, base)

	_, err := f.proj.Project(ctx, 1, "A-1")
	require.NoError(t, err)

	// More events after the first projection pass
	newWeight := 240.0
	_, err = f.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.CurrentWeightRecorded,
		AnimalID:     &animalID,
		AnimalNumber: "A-1",
		CompanyID:    1,
		UserID:       7,
		EventTime:    base.AddDate(0, 6, 0),
		Payload:      domain.MeasurementPayload{NewValue: &newWeight},
	})
	require.NoError(t, err)

	father := "B-9"
	_, err = f.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.FatherAssigned,
		AnimalID:     &animalID,
		AnimalNumber: "A-1",
		CompanyID:    1,
		UserID:       7,
		Payload:      domain.ParentAssignedPayload{NewValue: father},
	})
	require.NoError(t, err)

	incremental, err := f.proj.Project(ctx, 1, "A-1")
	require.NoError(t, err)

	// Fold the full sequence from scratch and compare state field by field
	events, err := f.store.EventsForAnimal(ctx, 1, "A-1")
	require.NoError(t, err)
	full := &models.AnimalSnapshot{AnimalID: animalID, CompanyID: 1, AnimalNumber: "A-1"}
	for _, event := range events {
		require.NoError(t, domain.Fold(full, event))
	}

	require.Equal(t, full.CurrentWeight, incremental.CurrentWeight)
	require.Equal(t, full.FatherID, incremental.FatherID)
	require.Equal(t, full.CurrentStatus, incremental.CurrentStatus)
	require.Equal(t, full.LastEventID, incremental.LastEventID)
	require.Equal(t, full.LastEventTime.UTC(), incremental.LastEventTime.UTC())
}

func TestProjectAssignsSyntheticIDWithoutRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Mother genesis carries no registration id
	_, err := f.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.MotherRegistered,
		AnimalNumber: "M-1",
		CompanyID:    1,
		UserID:       7,
		Payload: domain.ParentRegisteredPayload{
			AnimalNumber: "M-1",
			Gender:       "F",
			Status:       models.StatusAlive,
		},
	})
	require.NoError(t, err)

	snap, err := f.proj.Project(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Negative(t, snap.AnimalID)
	require.Equal(t, domain.SyntheticAnimalID("M-1", 1), snap.AnimalID)

	// Projecting again keeps the same identity
	again, err := f.proj.Project(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Equal(t, snap.AnimalID, again.AnimalID)
}

func TestIncrementalProjectionAdoptsRegistrationIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// First contact has no registration id, so the snapshot is keyed
	// synthetically
	_, err := f.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.MotherRegistered,
		AnimalNumber: "M-1",
		CompanyID:    1,
		UserID:       7,
		Payload: domain.ParentRegisteredPayload{
			AnimalNumber: "M-1",
			Gender:       "F",
			Status:       models.StatusAlive,
		},
	})
	require.NoError(t, err)

	snap, err := f.proj.Project(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Negative(t, snap.AnimalID)
	syntheticID := snap.AnimalID

	// A later registration carries the real id; the incremental pass must
	// resolve it the same way a full rebuild would
	registrationID := int64(33)
	newWeight := 480.0
	_, err = f.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.CurrentWeightRecorded,
		AnimalID:     &registrationID,
		AnimalNumber: "M-1",
		CompanyID:    1,
		UserID:       7,
		Payload:      domain.MeasurementPayload{NewValue: &newWeight},
	})
	require.NoError(t, err)

	snap, err = f.proj.Project(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Equal(t, registrationID, snap.AnimalID)
	require.Equal(t, &newWeight, snap.CurrentWeight)

	// The row is addressable under the registration id, and the synthetic
	// row is gone
	byID, err := f.proj.GetByID(ctx, 1, registrationID)
	require.NoError(t, err)
	require.Equal(t, "M-1", byID.AnimalNumber)
	_, err = f.proj.GetByID(ctx, 1, syntheticID)
	require.True(t, apperrors.IsNotFound(err))
}

func TestProjectionFollowsAnimalNumberCorrection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	animalID := int64(101)
	f.appendBirth(t, 1, "A-1", &animalID, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	_, err := f.proj.Project(ctx, 1, "A-1")
	require.NoError(t, err)

	newNumber := "A-2"
	_, err = f.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.AnimalNumberCorrected,
		AnimalID:     &animalID,
		AnimalNumber: "A-1",
		CompanyID:    1,
		UserID:       7,
		Payload: domain.FieldChangePayload{
			FieldName: "animal_number",
			NewValue:  &newNumber,
		},
	})
	require.NoError(t, err)

	snap, err := f.proj.Project(ctx, 1, "A-1")
	require.NoError(t, err)
	require.Equal(t, "A-2", snap.AnimalNumber)

	// Lookups under the old number no longer resolve
	_, err = f.proj.GetByNumber(ctx, 1, "A-1")
	require.True(t, apperrors.IsNotFound(err))

	renamed, err := f.proj.GetByNumber(ctx, 1, "A-2")
	require.NoError(t, err)
	require.Equal(t, animalID, renamed.AnimalID)
}

func TestProjectionIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	idOne := int64(101)
	f.appendBirth(t, 1, "A-1", &idOne, base)
	idTwo := int64(202)
	f.appendBirth(t, 2, "A-1", &idTwo, base)

	one, err := f.proj.Project(ctx, 1, "A-1")
	require.NoError(t, err)
	two, err := f.proj.Project(ctx, 2, "A-1")
	require.NoError(t, err)

	require.Equal(t, idOne, one.AnimalID)
	require.Equal(t, idTwo, two.AnimalID)
	require.NotEqual(t, one.AnimalID, two.AnimalID)
}

func TestResolveIdentityPrefersLatestRegistrationID(t *testing.T) {
	id := int64(55)
	events := []models.Event{
		{AnimalID: nil},
		{AnimalID: &id},
		{AnimalID: nil},
	}
	require.Equal(t, id, ResolveIdentity(events, "A-1", 1))
	require.Negative(t, ResolveIdentity(nil, "A-1", 1))
}

func TestRegistrationProjectorMirrorsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regRepo := repositories.NewRegistrationRepository(f.db)
	regProj := NewRegistrationProjector(regRepo, nil)

	birthDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mother := "M-1"
	weight := 31.5
	snap := &models.AnimalSnapshot{
		AnimalID:      101,
		CompanyID:     1,
		AnimalNumber:  "A-1",
		BirthDate:     &birthDate,
		MotherID:      &mother,
		CurrentStatus: models.StatusAlive,
		CurrentWeight: &weight,
		Gender:        "F",
	}

	createdAt := time.Now().UTC()
	regID, err := regProj.Project(ctx, snap.AnimalID, snap, 7, createdAt)
	require.NoError(t, err)
	require.Equal(t, snap.AnimalID, regID)

	reg, err := regRepo.GetByAnimalID(ctx, regID)
	require.NoError(t, err)
	require.Equal(t, "A-1", reg.AnimalNumber)
	require.Equal(t, &birthDate, reg.BornDate)
	require.Equal(t, &mother, reg.MotherID)
	require.Equal(t, models.StatusAlive, reg.Status)
	require.Equal(t, &weight, reg.Weight)
	require.NotEmpty(t, reg.ShortID)

	// Re-projecting the same snapshot yields the same row
	shortID := reg.ShortID
	_, err = regProj.Project(ctx, snap.AnimalID, snap, 7, createdAt)
	require.NoError(t, err)
	again, err := regRepo.GetByAnimalID(ctx, regID)
	require.NoError(t, err)
	require.Equal(t, shortID, again.ShortID)
	require.Equal(t, reg.AnimalNumber, again.AnimalNumber)
}
