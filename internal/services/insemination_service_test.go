package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/backstage/services/livestock/internal/apperrors"
	"example.com/backstage/services/livestock/internal/domain"
)

func TestCreateInseminationRecordsAndProjects(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	inseminationDate := date(2024, 1, 15)
	record, err := f.insService.Create(ctx, &InseminationSubmission{
		MotherID:         "m-1",
		BullID:           "b-9",
		InseminationDate: inseminationDate,
		CompanyID:        1,
		UserID:           7,
	})
	require.NoError(t, err)
	require.Equal(t, "M-1", record.MotherID)
	require.Equal(t, "B-9", record.BullID)
	require.NotZero(t, record.ID)

	// The mother got a genesis event plus the insemination event
	events, err := f.store.EventsForAnimal(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.MotherRegistered, events[0].EventType)
	require.Equal(t, domain.InseminationRecorded, events[1].EventType)

	// Snapshot counters reflect the record
	snap, err := f.proj.GetByNumber(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Equal(t, 1, snap.InseminationCount)
	require.NotNil(t, snap.LastInseminationDate)
	require.Equal(t, inseminationDate, snap.LastInseminationDate.UTC())
}

func TestCreateInseminationRejectsDuplicates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sub := InseminationSubmission{
		MotherID:         "M-1",
		BullID:           "B-9",
		InseminationDate: date(2024, 1, 15),
		CompanyID:        1,
		UserID:           7,
	}
	_, err := f.insService.Create(ctx, &sub)
	require.NoError(t, err)

	dup := sub
	dup.BullID = "B-OTHER"
	_, err = f.insService.Create(ctx, &dup)
	require.True(t, apperrors.IsConflict(err))

	// Same mother and date in a different company is fine
	other := sub
	other.CompanyID = 2
	_, err = f.insService.Create(ctx, &other)
	require.NoError(t, err)
}

func TestCreateInseminationRejectsFutureDate(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.insService.Create(context.Background(), &InseminationSubmission{
		MotherID:         "M-1",
		InseminationDate: time.Now().UTC().AddDate(0, 1, 0),
		CompanyID:        1,
		UserID:           7,
	})
	require.True(t, apperrors.IsValidation(err))
}

func TestCancelInsemination(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	inseminationDate := date(2024, 1, 15)
	record, err := f.insService.Create(ctx, &InseminationSubmission{
		MotherID:         "M-1",
		BullID:           "B-9",
		InseminationDate: inseminationDate,
		CompanyID:        1,
		UserID:           7,
	})
	require.NoError(t, err)

	require.NoError(t, f.insService.Cancel(ctx, 1, record.ID, 7, "recorded in error"))

	// The record is out of the active list
	records, err := f.insService.ListByMother(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Empty(t, records)

	// The counter dropped but the historical last date remains
	snap, err := f.proj.GetByNumber(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Equal(t, 0, snap.InseminationCount)
	require.NotNil(t, snap.LastInseminationDate)

	// Cancelling twice is a conflict
	err = f.insService.Cancel(ctx, 1, record.ID, 7, "")
	require.True(t, apperrors.IsConflict(err))
}

func TestCancelMissingRecordIsNotFound(t *testing.T) {
	f := newServiceFixture(t)
	err := f.insService.Cancel(context.Background(), 1, 999, 7, "")
	require.True(t, apperrors.IsNotFound(err))
}

func TestListByMotherOrdersDateDescending(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	for _, d := range []time.Time{date(2024, 1, 5), date(2024, 3, 1), date(2024, 2, 10)} {
		_, err := f.insService.Create(ctx, &InseminationSubmission{
			MotherID:         "M-1",
			BullID:           "B-9",
			InseminationDate: d,
			CompanyID:        1,
			UserID:           7,
		})
		require.NoError(t, err)
	}

	records, err := f.insService.ListByMother(ctx, 1, "M-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		require.False(t, records[i].InseminationDate.After(records[i-1].InseminationDate))
	}
}
