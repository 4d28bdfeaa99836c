package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/backstage/services/livestock/internal/models"
)

func mustPayload(t *testing.T, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func makeEvent(t *testing.T, id uint, eventType string, eventTime time.Time, payload interface{}) models.Event {
	t.Helper()
	return models.Event{
		ID:           id,
		EventType:    eventType,
		AnimalNumber: "A-1",
		CompanyID:    1,
		EventTime:    eventTime,
		Payload:      mustPayload(t, payload),
	}
}

func TestFoldBirthRegistered(t *testing.T) {
	birthDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mother := "M-1"
	weight := 32.5

	snap := &models.AnimalSnapshot{}
	event := makeEvent(t, 1, BirthRegistered, birthDate, BirthRegisteredPayload{
		AnimalNumber: "a-1",
		BirthDate:    &birthDate,
		MotherID:     &mother,
		Gender:       "F",
		Weight:       &weight,
	})

	require.NoError(t, Fold(snap, event))
	require.Equal(t, "A-1", snap.AnimalNumber)
	require.Equal(t, models.StatusAlive, snap.CurrentStatus)
	require.Equal(t, "F", snap.Gender)
	require.Equal(t, &mother, snap.MotherID)
	require.Equal(t, &weight, snap.CurrentWeight)
	require.Equal(t, uint(1), snap.LastEventID)
	require.Equal(t, birthDate, snap.LastEventTime)
}

func TestFoldCorrectionsOverwriteInOrder(t *testing.T) {
	now := time.Now().UTC()
	snap := &models.AnimalSnapshot{}

	require.NoError(t, Fold(snap, makeEvent(t, 1, BirthRegistered, now, BirthRegisteredPayload{
		AnimalNumber: "A-1",
		Gender:       "M",
	})))

	newGender := "F"
	require.NoError(t, Fold(snap, makeEvent(t, 2, GenderCorrected, now.Add(time.Minute), FieldChangePayload{
		FieldName: "gender",
		NewValue:  &newGender,
	})))
	require.Equal(t, "F", snap.Gender)

	oldWeight := 0.0
	newWeight := 210.0
	require.NoError(t, Fold(snap, makeEvent(t, 3, CurrentWeightRecorded, now.Add(2*time.Minute), MeasurementPayload{
		OldValue: &oldWeight,
		NewValue: &newWeight,
	})))
	require.Equal(t, &newWeight, snap.CurrentWeight)
	require.Equal(t, uint(3), snap.LastEventID)
}

func TestFoldBirthDateCorrectionParsesDate(t *testing.T) {
	now := time.Now().UTC()
	snap := &models.AnimalSnapshot{}
	newDate := "2024-05-20"

	require.NoError(t, Fold(snap, makeEvent(t, 1, BirthDateCorrected, now, FieldChangePayload{
		FieldName: "birth_date",
		NewValue:  &newDate,
	})))
	require.NotNil(t, snap.BirthDate)
	require.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), *snap.BirthDate)
}

func TestFoldDeathRecorded(t *testing.T) {
	now := time.Now().UTC()
	deathDate := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	snap := &models.AnimalSnapshot{CurrentStatus: models.StatusAlive}

	require.NoError(t, Fold(snap, makeEvent(t, 5, DeathRecorded, now, DeathRecordedPayload{DeathDate: deathDate})))
	require.Equal(t, models.StatusDead, snap.CurrentStatus)
	require.Equal(t, &deathDate, snap.DeathDate)
}

func TestFoldInseminationCountFloorsAtZero(t *testing.T) {
	now := time.Now().UTC()
	snap := &models.AnimalSnapshot{}
	inseminationDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, Fold(snap, makeEvent(t, 1, InseminationRecorded, inseminationDate, InseminationRecordedPayload{
		InseminationDate: inseminationDate,
	})))
	require.Equal(t, 1, snap.InseminationCount)
	require.Equal(t, &inseminationDate, snap.LastInseminationDate)

	require.NoError(t, Fold(snap, makeEvent(t, 2, InseminationCancelled, now, InseminationCancelledPayload{
		InseminationDate: inseminationDate,
	})))
	require.Equal(t, 0, snap.InseminationCount)
	// Cancellation does not rewrite the historical last date
	require.Equal(t, &inseminationDate, snap.LastInseminationDate)

	require.NoError(t, Fold(snap, makeEvent(t, 3, InseminationCancelled, now, InseminationCancelledPayload{
		InseminationDate: inseminationDate,
	})))
	require.Equal(t, 0, snap.InseminationCount)
}

func TestFoldUnknownEventAdvancesProvenanceOnly(t *testing.T) {
	now := time.Now().UTC()
	snap := &models.AnimalSnapshot{CurrentStatus: models.StatusAlive, Gender: "F"}

	event := models.Event{
		ID:           9,
		EventType:    "V2_SOMETHING_NEW",
		AnimalNumber: "A-1",
		CompanyID:    1,
		EventTime:    now,
		Payload:      []byte(`{"whatever":true}`),
	}
	require.NoError(t, Fold(snap, event))

	require.Equal(t, models.StatusAlive, snap.CurrentStatus)
	require.Equal(t, "F", snap.Gender)
	require.Equal(t, uint(9), snap.LastEventID)
	require.Equal(t, now, snap.LastEventTime)
}

func TestFoldParentAssignment(t *testing.T) {
	now := time.Now().UTC()
	snap := &models.AnimalSnapshot{}

	require.NoError(t, Fold(snap, makeEvent(t, 1, FatherAssigned, now, ParentAssignedPayload{NewValue: "B-9"})))
	require.NotNil(t, snap.FatherID)
	require.Equal(t, "B-9", *snap.FatherID)

	require.NoError(t, Fold(snap, makeEvent(t, 2, FatherAssigned, now.Add(time.Minute), ParentAssignedPayload{
		OldValue: snap.FatherID,
		NewValue: models.FatherRepaso,
	})))
	require.Equal(t, models.FatherRepaso, *snap.FatherID)
}
