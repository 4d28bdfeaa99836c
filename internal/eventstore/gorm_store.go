package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/livestock/internal/apperrors"
	"example.com/backstage/services/livestock/internal/domain"
	"example.com/backstage/services/livestock/internal/models"
)

// GormEventStore implements EventStore using GORM
type GormEventStore struct {
	db *gorm.DB
}

// NewGormEventStore creates a new GORM event store
func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

// Append durably persists one new immutable event. It never mutates or
// removes existing rows.
func (s *GormEventStore) Append(ctx context.Context, input AppendInput) (*models.Event, error) {
	if input.CompanyID == 0 {
		return nil, apperrors.NewValidation("company_id", "company_id is required")
	}
	if input.UserID == 0 {
		return nil, apperrors.NewValidation("user_id", "user_id is required")
	}
	number := domain.NormalizeAnimalNumber(input.AnimalNumber)
	if number == "" {
		return nil, apperrors.NewValidation("animal_number", "animal_number is required")
	}
	if input.EventType == "" {
		return nil, apperrors.NewValidation("event_type", "event_type is required")
	}

	payload, err := json.Marshal(input.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event payload")
	}

	var metadata []byte
	if input.Metadata != nil {
		metadata, err = json.Marshal(input.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal event metadata")
		}
	}

	eventTime := input.EventTime
	if eventTime.IsZero() {
		eventTime = time.Now().UTC()
	}

	eventVersion := input.EventVersion
	if eventVersion == 0 {
		eventVersion = 1
	}

	event := models.Event{
		EventID:      uuid.New().String(),
		AnimalID:     input.AnimalID,
		AnimalNumber: number,
		CompanyID:    input.CompanyID,
		UserID:       input.UserID,
		EventType:    input.EventType,
		EventVersion: eventVersion,
		Payload:      payload,
		Metadata:     metadata,
		EventTime:    eventTime,
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, errors.Wrap(err, "failed to save event")
	}

	log.Info().
		Str("eventType", event.EventType).
		Str("animalNumber", event.AnimalNumber).
		Int64("companyID", event.CompanyID).
		Uint("id", event.ID).
		Msg("Event appended")

	return &event, nil
}

// EventsForAnimal returns the animal's full event sequence, ordered by
// (event_time, id) ascending. The id is the tiebreaker for same-instant
// events, guaranteeing deterministic replay order.
func (s *GormEventStore) EventsForAnimal(ctx context.Context, companyID int64, animalNumber string) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND animal_number = ?", companyID, domain.NormalizeAnimalNumber(animalNumber)).
		Order("event_time ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load events")
	}
	return events, nil
}

// EventsForAnimalAfter returns events strictly after the (afterTime, afterID)
// marker, in replay order
func (s *GormEventStore) EventsForAnimalAfter(ctx context.Context, companyID int64, animalNumber string, afterTime time.Time, afterID uint) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND animal_number = ?", companyID, domain.NormalizeAnimalNumber(animalNumber)).
		Where("event_time > ? OR (event_time = ? AND id > ?)", afterTime, afterTime, afterID).
		Order("event_time ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load events after marker")
	}
	return events, nil
}

// EventsSince returns up to limit events for a company with id greater than
// sinceEventID, for incremental consumers
func (s *GormEventStore) EventsSince(ctx context.Context, companyID int64, sinceEventID uint, limit int) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND id > ?", companyID, sinceEventID).
		Order("event_time ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load events since id")
	}
	return events, nil
}

// GetByEventID fetches a single event by its unique event token
func (s *GormEventStore) GetByEventID(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get event")
	}
	return &event, nil
}

// HasEvents checks whether any events exist for an animal
func (s *GormEventStore) HasEvents(ctx context.Context, companyID int64, animalNumber string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("company_id = ? AND animal_number = ?", companyID, domain.NormalizeAnimalNumber(animalNumber)).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check events for animal")
	}
	return count > 0, nil
}
