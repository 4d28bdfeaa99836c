package eventstore

import (
	"context"
	"time"

	"example.com/backstage/services/livestock/internal/models"
)

// AppendInput carries everything required to append one immutable event.
// CompanyID, UserID and AnimalNumber are non-negotiable tenancy/audit fields.
type AppendInput struct {
	EventType    string
	AnimalID     *int64
	AnimalNumber string
	CompanyID    int64
	UserID       int64
	Payload      interface{}
	Metadata     map[string]interface{}
	EventTime    time.Time // zero value defaults to now; callers backdate known facts
	EventVersion int       // zero value defaults to 1
}

// EventStore is the interface for the append-only domain event ledger
type EventStore interface {
	// Append durably persists one new immutable event and returns it
	Append(ctx context.Context, input AppendInput) (*models.Event, error)

	// EventsForAnimal returns the animal's full event sequence ordered by
	// (event_time, id) ascending
	EventsForAnimal(ctx context.Context, companyID int64, animalNumber string) ([]models.Event, error)

	// EventsForAnimalAfter returns events strictly after the given
	// (event_time, id) marker, ordered by (event_time, id) ascending
	EventsForAnimalAfter(ctx context.Context, companyID int64, animalNumber string, afterTime time.Time, afterID uint) ([]models.Event, error)

	// EventsSince returns up to limit events for a company with id greater
	// than sinceEventID, for incremental consumers
	EventsSince(ctx context.Context, companyID int64, sinceEventID uint, limit int) ([]models.Event, error)

	// GetByEventID fetches a single event by its unique event token
	GetByEventID(ctx context.Context, eventID string) (*models.Event, error)

	// HasEvents checks whether any events exist for an animal
	HasEvents(ctx context.Context, companyID int64, animalNumber string) (bool, error)
}
