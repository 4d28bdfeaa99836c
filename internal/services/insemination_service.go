package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/apperrors"
	"example.com/backstage/services/livestock/internal/domain"
	"example.com/backstage/services/livestock/internal/eventstore"
	"example.com/backstage/services/livestock/internal/metrics"
	"example.com/backstage/services/livestock/internal/models"
	"example.com/backstage/services/livestock/internal/projector"
	"example.com/backstage/services/livestock/internal/repositories"
	"example.com/backstage/services/livestock/internal/tracing"
)

// InseminationSubmission is one insemination record submission
type InseminationSubmission struct {
	MotherID               string    `json:"mother_id" validate:"required"`
	BullID                 string    `json:"bull_id"`
	InseminationDate       time.Time `json:"insemination_date" validate:"required"`
	InseminationIdentifier string    `json:"insemination_identifier"`
	InseminationRoundID    *int64    `json:"insemination_round_id"`
	CompanyID              int64     `json:"company_id" validate:"required"`
	UserID                 int64     `json:"user_id" validate:"required"`
}

// InseminationService records and cancels inseminations, keeps the mother's
// event stream in step, and triggers background father assignment for calves
// already waiting on insemination data.
type InseminationService struct {
	inseminations *repositories.InseminationRepository
	store         eventstore.EventStore
	proj          *projector.Projector
	dispatcher    *AssignmentDispatcher
	collector     *metrics.Metrics
	tracer        tracing.Tracer
	validate      *validator.Validate
}

// NewInseminationService creates a new insemination service
func NewInseminationService(
	inseminations *repositories.InseminationRepository,
	store eventstore.EventStore,
	proj *projector.Projector,
	dispatcher *AssignmentDispatcher,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
) *InseminationService {
	return &InseminationService{
		inseminations: inseminations,
		store:         store,
		proj:          proj,
		dispatcher:    dispatcher,
		collector:     collector,
		tracer:        tracer,
		validate:      validator.New(),
	}
}

// Create records an insemination. The record itself is the source the
// assignment engine reads; an event on the mother's stream keeps her
// insemination counters current. A duplicate (same mother and date) is
// rejected with a conflict.
func (s *InseminationService) Create(ctx context.Context, sub *InseminationSubmission) (*models.InseminationRecord, error) {
	txn := s.tracer.StartTransaction("insemination-create")
	defer s.tracer.EndTransaction(txn)

	if err := s.validate.Struct(sub); err != nil {
		return nil, apperrors.NewValidation("", err.Error())
	}
	if sub.InseminationDate.After(time.Now().UTC().Add(24 * time.Hour)) {
		return nil, apperrors.NewValidation("insemination_date", "insemination date cannot be in the future")
	}

	record := &models.InseminationRecord{
		MotherID:               domain.NormalizeAnimalNumber(sub.MotherID),
		BullID:                 domain.NormalizeAnimalNumber(sub.BullID),
		InseminationDate:       sub.InseminationDate,
		InseminationIdentifier: sub.InseminationIdentifier,
		InseminationRoundID:    sub.InseminationRoundID,
		CompanyID:              sub.CompanyID,
		CreatedBy:              sub.UserID,
	}
	if err := s.inseminations.Create(ctx, record); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}
	s.collector.IncrementCounter(metrics.InseminationsRecorded)

	s.ensureMotherStream(ctx, record.CompanyID, record.MotherID, sub.UserID, record.InseminationDate)

	var bullID *string
	if record.BullID != "" {
		bullID = &record.BullID
	}
	var identifier *string
	if record.InseminationIdentifier != "" {
		identifier = &record.InseminationIdentifier
	}

	// Backdated to the insemination date so replay ordering follows herd time
	_, err := s.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.InseminationRecorded,
		AnimalNumber: record.MotherID,
		CompanyID:    record.CompanyID,
		UserID:       sub.UserID,
		EventTime:    record.InseminationDate,
		Payload: domain.InseminationRecordedPayload{
			InseminationDate:       record.InseminationDate,
			InseminationIdentifier: identifier,
			InseminationRoundID:    record.InseminationRoundID,
			BullID:                 bullID,
		},
		Metadata: map[string]interface{}{"source": "insemination", "record_id": record.ID},
	})
	if err != nil {
		log.Warn().Err(err).Str("motherID", record.MotherID).Msg("Failed to append insemination event")
	} else {
		s.collector.IncrementCounter(metrics.EventsAppended)
		if _, err := s.proj.Project(ctx, record.CompanyID, record.MotherID); err != nil {
			log.Warn().Err(err).Str("motherID", record.MotherID).Msg("Failed to project mother snapshot")
		}
	}

	// Calves of this mother may have been waiting on insemination data
	s.dispatcher.Enqueue(AssignmentJob{
		CompanyID: record.CompanyID,
		MotherID:  record.MotherID,
		UserID:    sub.UserID,
	})

	return record, nil
}

// Cancel marks an insemination record as cancelled so the assignment engine
// stops considering it. The mother's insemination count is decremented through
// her event stream.
func (s *InseminationService) Cancel(ctx context.Context, companyID int64, id uint, userID int64, reason string) error {
	record, err := s.inseminations.GetByID(ctx, companyID, id)
	if err != nil {
		return err
	}
	if record.CancelledAt != nil {
		return apperrors.NewConflict("insemination record already cancelled")
	}

	if err := s.inseminations.Cancel(ctx, record); err != nil {
		return err
	}
	s.collector.IncrementCounter(metrics.InseminationsCancelled)

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	_, err = s.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.InseminationCancelled,
		AnimalNumber: record.MotherID,
		CompanyID:    record.CompanyID,
		UserID:       userID,
		Payload: domain.InseminationCancelledPayload{
			InseminationDate: record.InseminationDate,
			Reason:           reasonPtr,
		},
		Metadata: map[string]interface{}{"source": "insemination", "record_id": record.ID},
	})
	if err != nil {
		log.Warn().Err(err).Str("motherID", record.MotherID).Msg("Failed to append insemination cancellation event")
		return nil
	}
	s.collector.IncrementCounter(metrics.EventsAppended)

	if _, err := s.proj.Project(ctx, record.CompanyID, record.MotherID); err != nil {
		log.Warn().Err(err).Str("motherID", record.MotherID).Msg("Failed to project mother snapshot")
	}
	return nil
}

// ListByMother returns a mother's active insemination records, most recent
// first
func (s *InseminationService) ListByMother(ctx context.Context, companyID int64, motherID string) ([]models.InseminationRecord, error) {
	return s.inseminations.ListByMother(ctx, companyID, motherID)
}

// ensureMotherStream gives the mother a genesis event when the insemination
// arrives before any registration mentioned her. The genesis is backdated to
// the insemination date so it replays before the insemination event.
// Best-effort.
func (s *InseminationService) ensureMotherStream(ctx context.Context, companyID int64, motherID string, userID int64, eventTime time.Time) {
	hasEvents, err := s.store.HasEvents(ctx, companyID, motherID)
	if err != nil || hasEvents {
		if err != nil {
			log.Warn().Err(err).Str("motherID", motherID).Msg("Failed to check mother events")
		}
		return
	}

	_, err = s.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.MotherRegistered,
		AnimalNumber: motherID,
		CompanyID:    companyID,
		UserID:       userID,
		EventTime:    eventTime,
		Payload: domain.ParentRegisteredPayload{
			AnimalNumber: motherID,
			Gender:       "F",
			Status:       models.StatusAlive,
		},
		Metadata: map[string]interface{}{"source": "insemination"},
	})
	if err != nil {
		log.Warn().Err(err).Str("motherID", motherID).Msg("Failed to emit mother genesis event")
		return
	}
	s.collector.IncrementCounter(metrics.EventsAppended)
}
