package services

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/newrelic/go-agent/v3/newrelic"
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

// RegistrationSubmission is one normalized birth/registration submission.
// The caller arrives already authenticated with a resolved user and company.
type RegistrationSubmission struct {
	AnimalNumber         string     `json:"animal_number" validate:"required"`
	CompanyID            int64      `json:"company_id" validate:"required"`
	UserID               int64      `json:"user_id" validate:"required"`
	BirthDate            *time.Time `json:"birth_date"`
	MotherID             *string    `json:"mother_id"`
	FatherID             *string    `json:"father_id"`
	Gender               string     `json:"gender"`
	Status               string     `json:"status"`
	Weight               *float64   `json:"weight" validate:"omitempty,gte=0,lte=2000"`
	WeaningWeight        *float64   `json:"weaning_weight" validate:"omitempty,gte=0,lte=2000"`
	Color                *string    `json:"color"`
	Notes                *string    `json:"notes"`
	NotesMother          *string    `json:"notes_mother"`
	RpAnimal             *string    `json:"rp_animal"`
	RpMother             *string    `json:"rp_mother"`
	MotherWeight         *float64   `json:"mother_weight" validate:"omitempty,gte=0,lte=2000"`
	ScrotalCircumference *float64   `json:"scrotal_circumference" validate:"omitempty,gte=0,lte=100"`
	AnimalIDV            *string    `json:"animal_idv"`
}

// SubmissionResult reports what a submission did
type SubmissionResult struct {
	Snapshot       *models.AnimalSnapshot `json:"snapshot"`
	RegistrationID int64                  `json:"registration_id"`
	Genesis        bool                   `json:"genesis"`
	EventsEmitted  int                    `json:"events_emitted"`
}

// BulkRowResult is the per-row outcome of a bulk submission
type BulkRowResult struct {
	AnimalNumber string `json:"animal_number"`
	Outcome      string `json:"outcome"` // created, corrected, duplicate, error
	Error        string `json:"error,omitempty"`
}

// RegistrationService orchestrates the write path for registrations: event
// emission, snapshot projection, the registration view, and cascades to
// related animals.
type RegistrationService struct {
	store         eventstore.EventStore
	proj          *projector.Projector
	regProj       *projector.RegistrationProjector
	registrations *repositories.RegistrationRepository
	collector     *metrics.Metrics
	tracer        tracing.Tracer
	validate      *validator.Validate
	locks         *projector.KeyLocks
}

// NewRegistrationService creates a new registration orchestrator
func NewRegistrationService(
	store eventstore.EventStore,
	proj *projector.Projector,
	regProj *projector.RegistrationProjector,
	registrations *repositories.RegistrationRepository,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
) *RegistrationService {
	return &RegistrationService{
		store:         store,
		proj:          proj,
		regProj:       regProj,
		registrations: registrations,
		collector:     collector,
		tracer:        tracer,
		validate:      validator.New(),
		locks:         projector.NewKeyLocks(),
	}
}

// Submit processes one registration submission. The first submission for an
// animal number emits a single genesis event carrying the full state; later
// submissions are diffed against the folded event history and emit one
// correction event per changed field. Events are durably written before any
// projection reads them, and the genesis-vs-correction branch is decided
// from event history, never from snapshot state.
func (s *RegistrationService) Submit(ctx context.Context, sub *RegistrationSubmission) (*SubmissionResult, error) {
	txn := s.tracer.StartTransaction("registration-submit")
	defer s.tracer.EndTransaction(txn)

	if err := s.validate.Struct(sub); err != nil {
		return nil, apperrors.NewValidation("", err.Error())
	}
	normalizeSubmission(sub)

	result, err := s.submitPrimary(ctx, txn, sub)
	if err != nil {
		return nil, err
	}

	// Cascades to relatives are best-effort: the primary write already
	// succeeded and must not be undone by a relative's failure. They run
	// outside the animal's lock; each relative takes its own.
	s.cascadeRelatives(ctx, sub)

	s.collector.IncrementCounter(metrics.RegistrationsSubmitted)
	return result, nil
}

// submitPrimary runs the reserve-decide-append-project sequence under the
// animal's lock. Without it, two concurrent submissions for the same number
// could both observe an empty history and emit two genesis events.
func (s *RegistrationService) submitPrimary(ctx context.Context, txn *newrelic.Transaction, sub *RegistrationSubmission) (*SubmissionResult, error) {
	unlock := s.locks.Lock(sub.CompanyID, sub.AnimalNumber)
	defer unlock()

	// 1. Reserve an identity to obtain the animal id
	reg, err := s.registrations.Reserve(ctx, sub.CompanyID, sub.AnimalNumber, sub.UserID)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	// 2. Genesis vs correction, decided from event history
	hasEvents, err := s.store.HasEvents(ctx, sub.CompanyID, sub.AnimalNumber)
	if err != nil {
		return nil, err
	}

	result := &SubmissionResult{RegistrationID: reg.ID}
	if !hasEvents {
		if err := s.emitGenesis(ctx, sub, reg.ID); err != nil {
			return nil, err
		}
		result.Genesis = true
		result.EventsEmitted = 1
	} else {
		emitted, err := s.emitCorrections(ctx, sub, reg.ID)
		if err != nil {
			return nil, err
		}
		result.EventsEmitted = emitted
	}

	// 3. Project the snapshot
	snap, err := s.proj.Project(ctx, sub.CompanyID, sub.AnimalNumber)
	if err != nil {
		return nil, err
	}
	result.Snapshot = snap
	s.collector.IncrementCounter(metrics.SnapshotsProjected)

	// 4. Project the registration view
	if _, err := s.regProj.Project(ctx, reg.ID, snap, sub.UserID, reg.CreatedAt); err != nil {
		return nil, err
	}
	s.collector.IncrementCounter(metrics.RegistrationsProjected)

	return result, nil
}

// SubmitBulk feeds normalized rows one-by-one through Submit, collecting a
// per-row outcome. A row that changes nothing is reported as a duplicate.
func (s *RegistrationService) SubmitBulk(ctx context.Context, subs []RegistrationSubmission) []BulkRowResult {
	results := make([]BulkRowResult, 0, len(subs))
	for i := range subs {
		sub := &subs[i]
		row := BulkRowResult{AnimalNumber: domain.NormalizeAnimalNumber(sub.AnimalNumber)}

		result, err := s.Submit(ctx, sub)
		switch {
		case err != nil:
			row.Outcome = "error"
			row.Error = err.Error()
		case result.Genesis:
			row.Outcome = "created"
		case result.EventsEmitted > 0:
			row.Outcome = "corrected"
		default:
			row.Outcome = "duplicate"
		}
		results = append(results, row)
	}
	return results
}

func (s *RegistrationService) emitGenesis(ctx context.Context, sub *RegistrationSubmission, animalID int64) error {
	status := sub.Status
	if status == "" {
		status = models.StatusAlive
	}

	eventTime := time.Time{}
	if sub.BirthDate != nil {
		// Backdate the genesis event to the birth date
		eventTime = *sub.BirthDate
	}

	_, err := s.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.BirthRegistered,
		AnimalID:     &animalID,
		AnimalNumber: sub.AnimalNumber,
		CompanyID:    sub.CompanyID,
		UserID:       sub.UserID,
		EventTime:    eventTime,
		Payload: domain.BirthRegisteredPayload{
			AnimalNumber:         sub.AnimalNumber,
			BirthDate:            sub.BirthDate,
			MotherID:             sub.MotherID,
			FatherID:             sub.FatherID,
			Gender:               sub.Gender,
			Status:               status,
			Weight:               sub.Weight,
			WeaningWeight:        sub.WeaningWeight,
			Color:                sub.Color,
			Notes:                sub.Notes,
			NotesMother:          sub.NotesMother,
			RpAnimal:             sub.RpAnimal,
			RpMother:             sub.RpMother,
			MotherWeight:         sub.MotherWeight,
			ScrotalCircumference: sub.ScrotalCircumference,
			AnimalIDV:            sub.AnimalIDV,
		},
		Metadata: map[string]interface{}{"source": "registration"},
	})
	if err != nil {
		return err
	}
	s.collector.IncrementCounter(metrics.EventsAppended)
	return nil
}

// emitCorrections folds the animal's existing events and emits one event per
// field the submission changes. Absent (nil) fields are left untouched.
func (s *RegistrationService) emitCorrections(ctx context.Context, sub *RegistrationSubmission, animalID int64) (int, error) {
	events, err := s.store.EventsForAnimal(ctx, sub.CompanyID, sub.AnimalNumber)
	if err != nil {
		return 0, err
	}

	state := &models.AnimalSnapshot{
		CompanyID:    sub.CompanyID,
		AnimalNumber: sub.AnimalNumber,
	}
	for _, event := range events {
		if err := domain.Fold(state, event); err != nil {
			return 0, err
		}
	}

	emitted := 0
	emit := func(eventType string, payload interface{}) error {
		_, err := s.store.Append(ctx, eventstore.AppendInput{
			EventType:    eventType,
			AnimalID:     &animalID,
			AnimalNumber: sub.AnimalNumber,
			CompanyID:    sub.CompanyID,
			UserID:       sub.UserID,
			Payload:      payload,
			Metadata:     map[string]interface{}{"source": "registration_update"},
		})
		if err != nil {
			return err
		}
		emitted++
		s.collector.IncrementCounter(metrics.EventsAppended)
		return nil
	}

	if sub.BirthDate != nil && !equalDate(state.BirthDate, sub.BirthDate) {
		if err := emit(domain.BirthDateCorrected, fieldChange("birth_date", formatDate(state.BirthDate), formatDate(sub.BirthDate))); err != nil {
			return emitted, err
		}
	}
	if sub.MotherID != nil && !equalString(state.MotherID, sub.MotherID) {
		if err := emit(domain.MotherAssigned, domain.ParentAssignedPayload{OldValue: state.MotherID, NewValue: *sub.MotherID}); err != nil {
			return emitted, err
		}
	}
	if sub.FatherID != nil && !equalString(state.FatherID, sub.FatherID) {
		if err := emit(domain.FatherAssigned, domain.ParentAssignedPayload{OldValue: state.FatherID, NewValue: *sub.FatherID}); err != nil {
			return emitted, err
		}
	}
	if sub.Gender != "" && sub.Gender != state.Gender {
		if err := emit(domain.GenderCorrected, fieldChange("gender", stringPtrOrNil(state.Gender), &sub.Gender)); err != nil {
			return emitted, err
		}
	}
	if sub.Status != "" && sub.Status != state.CurrentStatus {
		if err := emit(domain.StatusChanged, fieldChange("current_status", stringPtrOrNil(state.CurrentStatus), &sub.Status)); err != nil {
			return emitted, err
		}
	}
	if sub.Weight != nil && !equalFloat(state.CurrentWeight, sub.Weight) {
		if err := emit(domain.CurrentWeightRecorded, domain.MeasurementPayload{OldValue: state.CurrentWeight, NewValue: sub.Weight}); err != nil {
			return emitted, err
		}
	}
	if sub.WeaningWeight != nil && !equalFloat(state.WeaningWeight, sub.WeaningWeight) {
		if err := emit(domain.WeaningWeightRecorded, domain.MeasurementPayload{OldValue: state.WeaningWeight, NewValue: sub.WeaningWeight}); err != nil {
			return emitted, err
		}
	}
	if sub.Color != nil && !equalString(state.Color, sub.Color) {
		if err := emit(domain.ColorRecorded, fieldChange("color", state.Color, sub.Color)); err != nil {
			return emitted, err
		}
	}
	if sub.Notes != nil && !equalString(state.Notes, sub.Notes) {
		if err := emit(domain.NotesUpdated, fieldChange("notes", state.Notes, sub.Notes)); err != nil {
			return emitted, err
		}
	}
	if sub.NotesMother != nil && !equalString(state.NotesMother, sub.NotesMother) {
		if err := emit(domain.MotherNotesUpdated, fieldChange("notes_mother", state.NotesMother, sub.NotesMother)); err != nil {
			return emitted, err
		}
	}
	if sub.RpAnimal != nil && !equalString(state.RpAnimal, sub.RpAnimal) {
		if err := emit(domain.RpAnimalUpdated, fieldChange("rp_animal", state.RpAnimal, sub.RpAnimal)); err != nil {
			return emitted, err
		}
	}
	if sub.RpMother != nil && !equalString(state.RpMother, sub.RpMother) {
		if err := emit(domain.RpMotherUpdated, fieldChange("rp_mother", state.RpMother, sub.RpMother)); err != nil {
			return emitted, err
		}
	}
	if sub.MotherWeight != nil && !equalFloat(state.MotherWeight, sub.MotherWeight) {
		if err := emit(domain.MotherWeightRecorded, domain.MeasurementPayload{OldValue: state.MotherWeight, NewValue: sub.MotherWeight}); err != nil {
			return emitted, err
		}
	}
	if sub.ScrotalCircumference != nil && !equalFloat(state.ScrotalCircumference, sub.ScrotalCircumference) {
		if err := emit(domain.ScrotalCircumferenceRecorded, domain.MeasurementPayload{OldValue: state.ScrotalCircumference, NewValue: sub.ScrotalCircumference}); err != nil {
			return emitted, err
		}
	}
	if sub.AnimalIDV != nil && !equalString(state.AnimalIDV, sub.AnimalIDV) {
		if err := emit(domain.AnimalIDVUpdated, fieldChange("animal_idv", state.AnimalIDV, sub.AnimalIDV)); err != nil {
			return emitted, err
		}
	}

	return emitted, nil
}

// cascadeRelatives makes referenced relatives visible in the system. A
// relative with no events gets a minimal genesis event and snapshot; a mother
// that already has events receives field-change events for the
// mother-specific fields the submission carries. All of it is best-effort.
func (s *RegistrationService) cascadeRelatives(ctx context.Context, sub *RegistrationSubmission) {
	if sub.MotherID != nil && *sub.MotherID != "" {
		s.cascadeMother(ctx, sub)
	}
	if sub.FatherID != nil && *sub.FatherID != "" {
		unlock := s.locks.Lock(sub.CompanyID, *sub.FatherID)
		s.ensureRelative(ctx, sub.CompanyID, sub.UserID, *sub.FatherID, domain.FatherRegistered, "M")
		unlock()
	}
}

func (s *RegistrationService) cascadeMother(ctx context.Context, sub *RegistrationSubmission) {
	motherNumber := *sub.MotherID

	unlock := s.locks.Lock(sub.CompanyID, motherNumber)
	defer unlock()

	hasEvents, err := s.store.HasEvents(ctx, sub.CompanyID, motherNumber)
	if err != nil {
		log.Warn().Err(err).Str("motherID", motherNumber).Msg("Failed to check mother events")
		return
	}

	if !hasEvents {
		s.ensureRelative(ctx, sub.CompanyID, sub.UserID, motherNumber, domain.MotherRegistered, "F")
		return
	}

	// Mother-specific fields travel on the mother's own stream
	motherSub := &RegistrationSubmission{
		AnimalNumber: motherNumber,
		CompanyID:    sub.CompanyID,
		UserID:       sub.UserID,
		Weight:       sub.MotherWeight,
		Notes:        sub.NotesMother,
		RpAnimal:     sub.RpMother,
	}
	if motherSub.Weight == nil && motherSub.Notes == nil && motherSub.RpAnimal == nil {
		return
	}

	// The mother has her own identity from her event history
	events, err := s.store.EventsForAnimal(ctx, sub.CompanyID, motherNumber)
	if err != nil {
		log.Warn().Err(err).Str("motherID", motherNumber).Msg("Failed to load mother events")
		return
	}
	motherID := projector.ResolveIdentity(events, motherNumber, sub.CompanyID)

	if _, err := s.emitCorrections(ctx, motherSub, motherID); err != nil {
		log.Warn().Err(err).Str("motherID", motherNumber).Msg("Failed to emit mother field events")
		return
	}
	if _, err := s.proj.Project(ctx, sub.CompanyID, motherNumber); err != nil {
		log.Warn().Err(err).Str("motherID", motherNumber).Msg("Failed to re-project mother snapshot")
	}
}

// ensureRelative emits a minimal genesis event for an unregistered relative
// and projects its snapshot. Failures are logged and swallowed; they must
// never abort the primary write.
func (s *RegistrationService) ensureRelative(ctx context.Context, companyID, userID int64, animalNumber, eventType, gender string) {
	hasEvents, err := s.store.HasEvents(ctx, companyID, animalNumber)
	if err != nil {
		log.Warn().Err(err).Str("animalNumber", animalNumber).Msg("Failed to check relative events")
		return
	}
	if hasEvents {
		return
	}

	_, err = s.store.Append(ctx, eventstore.AppendInput{
		EventType:    eventType,
		AnimalNumber: animalNumber,
		CompanyID:    companyID,
		UserID:       userID,
		Payload: domain.ParentRegisteredPayload{
			AnimalNumber: domain.NormalizeAnimalNumber(animalNumber),
			Gender:       gender,
			Status:       models.StatusAlive,
		},
		Metadata: map[string]interface{}{"source": "relative_cascade"},
	})
	if err != nil {
		log.Warn().Err(err).Str("animalNumber", animalNumber).Msg("Failed to emit relative genesis event")
		return
	}
	s.collector.IncrementCounter(metrics.EventsAppended)

	if _, err := s.proj.Project(ctx, companyID, animalNumber); err != nil {
		log.Warn().Err(err).Str("animalNumber", animalNumber).Msg("Failed to project relative snapshot")
	}
}

func normalizeSubmission(sub *RegistrationSubmission) {
	sub.AnimalNumber = domain.NormalizeAnimalNumber(sub.AnimalNumber)
	if sub.MotherID != nil {
		normalized := domain.NormalizeAnimalNumber(*sub.MotherID)
		sub.MotherID = &normalized
	}
	if sub.FatherID != nil {
		normalized := domain.NormalizeAnimalNumber(*sub.FatherID)
		sub.FatherID = &normalized
	}
}

func fieldChange(field string, oldValue, newValue *string) domain.FieldChangePayload {
	return domain.FieldChangePayload{FieldName: field, OldValue: oldValue, NewValue: newValue}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(domain.DateLayout)
	return &formatted
}

func stringPtrOrNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
