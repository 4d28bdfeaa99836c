package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/domain"
	"example.com/backstage/services/livestock/internal/eventstore"
	"example.com/backstage/services/livestock/internal/metrics"
	"example.com/backstage/services/livestock/internal/models"
	"example.com/backstage/services/livestock/internal/projector"
	"example.com/backstage/services/livestock/internal/repositories"
	"example.com/backstage/services/livestock/internal/tracing"
)

// AssignmentStatus is the terminal outcome of one father inference
type AssignmentStatus string

// Assignment outcomes. too_short and no_insemination are deliberate
// no-assignment results, not failures.
const (
	StatusAssigned       AssignmentStatus = "assigned"
	StatusRepaso         AssignmentStatus = "repaso"
	StatusTooShort       AssignmentStatus = "too_short"
	StatusNoInsemination AssignmentStatus = "no_insemination"
)

// GestationWindow is the [min, max] range of plausible days between
// insemination and birth
type GestationWindow struct {
	MinDays int
	MaxDays int
}

// DefaultGestationWindow returns the standard bovine gestation window
func DefaultGestationWindow() GestationWindow {
	return GestationWindow{MinDays: 260, MaxDays: 300}
}

// AssignmentResult is the outcome of father inference for one registration
type AssignmentResult struct {
	AnimalNumber  string           `json:"animal_number"`
	MotherID      string           `json:"mother_id"`
	FatherID      string           `json:"father_id,omitempty"`
	Status        AssignmentStatus `json:"status"`
	GestationDays int              `json:"gestation_days,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// BatchSummary aggregates the per-record outcomes of a batch run
type BatchSummary struct {
	Processed      int                `json:"processed"`
	Assigned       int                `json:"assigned"`
	Repaso         int                `json:"repaso"`
	TooShort       int                `json:"too_short"`
	NoInsemination int                `json:"no_insemination"`
	Errors         int                `json:"errors"`
	DryRun         bool               `json:"dry_run"`
	Results        []AssignmentResult `json:"results"`
}

// ValidationResult flags drift between the stored father and the one the
// engine would assign from current insemination data
type ValidationResult struct {
	AnimalNumber   string           `json:"animal_number"`
	MotherID       string           `json:"mother_id"`
	CurrentFather  string           `json:"current_father"`
	ExpectedFather string           `json:"expected_father"`
	ExpectedStatus AssignmentStatus `json:"expected_status"`
	IsValid        bool             `json:"is_valid"`
}

// FatherService reconciles birth registrations against insemination history
// using gestation-window arithmetic
type FatherService struct {
	inseminations *repositories.InseminationRepository
	registrations *repositories.RegistrationRepository
	store         eventstore.EventStore
	proj          *projector.Projector
	regProj       *projector.RegistrationProjector
	collector     *metrics.Metrics
	tracer        tracing.Tracer
	window        GestationWindow
}

// NewFatherService creates a new father assignment service
func NewFatherService(
	inseminations *repositories.InseminationRepository,
	registrations *repositories.RegistrationRepository,
	store eventstore.EventStore,
	proj *projector.Projector,
	regProj *projector.RegistrationProjector,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
	window GestationWindow,
) *FatherService {
	return &FatherService{
		inseminations: inseminations,
		registrations: registrations,
		store:         store,
		proj:          proj,
		regProj:       regProj,
		collector:     collector,
		tracer:        tracer,
		window:        window,
	}
}

// Window returns the configured gestation window
func (s *FatherService) Window() GestationWindow {
	return s.window
}

// AssignFather infers the likely sire for a calf born on bornDate to the
// given mother. The mother's inseminations are scanned most-recent-first: the
// first one inside the window wins; otherwise the closest one past the window
// becomes a REPASO fallback; otherwise no assignment is made.
func (s *FatherService) AssignFather(ctx context.Context, companyID int64, motherID string, bornDate time.Time, window GestationWindow) (*AssignmentResult, error) {
	records, err := s.inseminations.ListByMother(ctx, companyID, motherID)
	if err != nil {
		return nil, err
	}

	result := &AssignmentResult{MotherID: domain.NormalizeAnimalNumber(motherID)}

	if len(records) == 0 {
		result.Status = StatusNoInsemination
		return result, nil
	}

	var fallback *models.InseminationRecord
	fallbackDays := 0

	for i := range records {
		record := &records[i]
		gestationDays := daysBetween(record.InseminationDate, bornDate)

		if gestationDays >= window.MinDays && gestationDays <= window.MaxDays {
			// First in-window match wins; the list is date-descending so
			// this is the most recent plausible insemination.
			result.Status = StatusAssigned
			result.GestationDays = gestationDays
			result.FatherID = record.BullID
			if result.FatherID == "" {
				result.FatherID = models.FatherUnknown
			}
			return result, nil
		}

		if gestationDays > window.MaxDays {
			if fallback == nil || gestationDays < fallbackDays {
				fallback = record
				fallbackDays = gestationDays
			}
		}
	}

	if fallback != nil {
		// Re-bred outside the expected window
		result.Status = StatusRepaso
		result.GestationDays = fallbackDays
		result.FatherID = models.FatherRepaso
		return result, nil
	}

	result.Status = StatusTooShort
	return result, nil
}

// ProcessAllRegistrations runs father inference over every fatherless
// registration of a company. Errors are isolated per record; the batch always
// runs to completion. It is safe to run repeatedly since it only selects
// registrations with no father yet.
func (s *FatherService) ProcessAllRegistrations(ctx context.Context, companyID, userID int64, dryRun bool) (*BatchSummary, error) {
	txn := s.tracer.StartTransaction("father-assignment-batch")
	defer s.tracer.EndTransaction(txn)

	regs, err := s.registrations.ListFatherless(ctx, companyID, "")
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	summary := &BatchSummary{DryRun: dryRun}
	for i := range regs {
		reg := &regs[i]
		result := s.processRegistration(ctx, reg, userID, dryRun)
		summary.Results = append(summary.Results, *result)
		summary.Processed++

		switch {
		case result.Error != "":
			summary.Errors++
			s.collector.IncrementCounter(metrics.FatherAssignmentErrors)
		case result.Status == StatusAssigned:
			summary.Assigned++
			s.collector.IncrementCounter(metrics.FatherAssigned)
		case result.Status == StatusRepaso:
			summary.Repaso++
			s.collector.IncrementCounter(metrics.FatherRepaso)
		case result.Status == StatusTooShort:
			summary.TooShort++
			s.collector.IncrementCounter(metrics.FatherTooShort)
		case result.Status == StatusNoInsemination:
			summary.NoInsemination++
			s.collector.IncrementCounter(metrics.FatherNoInsemination)
		}
	}

	log.Info().
		Int64("companyID", companyID).
		Int("processed", summary.Processed).
		Int("assigned", summary.Assigned).
		Int("repaso", summary.Repaso).
		Bool("dryRun", dryRun).
		Msg("Father assignment batch completed")

	return summary, nil
}

// ProcessMotherPending runs father inference for one mother's fatherless
// registrations. This is the unit of work behind the async trigger on
// insemination creation.
func (s *FatherService) ProcessMotherPending(ctx context.Context, companyID, userID int64, motherID string) error {
	regs, err := s.registrations.ListFatherless(ctx, companyID, motherID)
	if err != nil {
		return err
	}

	for i := range regs {
		result := s.processRegistration(ctx, &regs[i], userID, false)
		if result.Error != "" {
			log.Error().
				Str("animalNumber", result.AnimalNumber).
				Str("error", result.Error).
				Msg("Father assignment failed for registration")
		}
	}
	return nil
}

// ValidateAssignments recomputes the expected father for every registration
// that already carries one and flags drift. It never mutates anything.
func (s *FatherService) ValidateAssignments(ctx context.Context, companyID int64, window GestationWindow) ([]ValidationResult, error) {
	regs, err := s.registrations.ListAssigned(ctx, companyID)
	if err != nil {
		return nil, err
	}

	results := make([]ValidationResult, 0, len(regs))
	for i := range regs {
		reg := &regs[i]
		if reg.MotherID == nil || reg.BornDate == nil {
			continue
		}
		expected, err := s.AssignFather(ctx, companyID, *reg.MotherID, *reg.BornDate, window)
		if err != nil {
			return nil, err
		}

		current := ""
		if reg.FatherID != nil {
			current = *reg.FatherID
		}

		results = append(results, ValidationResult{
			AnimalNumber:   reg.AnimalNumber,
			MotherID:       *reg.MotherID,
			CurrentFather:  current,
			ExpectedFather: expected.FatherID,
			ExpectedStatus: expected.Status,
			IsValid:        current == expected.FatherID,
		})
	}
	return results, nil
}

func (s *FatherService) processRegistration(ctx context.Context, reg *models.Registration, userID int64, dryRun bool) *AssignmentResult {
	result, err := s.AssignFather(ctx, reg.CompanyID, *reg.MotherID, *reg.BornDate, s.window)
	if err != nil {
		return &AssignmentResult{
			AnimalNumber: reg.AnimalNumber,
			MotherID:     *reg.MotherID,
			Error:        err.Error(),
		}
	}
	result.AnimalNumber = reg.AnimalNumber

	if dryRun || (result.Status != StatusAssigned && result.Status != StatusRepaso) {
		return result
	}

	if err := s.applyAssignment(ctx, reg, result, userID); err != nil {
		result.Error = err.Error()
	}
	return result
}

// applyAssignment writes the decision back as a father_assigned event and
// re-projects the calf's snapshot and registration row
func (s *FatherService) applyAssignment(ctx context.Context, reg *models.Registration, result *AssignmentResult, userID int64) error {
	animalID := reg.ID
	_, err := s.store.Append(ctx, eventstore.AppendInput{
		EventType:    domain.FatherAssigned,
		AnimalID:     &animalID,
		AnimalNumber: reg.AnimalNumber,
		CompanyID:    reg.CompanyID,
		UserID:       userID,
		Payload: domain.ParentAssignedPayload{
			OldValue: reg.FatherID,
			NewValue: result.FatherID,
		},
		Metadata: map[string]interface{}{
			"source":         "father_assignment",
			"status":         string(result.Status),
			"gestation_days": result.GestationDays,
		},
	})
	if err != nil {
		return err
	}
	s.collector.IncrementCounter(metrics.EventsAppended)

	snap, err := s.proj.Project(ctx, reg.CompanyID, reg.AnimalNumber)
	if err != nil {
		return err
	}

	if _, err := s.regProj.Project(ctx, reg.ID, snap, reg.CreatedBy, reg.CreatedAt); err != nil {
		return err
	}

	log.Info().
		Str("animalNumber", reg.AnimalNumber).
		Str("fatherID", result.FatherID).
		Str("status", string(result.Status)).
		Int("gestationDays", result.GestationDays).
		Msg("Father assigned")

	return nil
}

// daysBetween counts whole days from one date to another, ignoring the time
// of day
func daysBetween(from, to time.Time) int {
	fromDate := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDate := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDate.Sub(fromDate).Hours() / 24)
}
