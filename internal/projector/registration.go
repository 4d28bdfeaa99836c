package projector

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/apperrors"
	"example.com/backstage/services/livestock/internal/models"
	"example.com/backstage/services/livestock/internal/repositories"
	"example.com/backstage/services/livestock/internal/search"
)

// RegistrationProjector mirrors snapshot state into the flat registration
// table for legacy export and reporting consumers. It only renames and
// copies values; it never applies business logic.
type RegistrationProjector struct {
	registrations *repositories.RegistrationRepository
	search        *search.ElasticClient
}

// NewRegistrationProjector creates a new registration projector. The search
// client may be nil.
func NewRegistrationProjector(registrations *repositories.RegistrationRepository, elasticClient *search.ElasticClient) *RegistrationProjector {
	return &RegistrationProjector{
		registrations: registrations,
		search:        elasticClient,
	}
}

// Project upserts the registration row for an animal from its snapshot.
// Projecting the same snapshot twice yields the same row.
func (p *RegistrationProjector) Project(ctx context.Context, animalID int64, snap *models.AnimalSnapshot, createdBy int64, createdAt time.Time) (int64, error) {
	reg, err := p.registrations.GetByAnimalID(ctx, animalID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return 0, err
		}
		reg = &models.Registration{
			ID:        animalID,
			ShortID:   repositories.NewShortID(),
			CompanyID: snap.CompanyID,
			CreatedBy: createdBy,
			CreatedAt: createdAt,
		}
	}

	mapSnapshotToRegistration(snap, reg)
	reg.UpdatedAt = time.Now().UTC()

	if err := p.registrations.Save(ctx, reg); err != nil {
		return 0, err
	}

	// Reporting index is best-effort: failures must never abort the write
	// that produced the snapshot.
	if p.search.Enabled() {
		if err := p.search.IndexRegistration(ctx, reg); err != nil {
			log.Warn().
				Err(err).
				Str("animalNumber", reg.AnimalNumber).
				Msg("Failed to index registration document")
		}
	}

	return reg.ID, nil
}

// mapSnapshotToRegistration copies snapshot values into the registration
// vocabulary (birth_date -> born_date, current_status -> status, ...)
func mapSnapshotToRegistration(snap *models.AnimalSnapshot, reg *models.Registration) {
	reg.AnimalNumber = snap.AnimalNumber
	reg.BornDate = snap.BirthDate
	reg.MotherID = snap.MotherID
	reg.FatherID = snap.FatherID
	reg.Status = snap.CurrentStatus
	reg.Weight = snap.CurrentWeight
	reg.WeaningWeight = snap.WeaningWeight
	reg.Gender = snap.Gender
	reg.Color = snap.Color
	reg.DeathDate = snap.DeathDate
	reg.SoldDate = snap.SoldDate
	reg.Notes = snap.Notes
	reg.NotesMother = snap.NotesMother
	reg.RpAnimal = snap.RpAnimal
	reg.RpMother = snap.RpMother
	reg.MotherWeight = snap.MotherWeight
	reg.ScrotalCircumference = snap.ScrotalCircumference
	reg.AnimalIDV = snap.AnimalIDV
}
