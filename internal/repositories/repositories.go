package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/livestock/internal/apperrors"
	"example.com/backstage/services/livestock/internal/domain"
	"example.com/backstage/services/livestock/internal/models"
)

// SnapshotRepository provides access to animal snapshots. The projector is
// the only writer of snapshot rows.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// GetByID gets a snapshot by animal id and company
func (r *SnapshotRepository) GetByID(ctx context.Context, companyID, animalID int64) (*models.AnimalSnapshot, error) {
	var snap models.AnimalSnapshot
	err := r.db.WithContext(ctx).
		Where("animal_id = ? AND company_id = ?", animalID, companyID).
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get snapshot by id")
	}
	return &snap, nil
}

// GetByNumber gets a snapshot by animal number and company
func (r *SnapshotRepository) GetByNumber(ctx context.Context, companyID int64, animalNumber string) (*models.AnimalSnapshot, error) {
	var snap models.AnimalSnapshot
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND animal_number = ?", companyID, domain.NormalizeAnimalNumber(animalNumber)).
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get snapshot by number")
	}
	return &snap, nil
}

// List returns snapshots for a company ordered by animal number ascending,
// optionally filtered by status
func (r *SnapshotRepository) List(ctx context.Context, companyID int64, status string, limit, offset int) ([]models.AnimalSnapshot, error) {
	query := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if status != "" {
		query = query.Where("current_status = ?", status)
	}

	var snaps []models.AnimalSnapshot
	err := query.Order("animal_number ASC").Limit(limit).Offset(offset).Find(&snaps).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list snapshots")
	}
	return snaps, nil
}

// Create inserts a new snapshot row
func (r *SnapshotRepository) Create(ctx context.Context, snap *models.AnimalSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		return errors.Wrap(err, "failed to create snapshot")
	}
	return nil
}

// Save updates an existing snapshot row
func (r *SnapshotRepository) Save(ctx context.Context, snap *models.AnimalSnapshot) error {
	if err := r.db.WithContext(ctx).Save(snap).Error; err != nil {
		return errors.Wrap(err, "failed to save snapshot")
	}
	return nil
}

// Delete removes a snapshot row. The projector uses this when an animal's
// identity is re-keyed from a synthetic id to a registration id.
func (r *SnapshotRepository) Delete(ctx context.Context, companyID, animalID int64) error {
	err := r.db.WithContext(ctx).
		Where("animal_id = ? AND company_id = ?", animalID, companyID).
		Delete(&models.AnimalSnapshot{}).Error
	if err != nil {
		return errors.Wrap(err, "failed to delete snapshot")
	}
	return nil
}

// RegistrationRepository provides access to registration rows, the flat
// legacy-compatible projection
type RegistrationRepository struct {
	db *gorm.DB
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// GetByAnimalID gets a registration by its primary id
func (r *RegistrationRepository) GetByAnimalID(ctx context.Context, animalID int64) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.WithContext(ctx).First(&reg, animalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get registration by id")
	}
	return &reg, nil
}

// GetByNumber gets a registration by animal number and company
func (r *RegistrationRepository) GetByNumber(ctx context.Context, companyID int64, animalNumber string) (*models.Registration, error) {
	var reg models.Registration
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND animal_number = ?", companyID, domain.NormalizeAnimalNumber(animalNumber)).
		First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get registration by number")
	}
	return &reg, nil
}

// Reserve inserts a minimal registration row for an animal number if none
// exists yet, and returns the row. This is how a submission obtains its
// animal id before any event is written.
func (r *RegistrationRepository) Reserve(ctx context.Context, companyID int64, animalNumber string, createdBy int64) (*models.Registration, error) {
	number := domain.NormalizeAnimalNumber(animalNumber)

	reg, err := r.GetByNumber(ctx, companyID, number)
	if err == nil {
		return reg, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	newReg := models.Registration{
		ShortID:      NewShortID(),
		AnimalNumber: number,
		CompanyID:    companyID,
		Status:       models.StatusAlive,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&newReg).Error; err != nil {
		return nil, errors.Wrap(err, "failed to reserve registration row")
	}
	return &newReg, nil
}

// Save updates an existing registration row
func (r *RegistrationRepository) Save(ctx context.Context, reg *models.Registration) error {
	if err := r.db.WithContext(ctx).Save(reg).Error; err != nil {
		return errors.Wrap(err, "failed to save registration")
	}
	return nil
}

// ListFatherless returns registrations with a known mother, a born date, and
// no father assigned yet. When motherID is non-empty the result is scoped to
// that mother's calves.
func (r *RegistrationRepository) ListFatherless(ctx context.Context, companyID int64, motherID string) ([]models.Registration, error) {
	query := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("mother_id IS NOT NULL AND mother_id <> ''").
		Where("born_date IS NOT NULL").
		Where("father_id IS NULL OR father_id = ''")
	if motherID != "" {
		query = query.Where("mother_id = ?", domain.NormalizeAnimalNumber(motherID))
	}

	var regs []models.Registration
	if err := query.Order("id ASC").Find(&regs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list fatherless registrations")
	}
	return regs, nil
}

// ListAssigned returns registrations that already carry a father, a known
// mother and a born date, for assignment validation. Validation recomputes the
// expected father from the mother's inseminations, so a row without a mother
// has nothing to validate against.
func (r *RegistrationRepository) ListAssigned(ctx context.Context, companyID int64) ([]models.Registration, error) {
	var regs []models.Registration
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("father_id IS NOT NULL AND father_id <> ''").
		Where("mother_id IS NOT NULL AND mother_id <> ''").
		Where("born_date IS NOT NULL").
		Order("id ASC").
		Find(&regs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assigned registrations")
	}
	return regs, nil
}

// DistinctCompanies returns every company id with at least one registration.
// The sweep job iterates these.
func (r *RegistrationRepository) DistinctCompanies(ctx context.Context) ([]int64, error) {
	var companies []int64
	err := r.db.WithContext(ctx).
		Model(&models.Registration{}).
		Distinct("company_id").
		Pluck("company_id", &companies).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list companies")
	}
	return companies, nil
}

// ExportRows returns registration rows for a company ordered by animal number
func (r *RegistrationRepository) ExportRows(ctx context.Context, companyID int64, limit, offset int) ([]models.Registration, error) {
	var regs []models.Registration
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("animal_number ASC").
		Limit(limit).
		Offset(offset).
		Find(&regs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to export registrations")
	}
	return regs, nil
}

// InseminationRepository provides access to insemination records
type InseminationRepository struct {
	db *gorm.DB
}

// NewInseminationRepository creates a new insemination repository
func NewInseminationRepository(db *gorm.DB) *InseminationRepository {
	return &InseminationRepository{db: db}
}

// Create inserts a new insemination record. Duplicate suppression keys on
// (mother_id, insemination_date, company_id).
func (r *InseminationRepository) Create(ctx context.Context, record *models.InseminationRecord) error {
	record.MotherID = domain.NormalizeAnimalNumber(record.MotherID)
	record.BullID = domain.NormalizeAnimalNumber(record.BullID)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InseminationRecord{}).
		Where("company_id = ? AND mother_id = ? AND insemination_date = ? AND cancelled_at IS NULL",
			record.CompanyID, record.MotherID, record.InseminationDate).
		Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "failed to check for duplicate insemination")
	}
	if count > 0 {
		return apperrors.NewConflict("insemination already recorded for this mother and date")
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(err, "failed to create insemination record")
	}
	return nil
}

// GetByID gets an insemination record by id
func (r *InseminationRepository) GetByID(ctx context.Context, companyID int64, id uint) (*models.InseminationRecord, error) {
	var record models.InseminationRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND company_id = ?", id, companyID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get insemination record")
	}
	return &record, nil
}

// ListByMother returns a mother's active insemination records ordered by
// insemination date descending
func (r *InseminationRepository) ListByMother(ctx context.Context, companyID int64, motherID string) ([]models.InseminationRecord, error) {
	var records []models.InseminationRecord
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND mother_id = ? AND cancelled_at IS NULL",
			companyID, domain.NormalizeAnimalNumber(motherID)).
		Order("insemination_date DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list inseminations for mother")
	}
	return records, nil
}

// Cancel marks an insemination record as cancelled
func (r *InseminationRepository) Cancel(ctx context.Context, record *models.InseminationRecord) error {
	now := time.Now().UTC()
	record.CancelledAt = &now
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return errors.Wrap(err, "failed to cancel insemination record")
	}
	return nil
}

// NewShortID generates an opaque short identifier for a registration row
func NewShortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
