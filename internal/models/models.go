package models

import (
	"time"

	"gorm.io/gorm"
)

// Animal status values held in snapshots and registrations
const (
	StatusAlive   = "ALIVE"
	StatusDead    = "DEAD"
	StatusSold    = "SOLD"
	StatusDeleted = "DELETED"
)

// Sentinel father values written by the assignment engine
const (
	FatherRepaso  = "REPASO"
	FatherUnknown = "UNKNOWN"
)

// Event represents an immutable domain event in the database. Rows are only
// ever inserted; corrections are modeled as new events carrying old/new pairs.
type Event struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventID      string    `gorm:"uniqueIndex" json:"event_id"`
	AnimalID     *int64    `gorm:"index" json:"animal_id"`
	AnimalNumber string    `gorm:"index:idx_events_company_number" json:"animal_number"`
	CompanyID    int64     `gorm:"index:idx_events_company_number" json:"company_id"`
	UserID       int64     `json:"user_id"`
	EventType    string    `json:"event_type"`
	EventVersion int       `json:"event_version"`
	Payload      []byte    `json:"payload"`
	Metadata     []byte    `json:"metadata"`
	EventTime    time.Time `gorm:"index" json:"event_time"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnimalSnapshot is the current derived state of one animal, rebuilt by
// folding its event history. It is never the source of truth.
type AnimalSnapshot struct {
	AnimalID             int64      `gorm:"primaryKey;autoIncrement:false" json:"animal_id"`
	CompanyID            int64      `gorm:"primaryKey;autoIncrement:false" json:"company_id"`
	AnimalNumber         string     `gorm:"index:idx_snapshots_company_number" json:"animal_number"`
	BirthDate            *time.Time `json:"birth_date"`
	MotherID             *string    `json:"mother_id"`
	FatherID             *string    `json:"father_id"`
	CurrentStatus        string     `json:"current_status"`
	CurrentWeight        *float64   `json:"current_weight"`
	WeaningWeight        *float64   `json:"weaning_weight"`
	Gender               string     `json:"gender"`
	Color                *string    `json:"color"`
	DeathDate            *time.Time `json:"death_date"`
	SoldDate             *time.Time `json:"sold_date"`
	LastInseminationDate *time.Time `json:"last_insemination_date"`
	InseminationCount    int        `json:"insemination_count"`
	Notes                *string    `json:"notes"`
	NotesMother          *string    `json:"notes_mother"`
	RpAnimal             *string    `json:"rp_animal"`
	RpMother             *string    `json:"rp_mother"`
	MotherWeight         *float64   `json:"mother_weight"`
	ScrotalCircumference *float64   `json:"scrotal_circumference"`
	InseminationRoundID  *int64     `json:"insemination_round_id"`
	InseminationIdent    *string    `gorm:"column:insemination_identifier" json:"insemination_identifier"`
	AnimalIDV            *string    `gorm:"column:animal_idv" json:"animal_idv"`
	LastEventID          uint       `json:"last_event_id"`
	LastEventTime        time.Time  `json:"last_event_time"`
	SnapshotVersion      int        `json:"snapshot_version"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Registration is the flat, query-friendly projection of a snapshot for
// animals that were explicitly registered. It mirrors snapshot values under
// the legacy export vocabulary and is rebuilt on every snapshot update.
type Registration struct {
	ID                   int64      `gorm:"primaryKey" json:"id"`
	ShortID              string     `gorm:"uniqueIndex" json:"short_id"`
	AnimalNumber         string     `gorm:"index:idx_registrations_company_number" json:"animal_number"`
	CompanyID            int64      `gorm:"index:idx_registrations_company_number" json:"company_id"`
	BornDate             *time.Time `json:"born_date"`
	MotherID             *string    `json:"mother_id"`
	FatherID             *string    `json:"father_id"`
	Status               string     `json:"status"`
	Weight               *float64   `json:"weight"`
	WeaningWeight        *float64   `json:"weaning_weight"`
	Gender               string     `json:"gender"`
	Color                *string    `json:"color"`
	DeathDate            *time.Time `json:"death_date"`
	SoldDate             *time.Time `json:"sold_date"`
	Notes                *string    `json:"notes"`
	NotesMother          *string    `json:"notes_mother"`
	RpAnimal             *string    `json:"rp_animal"`
	RpMother             *string    `json:"rp_mother"`
	MotherWeight         *float64   `json:"mother_weight"`
	ScrotalCircumference *float64   `json:"scrotal_circumference"`
	AnimalIDV            *string    `gorm:"column:animal_idv" json:"animal_idv"`
	CreatedBy            int64      `json:"created_by"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// InseminationRecord is an independent record of an insemination, consumed by
// the father assignment engine as read-only input.
type InseminationRecord struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	MotherID               string     `gorm:"index:idx_inseminations_company_mother" json:"mother_id"`
	BullID                 string     `json:"bull_id"`
	InseminationDate       time.Time  `json:"insemination_date"`
	InseminationIdentifier string     `json:"insemination_identifier"`
	InseminationRoundID    *int64     `json:"insemination_round_id"`
	CompanyID              int64      `gorm:"index:idx_inseminations_company_mother" json:"company_id"`
	CreatedBy              int64      `json:"created_by"`
	CancelledAt            *time.Time `json:"cancelled_at"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// SetupModels runs migrations for all models
func SetupModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Event{},
		&AnimalSnapshot{},
		&Registration{},
		&InseminationRecord{},
	)
}
