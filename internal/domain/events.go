package domain

import (
	"time"
)

// EventType constants
const (
	// Genesis events
	BirthRegistered  = "V1_BIRTH_REGISTERED"
	MotherRegistered = "V1_MOTHER_REGISTERED"
	FatherRegistered = "V1_FATHER_REGISTERED"

	// Lifecycle events
	DeathRecorded = "V1_DEATH_RECORDED"
	AnimalDeleted = "V1_ANIMAL_DELETED"

	// Measurement events
	WeightRecorded               = "V1_WEIGHT_RECORDED"
	CurrentWeightRecorded        = "V1_CURRENT_WEIGHT_RECORDED"
	WeaningWeightRecorded        = "V1_WEANING_WEIGHT_RECORDED"
	MotherWeightRecorded         = "V1_MOTHER_WEIGHT_RECORDED"
	ScrotalCircumferenceRecorded = "V1_SCROTAL_CIRCUMFERENCE_RECORDED"

	// Parentage events
	MotherAssigned = "V1_MOTHER_ASSIGNED"
	FatherAssigned = "V1_FATHER_ASSIGNED"

	// Field correction events
	StatusChanged         = "V1_STATUS_CHANGED"
	GenderCorrected       = "V1_GENDER_CORRECTED"
	ColorRecorded         = "V1_COLOR_RECORDED"
	AnimalNumberCorrected = "V1_ANIMAL_NUMBER_CORRECTED"
	BirthDateCorrected    = "V1_BIRTH_DATE_CORRECTED"
	NotesUpdated          = "V1_NOTES_UPDATED"
	MotherNotesUpdated    = "V1_MOTHER_NOTES_UPDATED"
	RpAnimalUpdated       = "V1_RP_ANIMAL_UPDATED"
	RpMotherUpdated       = "V1_RP_MOTHER_UPDATED"
	AnimalIDVUpdated      = "V1_ANIMAL_IDV_UPDATED"

	// Insemination events
	InseminationRecorded  = "V1_INSEMINATION_RECORDED"
	InseminationCancelled = "V1_INSEMINATION_CANCELLED"
)

// DateLayout is the wire format for date-valued correction payloads
const DateLayout = "2006-01-02"

// BirthRegisteredPayload is the genesis payload for a registered calf. It
// carries the full submitted state.
type BirthRegisteredPayload struct {
	AnimalNumber         string     `json:"animal_number"`
	BirthDate            *time.Time `json:"birth_date"`
	MotherID             *string    `json:"mother_id"`
	FatherID             *string    `json:"father_id"`
	Gender               string     `json:"gender"`
	Status               string     `json:"status"`
	Weight               *float64   `json:"weight"`
	WeaningWeight        *float64   `json:"weaning_weight"`
	Color                *string    `json:"color"`
	Notes                *string    `json:"notes"`
	NotesMother          *string    `json:"notes_mother"`
	RpAnimal             *string    `json:"rp_animal"`
	RpMother             *string    `json:"rp_mother"`
	MotherWeight         *float64   `json:"mother_weight"`
	ScrotalCircumference *float64   `json:"scrotal_circumference"`
	AnimalIDV            *string    `json:"animal_idv"`
}

// ParentRegisteredPayload is the genesis payload for a mother or father that
// has no birth registration of its own.
type ParentRegisteredPayload struct {
	AnimalNumber string   `json:"animal_number"`
	Gender       string   `json:"gender"`
	Status       string   `json:"status"`
	Weight       *float64 `json:"weight"`
	Color        *string  `json:"color"`
	Notes        *string  `json:"notes"`
	RpAnimal     *string  `json:"rp_animal"`
}

// DeathRecordedPayload records the death of an animal
type DeathRecordedPayload struct {
	DeathDate time.Time `json:"death_date"`
	Cause     *string   `json:"cause"`
}

// MeasurementPayload carries a numeric measurement correction
type MeasurementPayload struct {
	OldValue *float64 `json:"old_value"`
	NewValue *float64 `json:"new_value"`
}

// ParentAssignedPayload assigns a mother or father by animal number
type ParentAssignedPayload struct {
	OldValue *string `json:"old_value"`
	NewValue string  `json:"new_value"`
}

// FieldChangePayload is the generic single-field overwrite payload
type FieldChangePayload struct {
	FieldName string  `json:"field_name"`
	OldValue  *string `json:"old_value"`
	NewValue  *string `json:"new_value"`
}

// InseminationRecordedPayload records an insemination against the mother
type InseminationRecordedPayload struct {
	InseminationDate       time.Time `json:"insemination_date"`
	InseminationIdentifier *string   `json:"insemination_identifier"`
	InseminationRoundID    *int64    `json:"insemination_round_id"`
	BullID                 *string   `json:"bull_id"`
}

// InseminationCancelledPayload cancels a previously recorded insemination
type InseminationCancelledPayload struct {
	InseminationDate time.Time `json:"insemination_date"`
	Reason           *string   `json:"reason"`
}
