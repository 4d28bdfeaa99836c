package domain

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/models"
)

// Fold applies one event to a snapshot state. It is the single deterministic
// reducer behind projection: a snapshot must always equal the result of
// folding the animal's full event sequence, in (event_time, id) order, from
// an empty state. Unknown event types advance the provenance markers but do
// not touch state.
func Fold(snap *models.AnimalSnapshot, event models.Event) error {
	switch event.EventType {
	case BirthRegistered:
		var p BirthRegisteredPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return errors.Wrap(err, "failed to unmarshal birth payload")
		}
		applyBirthRegistered(snap, p)

	case MotherRegistered, FatherRegistered:
		var p ParentRegisteredPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return errors.Wrap(err, "failed to unmarshal parent payload")
		}
		applyParentRegistered(snap, p)

	case DeathRecorded:
		var p DeathRecordedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return errors.Wrap(err, "failed to unmarshal death payload")
		}
		snap.CurrentStatus = models.StatusDead
		deathDate := p.DeathDate
		snap.DeathDate = &deathDate

	case AnimalDeleted:
		// Tombstone marker, not a row removal
		snap.CurrentStatus = models.StatusDeleted

	case WeightRecorded, CurrentWeightRecorded:
		p, err := unmarshalMeasurement(event.Payload)
		if err != nil {
			return err
		}
		snap.CurrentWeight = p.NewValue

	case WeaningWeightRecorded:
		p, err := unmarshalMeasurement(event.Payload)
		if err != nil {
			return err
		}
		snap.WeaningWeight = p.NewValue

	case MotherWeightRecorded:
		p, err := unmarshalMeasurement(event.Payload)
		if err != nil {
			return err
		}
		snap.MotherWeight = p.NewValue

	case ScrotalCircumferenceRecorded:
		p, err := unmarshalMeasurement(event.Payload)
		if err != nil {
			return err
		}
		snap.ScrotalCircumference = p.NewValue

	case MotherAssigned:
		var p ParentAssignedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return errors.Wrap(err, "failed to unmarshal mother assignment payload")
		}
		value := p.NewValue
		snap.MotherID = &value

	case FatherAssigned:
		var p ParentAssignedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return errors.Wrap(err, "failed to unmarshal father assignment payload")
		}
		value := p.NewValue
		snap.FatherID = &value

	case StatusChanged, GenderCorrected, ColorRecorded, AnimalNumberCorrected,
		BirthDateCorrected, NotesUpdated, MotherNotesUpdated,
		RpAnimalUpdated, RpMotherUpdated, AnimalIDVUpdated:
		var p FieldChangePayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return errors.Wrap(err, "failed to unmarshal field change payload")
		}
		if err := applyFieldChange(snap, p); err != nil {
			return err
		}

	case InseminationRecorded:
		var p InseminationRecordedPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return errors.Wrap(err, "failed to unmarshal insemination payload")
		}
		snap.InseminationCount++
		date := p.InseminationDate
		snap.LastInseminationDate = &date
		snap.InseminationIdent = p.InseminationIdentifier
		snap.InseminationRoundID = p.InseminationRoundID

	case InseminationCancelled:
		// The count floors at zero; last_insemination_date is a historical
		// fact and stays as-is.
		if snap.InseminationCount > 0 {
			snap.InseminationCount--
		}

	default:
		log.Warn().
			Str("eventType", event.EventType).
			Str("animalNumber", event.AnimalNumber).
			Msg("Skipping unknown event type during fold")
	}

	// Provenance markers advance for every event, including skipped ones
	snap.LastEventID = event.ID
	snap.LastEventTime = event.EventTime
	return nil
}

func applyBirthRegistered(snap *models.AnimalSnapshot, p BirthRegisteredPayload) {
	if p.AnimalNumber != "" {
		snap.AnimalNumber = NormalizeAnimalNumber(p.AnimalNumber)
	}
	snap.BirthDate = p.BirthDate
	snap.MotherID = p.MotherID
	snap.FatherID = p.FatherID
	snap.Gender = p.Gender
	if p.Status != "" {
		snap.CurrentStatus = p.Status
	} else {
		snap.CurrentStatus = models.StatusAlive
	}
	snap.CurrentWeight = p.Weight
	snap.WeaningWeight = p.WeaningWeight
	snap.Color = p.Color
	snap.Notes = p.Notes
	snap.NotesMother = p.NotesMother
	snap.RpAnimal = p.RpAnimal
	snap.RpMother = p.RpMother
	snap.MotherWeight = p.MotherWeight
	snap.ScrotalCircumference = p.ScrotalCircumference
	snap.AnimalIDV = p.AnimalIDV
}

func applyParentRegistered(snap *models.AnimalSnapshot, p ParentRegisteredPayload) {
	if p.AnimalNumber != "" {
		snap.AnimalNumber = NormalizeAnimalNumber(p.AnimalNumber)
	}
	snap.Gender = p.Gender
	if p.Status != "" {
		snap.CurrentStatus = p.Status
	} else {
		snap.CurrentStatus = models.StatusAlive
	}
	snap.CurrentWeight = p.Weight
	snap.Color = p.Color
	snap.Notes = p.Notes
	snap.RpAnimal = p.RpAnimal
}

// applyFieldChange is the generic single-field overwrite used by the
// correction events. Date-valued fields travel as YYYY-MM-DD strings.
func applyFieldChange(snap *models.AnimalSnapshot, p FieldChangePayload) error {
	switch p.FieldName {
	case "current_status", "status":
		if p.NewValue != nil {
			snap.CurrentStatus = *p.NewValue
		}
	case "gender":
		if p.NewValue != nil {
			snap.Gender = *p.NewValue
		}
	case "color":
		snap.Color = p.NewValue
	case "animal_number":
		if p.NewValue != nil {
			snap.AnimalNumber = NormalizeAnimalNumber(*p.NewValue)
		}
	case "birth_date":
		date, err := parseDateValue(p.NewValue)
		if err != nil {
			return errors.Wrap(err, "invalid birth_date value")
		}
		snap.BirthDate = date
	case "sold_date":
		date, err := parseDateValue(p.NewValue)
		if err != nil {
			return errors.Wrap(err, "invalid sold_date value")
		}
		snap.SoldDate = date
	case "notes":
		snap.Notes = p.NewValue
	case "notes_mother":
		snap.NotesMother = p.NewValue
	case "rp_animal":
		snap.RpAnimal = p.NewValue
	case "rp_mother":
		snap.RpMother = p.NewValue
	case "animal_idv":
		snap.AnimalIDV = p.NewValue
	default:
		log.Warn().
			Str("fieldName", p.FieldName).
			Msg("Skipping unknown field in field change payload")
	}
	return nil
}

func unmarshalMeasurement(payload []byte) (MeasurementPayload, error) {
	var p MeasurementPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, errors.Wrap(err, "failed to unmarshal measurement payload")
	}
	return p, nil
}

func parseDateValue(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	date, err := time.Parse(DateLayout, *value)
	if err != nil {
		return nil, err
	}
	return &date, nil
}
