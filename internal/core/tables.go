package core

import (
	"encoding/json"
	"strconv"

	"ranchcore/pkg/domain"
)

// tableHandler binds a sync table name to its entity codec. Server-owned
// fields are stripped from device payloads before decoding so derivations
// and the acting user always win over client-supplied values.
type tableHandler struct {
	entity   domain.EntityType
	keyField string
	create   func(tx domain.Transaction, actor domain.UserRef, raw json.RawMessage) error
	update   func(tx domain.Transaction, actor domain.UserRef, key string, raw json.RawMessage) error
	remove   func(tx domain.Transaction, key string) error
}

// serverOwnedFields are stripped from every sync payload.
var serverOwnedFields = []string{"created_at", "updated_at", "recorded_by"}

// syncTables is the fixed table-name enumeration accepted by the reconciler.
var syncTables = map[string]tableHandler{
	"animals": {
		entity:   domain.EntityAnimal,
		keyField: "tag_number",
		create: func(tx domain.Transaction, _ domain.UserRef, raw json.RawMessage) error {
			animal, err := decodePayload[domain.Animal](domain.EntityAnimal, raw)
			if err != nil {
				return err
			}
			if err := validateEntity(domain.EntityAnimal, animal); err != nil {
				return err
			}
			_, err = tx.CreateAnimal(animal)
			return err
		},
		update: func(tx domain.Transaction, _ domain.UserRef, key string, raw json.RawMessage) error {
			cleaned, err := stripFields(domain.EntityAnimal, raw, serverOwnedFields...)
			if err != nil {
				return err
			}
			_, err = tx.UpdateAnimal(key, func(a *domain.Animal) error {
				if err := json.Unmarshal(cleaned, a); err != nil {
					return domain.ValidationError{Entity: domain.EntityAnimal, Reason: "malformed record_data: " + err.Error()}
				}
				return validateEntity(domain.EntityAnimal, *a)
			})
			return err
		},
		remove: func(tx domain.Transaction, key string) error {
			return tx.DeleteAnimal(key)
		},
	},
	"breeding_events": {
		entity:   domain.EntityBreedingEvent,
		keyField: "id",
		create: func(tx domain.Transaction, actor domain.UserRef, raw json.RawMessage) error {
			event, err := decodePayload[domain.BreedingEvent](domain.EntityBreedingEvent, raw, "expected_delivery_date")
			if err != nil {
				return err
			}
			if err := validateEntity(domain.EntityBreedingEvent, event); err != nil {
				return err
			}
			event.RecordedBy = &actor.ID
			_, err = tx.CreateBreedingEvent(event)
			return err
		},
		update: func(tx domain.Transaction, _ domain.UserRef, key string, raw json.RawMessage) error {
			// An explicit null clears the projected delivery date so the
			// next save re-derives it; any other client value is discarded.
			strip := serverOwnedFields
			if !fieldIsNull(raw, "expected_delivery_date") {
				strip = append([]string{"expected_delivery_date"}, serverOwnedFields...)
			}
			cleaned, err := stripFields(domain.EntityBreedingEvent, raw, strip...)
			if err != nil {
				return err
			}
			_, err = tx.UpdateBreedingEvent(key, func(b *domain.BreedingEvent) error {
				if err := json.Unmarshal(cleaned, b); err != nil {
					return domain.ValidationError{Entity: domain.EntityBreedingEvent, Reason: "malformed record_data: " + err.Error()}
				}
				return validateEntity(domain.EntityBreedingEvent, *b)
			})
			return err
		},
		remove: func(tx domain.Transaction, key string) error {
			return tx.DeleteBreedingEvent(key)
		},
	},
	"vaccinations": {
		entity:   domain.EntityVaccination,
		keyField: "id",
		create: func(tx domain.Transaction, actor domain.UserRef, raw json.RawMessage) error {
			rec, err := decodePayload[domain.Vaccination](domain.EntityVaccination, raw)
			if err != nil {
				return err
			}
			if err := validateEntity(domain.EntityVaccination, rec); err != nil {
				return err
			}
			rec.RecordedBy = &actor.ID
			_, err = tx.CreateVaccination(rec)
			return err
		},
		update: func(tx domain.Transaction, _ domain.UserRef, key string, raw json.RawMessage) error {
			cleaned, err := stripFields(domain.EntityVaccination, raw, serverOwnedFields...)
			if err != nil {
				return err
			}
			_, err = tx.UpdateVaccination(key, func(v *domain.Vaccination) error {
				if err := json.Unmarshal(cleaned, v); err != nil {
					return domain.ValidationError{Entity: domain.EntityVaccination, Reason: "malformed record_data: " + err.Error()}
				}
				return validateEntity(domain.EntityVaccination, *v)
			})
			return err
		},
		remove: func(tx domain.Transaction, key string) error {
			return tx.DeleteVaccination(key)
		},
	},
	"treatments": {
		entity:   domain.EntityTreatment,
		keyField: "id",
		create: func(tx domain.Transaction, actor domain.UserRef, raw json.RawMessage) error {
			rec, err := decodePayload[domain.Treatment](domain.EntityTreatment, raw)
			if err != nil {
				return err
			}
			if err := validateEntity(domain.EntityTreatment, rec); err != nil {
				return err
			}
			rec.RecordedBy = &actor.ID
			_, err = tx.CreateTreatment(rec)
			return err
		},
		update: func(tx domain.Transaction, _ domain.UserRef, key string, raw json.RawMessage) error {
			cleaned, err := stripFields(domain.EntityTreatment, raw, serverOwnedFields...)
			if err != nil {
				return err
			}
			_, err = tx.UpdateTreatment(key, func(t *domain.Treatment) error {
				if err := json.Unmarshal(cleaned, t); err != nil {
					return domain.ValidationError{Entity: domain.EntityTreatment, Reason: "malformed record_data: " + err.Error()}
				}
				return validateEntity(domain.EntityTreatment, *t)
			})
			return err
		},
		remove: func(tx domain.Transaction, key string) error {
			return tx.DeleteTreatment(key)
		},
	},
	"mortality": {
		entity:   domain.EntityMortality,
		keyField: "id",
		create: func(tx domain.Transaction, actor domain.UserRef, raw json.RawMessage) error {
			rec, err := decodePayload[domain.Mortality](domain.EntityMortality, raw, "age_at_death_months")
			if err != nil {
				return err
			}
			if err := validateEntity(domain.EntityMortality, rec); err != nil {
				return err
			}
			rec.RecordedBy = &actor.ID
			_, err = tx.CreateMortality(rec)
			return err
		},
		update: func(tx domain.Transaction, _ domain.UserRef, key string, raw json.RawMessage) error {
			cleaned, err := stripFields(domain.EntityMortality, raw, append([]string{"age_at_death_months"}, serverOwnedFields...)...)
			if err != nil {
				return err
			}
			_, err = tx.UpdateMortality(key, func(m *domain.Mortality) error {
				if err := json.Unmarshal(cleaned, m); err != nil {
					return domain.ValidationError{Entity: domain.EntityMortality, Reason: "malformed record_data: " + err.Error()}
				}
				return validateEntity(domain.EntityMortality, *m)
			})
			return err
		},
		remove: func(tx domain.Transaction, key string) error {
			return tx.DeleteMortality(key)
		},
	},
	"herd_counts": {
		entity:   domain.EntityHerdCount,
		keyField: "id",
		create: func(tx domain.Transaction, actor domain.UserRef, raw json.RawMessage) error {
			rec, err := decodePayload[domain.HerdCount](domain.EntityHerdCount, raw, "difference")
			if err != nil {
				return err
			}
			if err := validateEntity(domain.EntityHerdCount, rec); err != nil {
				return err
			}
			rec.RecordedBy = &actor.ID
			_, err = tx.CreateHerdCount(rec)
			return err
		},
		update: func(tx domain.Transaction, _ domain.UserRef, key string, raw json.RawMessage) error {
			cleaned, err := stripFields(domain.EntityHerdCount, raw, append([]string{"difference"}, serverOwnedFields...)...)
			if err != nil {
				return err
			}
			_, err = tx.UpdateHerdCount(key, func(h *domain.HerdCount) error {
				if err := json.Unmarshal(cleaned, h); err != nil {
					return domain.ValidationError{Entity: domain.EntityHerdCount, Reason: "malformed record_data: " + err.Error()}
				}
				return validateEntity(domain.EntityHerdCount, *h)
			})
			return err
		},
		remove: func(tx domain.Transaction, key string) error {
			return tx.DeleteHerdCount(key)
		},
	},
	"movement_logs": {
		entity:   domain.EntityMovementLog,
		keyField: "id",
		create: func(tx domain.Transaction, actor domain.UserRef, raw json.RawMessage) error {
			rec, err := decodePayload[domain.MovementLog](domain.EntityMovementLog, raw)
			if err != nil {
				return err
			}
			if err := validateEntity(domain.EntityMovementLog, rec); err != nil {
				return err
			}
			rec.RecordedBy = &actor.ID
			_, err = tx.CreateMovementLog(rec)
			return err
		},
		update: func(tx domain.Transaction, _ domain.UserRef, key string, raw json.RawMessage) error {
			cleaned, err := stripFields(domain.EntityMovementLog, raw, serverOwnedFields...)
			if err != nil {
				return err
			}
			_, err = tx.UpdateMovementLog(key, func(m *domain.MovementLog) error {
				if err := json.Unmarshal(cleaned, m); err != nil {
					return domain.ValidationError{Entity: domain.EntityMovementLog, Reason: "malformed record_data: " + err.Error()}
				}
				return validateEntity(domain.EntityMovementLog, *m)
			})
			return err
		},
		remove: func(tx domain.Transaction, key string) error {
			return tx.DeleteMovementLog(key)
		},
	},
	"rfid_scan_logs": {
		entity:   domain.EntityRFIDScanLog,
		keyField: "id",
		create: func(tx domain.Transaction, _ domain.UserRef, raw json.RawMessage) error {
			rec, err := decodePayload[domain.RFIDScanLog](domain.EntityRFIDScanLog, raw)
			if err != nil {
				return err
			}
			if err := validateEntity(domain.EntityRFIDScanLog, rec); err != nil {
				return err
			}
			_, err = tx.CreateRFIDScanLog(rec)
			return err
		},
		update: func(tx domain.Transaction, _ domain.UserRef, key string, raw json.RawMessage) error {
			cleaned, err := stripFields(domain.EntityRFIDScanLog, raw, serverOwnedFields...)
			if err != nil {
				return err
			}
			_, err = tx.UpdateRFIDScanLog(key, func(r *domain.RFIDScanLog) error {
				if err := json.Unmarshal(cleaned, r); err != nil {
					return domain.ValidationError{Entity: domain.EntityRFIDScanLog, Reason: "malformed record_data: " + err.Error()}
				}
				return validateEntity(domain.EntityRFIDScanLog, *r)
			})
			return err
		},
		remove: func(tx domain.Transaction, key string) error {
			return tx.DeleteRFIDScanLog(key)
		},
	},
}

// stripFields removes named keys from a JSON object payload.
func stripFields(entity domain.EntityType, raw json.RawMessage, fields ...string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, domain.ValidationError{Entity: entity, Reason: "record_data is not a JSON object"}
	}
	for _, f := range fields {
		delete(obj, f)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, domain.ValidationError{Entity: entity, Reason: "record_data cannot be re-encoded"}
	}
	return out, nil
}

// decodePayload strips server-owned fields plus extras and decodes the
// remainder into the entity type.
func decodePayload[T any](entity domain.EntityType, raw json.RawMessage, extra ...string) (T, error) {
	var zero T
	cleaned, err := stripFields(entity, raw, append(append([]string(nil), serverOwnedFields...), extra...)...)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return zero, domain.ValidationError{Entity: entity, Reason: "malformed record_data: " + err.Error()}
	}
	return out, nil
}

// payloadKey extracts the table's primary-key field from a raw payload.
// String and numeric keys are accepted; absence or an empty value yields a
// MissingKeyError.
func payloadKey(table string, handler tableHandler, raw json.RawMessage) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", domain.ValidationError{Entity: handler.entity, Reason: "record_data is not a JSON object"}
	}
	field, ok := obj[handler.keyField]
	if !ok {
		return "", domain.MissingKeyError{Table: table, Field: handler.keyField}
	}
	var str string
	if err := json.Unmarshal(field, &str); err == nil {
		if str == "" {
			return "", domain.MissingKeyError{Table: table, Field: handler.keyField}
		}
		return str, nil
	}
	var num float64
	if err := json.Unmarshal(field, &num); err == nil {
		return strconv.FormatFloat(num, 'f', -1, 64), nil
	}
	return "", domain.MissingKeyError{Table: table, Field: handler.keyField}
}

// fieldIsNull reports whether the payload names the field with an explicit
// JSON null.
func fieldIsNull(raw json.RawMessage, field string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	v, ok := obj[field]
	return ok && string(v) == "null"
}
