package domain

import "fmt"

// NotFoundError is returned when a referenced entity is absent.
type NotFoundError struct {
	Entity EntityType
	Key    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// ValidationError reports a payload that fails schema or field constraints.
type ValidationError struct {
	Entity EntityType
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, e.Reason)
}

// MissingKeyError reports an update/delete payload lacking the table's
// primary-key field.
type MissingKeyError struct {
	Table string
	Field string
}

func (e MissingKeyError) Error() string {
	return fmt.Sprintf("missing primary key field %q for %s", e.Field, e.Table)
}

// UnsupportedTableError reports an unknown sync table name.
type UnsupportedTableError struct {
	Table string
}

func (e UnsupportedTableError) Error() string {
	return fmt.Sprintf("unsupported table_name %q", e.Table)
}

// DerivationError reports a derivation rule whose invariant cannot be
// satisfied at write time, e.g. the referenced animal is missing.
type DerivationError struct {
	Rule   string
	Reason string
}

func (e DerivationError) Error() string {
	return fmt.Sprintf("derivation %s: %s", e.Rule, e.Reason)
}
