// Package id defines the identity type for taskq jobs.
//
// Job ids are UUIDv7 values: globally unique, K-sortable by creation time,
// and rendered in the canonical 36-character form so they are URL-safe and
// interchangeable with ids produced by other queue front ends.
package id

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies a job.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner uuid.UUID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// JobID is the identifier of a job.
type JobID = ID

// New generates a new time-ordered unique ID. It falls back to a random
// (v4) UUID if the v7 generator fails to read its clock sequence.
func New() ID {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return ID{inner: u, valid: true}
}

// NewJobID generates a new unique job ID.
func NewJobID() JobID { return New() }

// Parse parses the canonical string form of an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if u == uuid.Nil {
		return Nil, fmt.Errorf("id: parse %q: nil uuid", s)
	}

	return ID{inner: u, valid: true}, nil
}

// ParseJobID parses a job ID.
func ParseJobID(s string) (JobID, error) { return Parse(s) }

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// String returns the canonical string form, or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// UUID returns the underlying UUID.
func (i ID) UUID() uuid.UUID { return i.inner }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
