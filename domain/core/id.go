package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	CheckID ID
	BatchID ID
	JobID   ID
)

func (id CheckID) String() string { return ID(id).String() }
func (id BatchID) String() string { return ID(id).String() }
func (id JobID) String() string   { return ID(id).String() }

// NewCheckID identifies one model-check run
func NewCheckID() CheckID { return CheckID(NewID()) }

// NewBatchID identifies one calibration batch
func NewBatchID() BatchID { return BatchID(NewID()) }

// ParseCheckID parses a string into CheckID
func ParseCheckID(s string) (CheckID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: check ID cannot be empty", ErrInvalidInput)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: check ID %q is not a UUID", ErrInvalidInput, s)
	}
	return CheckID(s), nil
}

// ParseJobID parses a caller-supplied calibration job name
func ParseJobID(s string) (JobID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: job ID cannot be empty", ErrInvalidInput)
	}
	return JobID(strings.TrimSpace(s)), nil
}
