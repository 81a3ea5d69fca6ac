package models

import (
	"errors"
	"fmt"
)

// ErrUniquenessViolation is matched by every UniquenessViolationError.
var ErrUniquenessViolation = errors.New("uniqueness violation")

// Constraint names of the store's uniqueness indexes.
const (
	ConstraintTeacherCell = "uq_scheduled_class_teachers_cell"
	ConstraintRoomCell    = "uq_scheduled_classes_room_cell"
	ConstraintSectionCell = "uq_scheduled_classes_section_cell"
)

// UniquenessViolationError reports a write rejected by one of the store's uniqueness indexes.
type UniquenessViolationError struct {
	Constraint string
	Err        error
}

// Error implements the error interface.
func (e *UniquenessViolationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("uniqueness violation on %s: %v", e.Constraint, e.Err)
}

// Unwrap returns the driver error.
func (e *UniquenessViolationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrUniquenessViolation.
func (e *UniquenessViolationError) Is(target error) bool {
	return target == ErrUniquenessViolation
}
