package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrSlotTaken    = errors.New("timeslot already reserved")
	ErrStorage      = errors.New("storage failure")
)

// ValidationError lists the request fields that are missing or malformed.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing required fields"
	}
	if len(e.Fields) == 0 {
		return reason
	}
	return fmt.Sprintf("%s: %s", reason, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConflictError is returned when the (date, timeslot) pair is already booked.
type ConflictError struct {
	Date     string
	Timeslot string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("timeslot %s on %s already reserved", e.Timeslot, e.Date)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotTaken
}

// StorageError wraps a backend fault. Callers may retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError wraps err unless it already is a storage error.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
