package entity

import "errors"

var (
	ErrDataNotFound    = errors.New("data not found")
	ErrConflictingData = errors.New("conflicting data")
	ErrInvalidData     = errors.New("invalid data")

	ErrEventRefNotFound  = errors.New("calendar event reference not found")
	ErrSchedulerRunning  = errors.New("scheduler already running")
	ErrSchedulerStopped  = errors.New("scheduler is not running")
	ErrMailNotConfigured = errors.New("smtp credentials not configured")
)
