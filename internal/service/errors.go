package service

import "errors"

// Common service errors
var (
	// ErrBudgetAlreadyGenerated is returned when fan-out already ran for a budget
	ErrBudgetAlreadyGenerated = errors.New("processes already generated for budget")

	// ErrBudgetNotApproved is returned when fan-out is requested for a budget that is not approved
	ErrBudgetNotApproved = errors.New("budget is not approved")

	// ErrProcessFrozen is returned when mutating an archived process
	ErrProcessFrozen = errors.New("process is archived")

	// ErrValidationTaskNotFound is returned when a validation task id is unknown
	ErrValidationTaskNotFound = errors.New("validation task not found")

	// ErrValidationTaskActive is returned when retrying a task that has not finished
	ErrValidationTaskActive = errors.New("validation task still running")

	// ErrValidationStale is returned when a validation result refers to a file the document no longer holds
	ErrValidationStale = errors.New("document changed since validation started")

	// ErrStorageUnavailable is returned when a document upload is attempted without storage
	ErrStorageUnavailable = errors.New("document storage not configured")
)
