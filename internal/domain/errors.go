package domain

import (
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// Validation errors.
var (
	ErrEmptyTitle        = apperrors.New(apperrors.KindValidation, "EMPTY_TITLE", "title and description are required")
	ErrEmptyReason       = apperrors.New(apperrors.KindValidation, "EMPTY_REASON", "escalation reason is required")
	ErrEmptyMessage      = apperrors.New(apperrors.KindValidation, "EMPTY_MESSAGE", "update message is required")
	ErrInvalidRating     = apperrors.New(apperrors.KindValidation, "INVALID_RATING", "rating must be between 1 and 5")
	ErrInvalidStatus     = apperrors.New(apperrors.KindValidation, "INVALID_STATUS", "unknown ticket status")
	ErrInvalidUpdateType = apperrors.New(apperrors.KindValidation, "INVALID_UPDATE_TYPE", "unknown update type")
	ErrInvalidHandler    = apperrors.New(apperrors.KindValidation, "INVALID_HANDLER", "handler definition is invalid")
)

// State conflicts.
var (
	ErrAlreadyTerminal          = apperrors.New(apperrors.KindStateConflict, "ALREADY_TERMINAL", "ticket is already resolved or closed")
	ErrFeedbackAlreadySubmitted = apperrors.New(apperrors.KindStateConflict, "FEEDBACK_ALREADY_SUBMITTED", "feedback has already been submitted")
	ErrFeedbackNotAllowed       = apperrors.New(apperrors.KindStateConflict, "FEEDBACK_NOT_ALLOWED", "feedback is only accepted for resolved or closed tickets")
	ErrReopenRequired           = apperrors.New(apperrors.KindStateConflict, "REOPEN_REQUIRED", "closed tickets must be reopened first")
	ErrNotReopenable            = apperrors.New(apperrors.KindStateConflict, "NOT_REOPENABLE", "only resolved or closed tickets can be reopened")
	ErrTicketExists             = apperrors.New(apperrors.KindStateConflict, "TICKET_EXISTS", "ticket already exists")
)

// Resource availability.
var (
	ErrHandlerUnavailable = apperrors.New(apperrors.KindResourceUnavailable, "HANDLER_UNAVAILABLE", "handler is not available")
	ErrNoHandlers         = apperrors.New(apperrors.KindResourceUnavailable, "NO_HANDLERS", "no handlers serve this category")
)

// Lookups and access.
var (
	ErrTicketNotFound  = apperrors.New(apperrors.KindNotFound, "TICKET_NOT_FOUND", "ticket not found")
	ErrHandlerNotFound = apperrors.New(apperrors.KindNotFound, "HANDLER_NOT_FOUND", "handler not found")
	ErrNotTicketOwner  = apperrors.New(apperrors.KindForbidden, "NOT_TICKET_OWNER", "only the ticket owner may do this")
	ErrStaffOnly       = apperrors.New(apperrors.KindForbidden, "STAFF_ONLY", "handler or supervisor role required")
	ErrSupervisorOnly  = apperrors.New(apperrors.KindForbidden, "SUPERVISOR_ONLY", "supervisor role required")
	ErrNotAssignee     = apperrors.New(apperrors.KindForbidden, "NOT_ASSIGNEE", "ticket is assigned to another handler")
	ErrUnknownActor    = apperrors.New(apperrors.KindUnauthorized, "UNKNOWN_ACTOR", "caller identity is missing or invalid")
)
