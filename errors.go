package volshift

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("volshift: no store configured")
	ErrStoreClosed     = errors.New("volshift: store closed")
	ErrMigrationFailed = errors.New("volshift: migration failed")

	// Correlation errors.
	ErrWriteConflict   = errors.New("volshift: correlation record already exists")
	ErrRecordNotFound  = errors.New("volshift: correlation record not found")
	ErrTokenRedeemed   = errors.New("volshift: token already redeemed")
	ErrDLQNotFound     = errors.New("volshift: dlq entry not found")
	ErrUnknownStage    = errors.New("volshift: unknown stage")
	ErrNoStageHandler  = errors.New("volshift: no handler for stage")
	ErrInvalidEvent    = errors.New("volshift: invalid event")
	ErrNoInvocation    = errors.New("volshift: command has no invocation")
	ErrInvalidState    = errors.New("volshift: invalid workflow state")
	ErrMissingOutput   = errors.New("volshift: command output missing required fields")
	ErrExternalCall    = errors.New("volshift: external call failed")
	ErrAttachExhausted = errors.New("volshift: attach retries exhausted")
)
