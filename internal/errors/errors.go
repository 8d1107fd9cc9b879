package errors

import (
	"errors"
)

// Sentinel errors for the engine's failure categories.
var (
	// ErrUnknownSession - an operation other than get-or-create referenced a
	// session that does not exist. Client error, never fatal to the process.
	ErrUnknownSession = errors.New("unknown session")

	// ErrSessionEnded - the session is terminal; its state can no longer change.
	ErrSessionEnded = errors.New("session ended")

	// ErrInvalidTransition - requested session status is unreachable from the
	// current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrComplianceWrite - a compliance event could not be durably recorded.
	// Fatal for the turn after bounded retries; never silently dropped.
	ErrComplianceWrite = errors.New("compliance write failure")

	// ErrGeneration - the language-generation capability failed or timed out.
	ErrGeneration = errors.New("generation failure")

	// ErrStorage - turn/session persistence failure. Retried with backoff,
	// then the turn is aborted end-to-end.
	ErrStorage = errors.New("storage failure")

	// ErrInvalidInput - malformed request at the engine boundary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient - transient external error, safe to retry.
	ErrTransient = errors.New("transient error")

	// ErrInternal - anything that does not map to a known category.
	ErrInternal = errors.New("internal error")
)
