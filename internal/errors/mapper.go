package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MapExternal maps provider/storage errors onto the engine taxonomy.
func MapExternal(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", ErrTransient)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "quota"), strings.Contains(errStr, "too many requests"):
		return fmt.Errorf("rate limited: %w", ErrTransient)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return fmt.Errorf("request timeout: %w", ErrTransient)

	case strings.Contains(errStr, "network"), strings.Contains(errStr, "connection"), strings.Contains(errStr, "unreachable"):
		return fmt.Errorf("network error: %w", ErrTransient)

	case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "busy"):
		return fmt.Errorf("store contention: %w", ErrTransient)

	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("resource not found: %w", ErrUnknownSession)

	case strings.Contains(errStr, "invalid input"), strings.Contains(errStr, "bad request"):
		return fmt.Errorf("invalid request: %w", ErrInvalidInput)

	default:
		return fmt.Errorf("internal error: %w", ErrInternal)
	}
}

// IsRetryable reports whether an error is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrStorage) || errors.Is(err, ErrComplianceWrite)
}

// Category returns the taxonomy name for an error, for logs and audit rows.
func Category(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnknownSession):
		return "UnknownSession"
	case errors.Is(err, ErrSessionEnded):
		return "SessionEnded"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrComplianceWrite):
		return "ComplianceWriteFailure"
	case errors.Is(err, ErrGeneration):
		return "GenerationFailure"
	case errors.Is(err, ErrStorage):
		return "StorageFailure"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrTransient):
		return "Transient"
	case errors.Is(err, ErrInternal):
		return "Internal"
	default:
		return "Unknown"
	}
}

// Wrap wraps an error with context while preserving its category.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// UnknownSession wraps a message as an unknown-session error.
func UnknownSession(sessionID string) error {
	return fmt.Errorf("session %s: %w", sessionID, ErrUnknownSession)
}

// InvalidTransition describes an unreachable status change.
func InvalidTransition(from, to string) error {
	return fmt.Errorf("status %s -> %s: %w", from, to, ErrInvalidTransition)
}

// InvalidInput wraps a message as an invalid-input error.
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Storage wraps a persistence failure.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%v: %w", err, ErrStorage)
}

// ComplianceWrite wraps a compliance persistence failure.
func ComplianceWrite(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%v: %w", err, ErrComplianceWrite)
}

// Generation wraps a language-generation failure.
func Generation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%v: %w", err, ErrGeneration)
}

// IsCategory checks whether err belongs to the given sentinel category.
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}
