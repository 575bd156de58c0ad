package gallery

import (
	"context"
	"errors"
	"fmt"
)

// Error types
var (
	// ErrUnauthorized indicates a bad or missing operator credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates a tenant or asset reference does not exist
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded indicates the tenant-count or per-tenant asset cap was reached
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrUnsupportedType indicates a content type outside the allow-list
	ErrUnsupportedType = errors.New("unsupported content type")

	// ErrFileTooLarge indicates a file above the configured byte ceiling
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidArgument indicates a malformed request value such as an empty tenant name
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBackendUnavailable indicates the storage dependency could not be reached or is unconfigured
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Kind is the stable classification of an error.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindUnsupportedType    Kind = "unsupported_type"
	KindFileTooLarge       Kind = "file_too_large"
	KindInvalidArgument    Kind = "invalid_argument"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindInternal           Kind = "internal"
)

// KindOf classifies err. Errors that match no sentinel are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrUnsupportedType):
		return KindUnsupportedType
	case errors.Is(err, ErrFileTooLarge):
		return KindFileTooLarge
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return KindBackendUnavailable
	default:
		return KindInternal
	}
}

// Retryable reports whether repeating the operation may succeed.
func Retryable(err error) bool {
	return KindOf(err) == KindBackendUnavailable
}

// TenantError represents an error related to a tenant-scoped operation
type TenantError struct {
	TenantID string
	Op       string
	Err      error
}

func (e *TenantError) Error() string {
	return fmt.Sprintf("%s failed for tenant %s: %v", e.Op, e.TenantID, e.Err)
}

func (e *TenantError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err so that it classifies as KindBackendUnavailable
// while keeping the original cause in the chain.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
