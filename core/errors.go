package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorUnauthenticated    = "DEVICE_UNAUTHENTICATED"
	ServiceErrorInvalidArgument    = "DEVICE_INVALID_ARGUMENT"
	ServiceErrorNotFound           = "DEVICE_NOT_FOUND"
	ServiceErrorPermissionDenied   = "DEVICE_PERMISSION_DENIED"
	ServiceErrorAlreadyExists      = "DEVICE_ALREADY_EXISTS"
	ServiceErrorFailedPrecondition = "DEVICE_FAILED_PRECONDITION"
	ServiceErrorResourceExhausted  = "DEVICE_RESOURCE_EXHAUSTED"
	ServiceErrorInternal           = "DEVICE_INTERNAL_ERROR"
)

var (
	ErrDeviceNotFound    = errors.New("core: device not found")
	ErrUserNotFound      = errors.New("core: user not found")
	ErrDeviceExists      = errors.New("core: device already exists")
	ErrClaimCodeMismatch = errors.New("core: claim code mismatch")
	ErrDeviceClaimed     = errors.New("core: device already claimed")
	ErrDeviceNotOwned    = errors.New("core: device not owned by caller")
)

// User-facing messages for the claim flow. Callers surface these verbatim.
const (
	messageUnauthenticated  = "You must sign in to claim a device."
	messageMissingArguments = "Device id and claim code are required."
	messageDeviceNotFound   = "The device does not exist."
	messageClaimCodeInvalid = "The claim code is incorrect."
	messageTooManyAttempts  = "Too many failed claim attempts, try again later."
)

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return newServiceError(messageDeviceNotFound, goerrors.CategoryNotFound, ServiceErrorNotFound)
	case errors.Is(err, ErrUserNotFound):
		return newServiceError("The user does not exist.", goerrors.CategoryNotFound, ServiceErrorNotFound)
	case errors.Is(err, ErrClaimCodeMismatch):
		return newServiceError(messageClaimCodeInvalid, goerrors.CategoryAuthz, ServiceErrorPermissionDenied)
	case errors.Is(err, ErrDeviceNotOwned):
		return newServiceError("The device is not owned by the caller.", goerrors.CategoryAuthz, ServiceErrorPermissionDenied)
	case errors.Is(err, ErrDeviceExists):
		return newServiceError("A device with this id already exists.", goerrors.CategoryConflict, ServiceErrorAlreadyExists)
	case errors.Is(err, ErrDeviceClaimed):
		return newServiceError("The device is already claimed.", goerrors.CategoryOperation, ServiceErrorFailedPrecondition)
	}

	// Driver and store errors without a sentinel fall through to go-errors'
	// default mappers and end up internal.
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	if mapped == nil {
		return internalError(err.Error())
	}
	if !strings.HasPrefix(mapped.TextCode, "DEVICE_") {
		mapped.TextCode = defaultServiceTextCode(mapped.Category)
		mapped.Code = serviceHTTPStatus(mapped.Category)
	}
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func unauthenticatedError(message string) *goerrors.Error {
	return newServiceError(message, goerrors.CategoryAuth, ServiceErrorUnauthenticated)
}

func invalidArgumentError(message string, fields ...string) *goerrors.Error {
	err := newServiceError(message, goerrors.CategoryBadInput, ServiceErrorInvalidArgument)
	if len(fields) > 0 {
		err.WithMetadata(map[string]any{"fields": append([]string(nil), fields...)})
	}
	return err
}

func resourceExhaustedError(message string) *goerrors.Error {
	return newServiceError(message, goerrors.CategoryRateLimit, ServiceErrorResourceExhausted)
}

func internalError(message string) *goerrors.Error {
	return newServiceError(message, goerrors.CategoryInternal, ServiceErrorInternal)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorInvalidArgument
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryAuth:
		return ServiceErrorUnauthenticated
	case goerrors.CategoryAuthz:
		return ServiceErrorPermissionDenied
	case goerrors.CategoryConflict:
		return ServiceErrorAlreadyExists
	case goerrors.CategoryOperation:
		return ServiceErrorFailedPrecondition
	case goerrors.CategoryRateLimit:
		return ServiceErrorResourceExhausted
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusPreconditionFailed
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsClaimRejection reports whether err means the supplied device/code pair
// was refused, as opposed to an infrastructure failure.
func IsClaimRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrClaimCodeMismatch) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == ServiceErrorNotFound || richErr.TextCode == ServiceErrorPermissionDenied
	}
	return false
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrDeviceNotFound) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == ServiceErrorNotFound
	}
	return false
}
