package callable

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-devices/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	StatusUnauthenticated    = "UNAUTHENTICATED"
	StatusInvalidArgument    = "INVALID_ARGUMENT"
	StatusNotFound           = "NOT_FOUND"
	StatusPermissionDenied   = "PERMISSION_DENIED"
	StatusAlreadyExists      = "ALREADY_EXISTS"
	StatusFailedPrecondition = "FAILED_PRECONDITION"
	StatusResourceExhausted  = "RESOURCE_EXHAUSTED"
	StatusInternal           = "INTERNAL"
)

const internalMessage = "Internal error."

// Request is the callable envelope: {"data": {...}}.
type Request struct {
	Data json.RawMessage `json:"data"`
}

type Response struct {
	Result any `json:"result"`
}

type ErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// StatusForError resolves the callable status, HTTP code and caller facing
// message for err. Internal failures never expose the underlying message.
func StatusForError(err error) (string, int, string) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return StatusInternal, http.StatusInternalServerError, internalMessage
	}
	status := statusForTextCode(richErr.TextCode)
	if status == StatusInternal {
		return StatusInternal, http.StatusInternalServerError, internalMessage
	}
	message := strings.TrimSpace(richErr.Message)
	if message == "" {
		message = strings.ToLower(strings.ReplaceAll(status, "_", " "))
	}
	return status, httpCodeForStatus(status), message
}

func statusForTextCode(textCode string) string {
	switch strings.TrimSpace(textCode) {
	case core.ServiceErrorUnauthenticated:
		return StatusUnauthenticated
	case core.ServiceErrorInvalidArgument:
		return StatusInvalidArgument
	case core.ServiceErrorNotFound:
		return StatusNotFound
	case core.ServiceErrorPermissionDenied:
		return StatusPermissionDenied
	case core.ServiceErrorAlreadyExists:
		return StatusAlreadyExists
	case core.ServiceErrorFailedPrecondition:
		return StatusFailedPrecondition
	case core.ServiceErrorResourceExhausted:
		return StatusResourceExhausted
	default:
		return StatusInternal
	}
}

func httpCodeForStatus(status string) int {
	switch status {
	case StatusUnauthenticated:
		return http.StatusUnauthorized
	case StatusInvalidArgument:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusPermissionDenied:
		return http.StatusForbidden
	case StatusAlreadyExists:
		return http.StatusConflict
	case StatusFailedPrecondition:
		return http.StatusPreconditionFailed
	case StatusResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, Response{Result: result})
}

func writeError(w http.ResponseWriter, err error) {
	status, code, message := StatusForError(err)
	writeJSON(w, code, ErrorResponse{Error: ErrorBody{Status: status, Message: message}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
