package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/resumeforge/pipeline/pkg/services"
)

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, services.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, services.ErrNotCancellable) {
		return echo.NewHTTPError(http.StatusConflict, "session is not in a cancellable state")
	}
	if errors.Is(err, services.ErrAlreadyExists) {
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// Recognised machine-readable codes in the error envelope's "code" field.
// These four are the only ones spec'd; every other non-2xx response omits
// code and relies on "error"/"message" alone.
const (
	CodeCapacityLimit                  = "CAPACITY_LIMIT"
	CodeStalePipeline                  = "STALE_PIPELINE"
	CodeFeatureNotAvailable            = "FEATURE_NOT_AVAILABLE"
	CodeBenchmarkRebuildConfirmRequired = "BENCHMARK_REBUILD_CONFIRM_REQUIRED"
)

// codedError is a server error that carries one of the envelope's
// recognised codes (capacity, staleness, entitlement, benchmark-confirm),
// as opposed to the generic validation/not-found/internal classes
// mapServiceError already handles with a bare echo.HTTPError.
type codedError struct {
	status  int
	code    string
	message string
}

func (e *codedError) Error() string { return e.message }

func newCodedError(status int, code, message string) error {
	return &codedError{status: status, code: code, message: message}
}

// errCapacityLimit reports that the global or per-user admission cap is
// currently exhausted.
func errCapacityLimit(message string) error {
	return newCodedError(http.StatusServiceUnavailable, CodeCapacityLimit, message)
}

// errStalePipeline reports that a session claims to be running but hasn't
// been touched in over StalePipelineThreshold; the caller must restart
// rather than keep waiting on it.
func errStalePipeline(message string) error {
	return newCodedError(http.StatusConflict, CodeStalePipeline, message)
}

// errFeatureNotAvailable reports that the requesting owner's entitlements
// don't cover a feature. Entitlement resolution itself lives outside this
// module (see pkg/entitlement); this is only the envelope shape at the
// boundary.
func errFeatureNotAvailable(message string) error {
	return newCodedError(http.StatusPaymentRequired, CodeFeatureNotAvailable, message)
}

// errBenchmarkRebuildConfirmRequired reports that a benchmark-assumption
// edit arrived after section writing had already started, and an in-place
// rewind is refused until the caller resubmits with confirm_rebuild=true.
func errBenchmarkRebuildConfirmRequired(message string) error {
	return newCodedError(http.StatusConflict, CodeBenchmarkRebuildConfirmRequired, message)
}

// errorEnvelope is the wire shape of every non-2xx JSON response:
// {error, code?, message?}.
type errorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// errorSlug turns an HTTP status into the envelope's lowercase "error"
// classifier, e.g. 404 -> "not_found".
func errorSlug(status int) string {
	return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// httpErrorHandler replaces echo's default error handler so every non-2xx
// response renders the same {error, code, message} envelope, whether it
// originated from a bare echo.NewHTTPError call (mapServiceError and most
// handlers) or a codedError carrying one of the four spec-recognised codes.
func httpErrorHandler(err error, c *echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	env := errorEnvelope{Error: errorSlug(status), Message: "internal server error"}

	var ce *codedError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ce):
		status = ce.status
		env = errorEnvelope{Error: errorSlug(status), Code: ce.code, Message: ce.message}
	case errors.As(err, &he):
		status = he.Code
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(status)
		}
		env = errorEnvelope{Error: errorSlug(status), Message: msg}
	default:
		slog.Error("unhandled error reaching HTTP error handler", "error", err)
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if jsonErr := c.JSON(status, env); jsonErr != nil {
		slog.Error("failed to write error envelope", "error", jsonErr)
	}
}
