// Package handlers adapts the organization services to HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/narvanalabs/expense-orgs/internal/api/errors"
	"github.com/narvanalabs/expense-orgs/internal/metrics"
	"github.com/narvanalabs/expense-orgs/internal/models"
	"github.com/narvanalabs/expense-orgs/pkg/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errInvalidBody is returned for bodies that are not a JSON object.
var errInvalidBody = models.NewValidationError("body", "Invalid request body")

// SuccessResponse is returned by operations without a resource to return.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// Responder writes JSON responses and maps service errors to API errors.
type Responder struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewResponder creates a Responder. A nil metrics disables rejection counting.
func NewResponder(l *slog.Logger, m *metrics.Metrics) *Responder {
	if l == nil {
		l = slog.Default()
	}
	return &Responder{
		logger:  &logger.Logger{Logger: l},
		metrics: m,
	}
}

// JSON writes data with the given status code.
func (rs *Responder) JSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// Success writes {"success": true}.
func (rs *Responder) Success(w http.ResponseWriter) {
	rs.JSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Error writes err as a structured API error. Domain errors are counted as
// rejections; anything else is logged and reported as an internal error.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := chimiddleware.GetReqID(r.Context())
	apiErr, domain := apierrors.FromError(err)

	if domain {
		if rs.metrics != nil {
			rs.metrics.Rejected(apiErr.Code, apiErr.Reason)
		}
	} else {
		rs.logger.WithContext(logger.ContextWithRequestID(r.Context(), requestID)).Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}

	apierrors.WriteError(w, apiErr.WithRequestID(requestID))
}

// decodeJSON decodes the request body into dst. An empty body leaves dst
// unchanged.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidBody
	}
	return nil
}
