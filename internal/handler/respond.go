package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
	"github.com/aryan0dhankhar/bloodlink/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/bloodlink/internal/security/auth"
	"github.com/aryan0dhankhar/bloodlink/internal/security/middleware"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Responder writes JSON bodies and maps domain errors to status codes.
// Internal error details are only shown when ExposeInternal is set.
type Responder struct {
	logger         *slog.Logger
	exposeInternal bool
}

func NewResponder(logger *slog.Logger, exposeInternal bool) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger, exposeInternal: exposeInternal}
}

func (rs *Responder) JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rs.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// Error classifies err: validation 400, authentication 401, authorization 403,
// not found 404, conflict and invalid state 409, anything else 500.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status, body := rs.classify(err)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("request_id", logger.RequestIDFromContext(r.Context())),
	}
	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed", attrs...)
	} else {
		rs.logger.Info("request rejected", attrs...)
	}
	rs.JSON(w, status, body)
}

func (rs *Responder) classify(err error) (int, ErrorResponse) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{Message: "validation failed", Fields: ve.Fields}
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized, ErrorResponse{Message: err.Error()}
	case errors.Is(err, domain.ErrAuthorization):
		return http.StatusForbidden, ErrorResponse{Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Message: err.Error()}
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, ErrorResponse{Message: err.Error()}
	}
	if rs.exposeInternal {
		return http.StatusInternalServerError, ErrorResponse{Message: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Message: "internal server error"}
}

// Decode reads one JSON object into dst. Malformed bodies become validation errors.
func (rs *Responder) Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		ve := domain.NewValidationError()
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			ve.Add("body", "request body is required")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			ve.Add(typeErr.Field, fmt.Sprintf("must be a %s", typeErr.Type))
		default:
			ve.Add("body", "malformed JSON")
		}
		return ve
	}
	return nil
}

// identity returns the authenticated caller; routes mount Authenticate before handlers
func identity(r *http.Request) auth.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}
