package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/lib/validate"
)

type ErrorResponse struct {
	Error   string                `json:"error"`
	Code    string                `json:"code"`
	Details []validate.FieldError `json:"details,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string // replaces target.Error() when set
}

var errorMappings = []errorMapping{
	{models.ErrDuplicateUsername, http.StatusBadRequest, "duplicate_username", ""},
	{models.ErrDuplicateEmail, http.StatusBadRequest, "duplicate_email", ""},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", ""},
	{models.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", ""},
	{models.ErrUserNotFound, http.StatusUnauthorized, "unauthenticated", models.ErrUnauthenticated.Error()},
	{models.ErrItemNotFound, http.StatusNotFound, "item_not_found", ""},
	{models.ErrItemAlreadyOwned, http.StatusConflict, "item_already_owned", ""},
	{models.ErrNotOwner, http.StatusConflict, "not_owner", ""},
	{models.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds", ""},
}

// errorResponse maps err onto the public error taxonomy. Unknown errors
// become a generic 500 so internal details never reach the client.
func errorResponse(err error) (int, ErrorResponse) {
	var verrs *validate.Errors
	if errors.As(err, &verrs) {
		msg := "Validation failed"
		if len(verrs.Fields) > 0 {
			msg = verrs.Fields[0].Message
		}
		return http.StatusBadRequest, ErrorResponse{Error: msg, Code: "validation_error", Details: verrs.Fields}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = m.target.Error()
			}
			return m.status, ErrorResponse{Error: msg, Code: m.code}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: "Something went wrong!", Code: "internal_error"}
}

func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	} else {
		s.logger.Info("Request rejected",
			slog.String("path", r.URL.Path),
			slog.String("code", body.Code),
		)
	}
	s.writeJSON(w, status, body)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", slog.Any("error", err))
	}
}
