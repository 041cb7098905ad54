package server

import (
	"net/http"

	"github.com/go-chi/render"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/security"
)

type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var roErr *security.ReadOnlyError
	switch {
	case jerrors.As(err, &roErr):
		return http.StatusForbidden
	case jerrors.Is(err, jerrors.ErrInputValidation):
		return http.StatusBadRequest
	case jerrors.Is(err, jerrors.ErrNotAuthenticated),
		jerrors.Is(err, jerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case jerrors.Is(err, jerrors.ErrTradeNotFound),
		jerrors.Is(err, jerrors.ErrTagNotFound),
		jerrors.Is(err, jerrors.ErrUserNotFound),
		jerrors.Is(err, jerrors.ErrBackupNotFound),
		jerrors.Is(err, jerrors.ErrDataNotFound):
		return http.StatusNotFound
	case jerrors.Is(err, jerrors.ErrTradeClosed),
		jerrors.Is(err, jerrors.ErrDuplicateTag),
		jerrors.Is(err, jerrors.ErrDuplicateEmail):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {error} with the mapped status. Internal errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()

	var verr *jerrors.ValidationError
	switch {
	case jerrors.As(err, &verr):
		msg = verr.Field + " " + verr.Message
	case status == http.StatusUnauthorized:
		msg = "Invalid credentials"
	case jerrors.Is(err, jerrors.ErrTradeNotFound):
		msg = "Trade not found or access denied"
	case status == http.StatusInternalServerError:
		requestLog(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		msg = "Internal server error"
	}
	writeJSON(w, r, status, errorBody{Error: msg})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, errorBody{Error: msg})
}
