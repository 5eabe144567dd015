package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ginjaninja78/gobd-datev-export/internal/logger"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// Transport-level errors. The engine's own sentinel errors live in types.
var (
	errBadRequest    = errors.New("malformed request")
	errUnprocessable = errors.New("unprocessable request")
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// statusFor maps an error to its HTTP status.
//
//	400 empty input or malformed request
//	413 input too large
//	422 missing columns, no transactions, invalid metadata, unformattable row
//	500 anything else
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, types.ErrEmptyInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInputTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrMissingColumns),
		errors.Is(err, types.ErrNoTransactions),
		errors.Is(err, types.ErrInvalidMetadata),
		errors.Is(err, types.ErrTransactionFormat),
		errors.Is(err, errUnprocessable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error response. Internal errors are logged and
// replaced by a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("request failed")
		msg = http.StatusText(status)
	}
	writeError(w, r, status, msg)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	body := errorResponse{Error: errorDetail{
		Code:    fmt.Sprintf("HTTP_%d", status),
		Message: msg,
	}}
	if id := middleware.GetReqID(r.Context()); id != "" {
		body.Error.Details = map[string]string{"request_id": id}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
