package farmd

import (
	"encoding/json"
	"errors"
	"net/http"

	"stakefarm/native/farm"
	"stakefarm/native/token"
	"stakefarm/native/whitelist"
)

var errBadRequest = errors.New("farmd: bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest),
		errors.Is(err, farm.ErrInvalidAmount),
		errors.Is(err, farm.ErrNilAccount),
		errors.Is(err, token.ErrCustodyAccount),
		errors.Is(err, token.ErrNilAccount),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, whitelist.ErrAmountOverflow):
		return http.StatusBadRequest
	case errors.Is(err, farm.ErrInsufficientStake),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, whitelist.ErrOwnerNotSet):
		return http.StatusConflict
	case errors.Is(err, whitelist.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, whitelist.ErrInvalidProof):
		return http.StatusUnprocessableEntity
	case errors.Is(err, token.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, farm.ErrClockRegression):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err)
	}
	writeJSONError(w, status, err)
}
