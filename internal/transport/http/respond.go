package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"classroom-quiz-service/internal/domain"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error            string `json:"error"`
	Kind             string `json:"kind"`
	RemainingSeconds int    `json:"remainingSeconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	body := errorBody{Error: err.Error(), Kind: kind.String()}

	var remaining *domain.TimeRemainingError
	if errors.As(err, &remaining) {
		body.RemainingSeconds = remaining.Remaining
	}

	status := statusFor(kind)
	if errors.Is(err, errBadRequest) {
		status = http.StatusBadRequest
		body.Kind = domain.KindInvalid.String()
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		if kind == domain.KindUnknown {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindStateViolation:
		return http.StatusConflict
	case domain.KindInvalid:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(dst); err != nil {
		return errBadRequest
	}
	return nil
}

var errBadRequest = errors.New("malformed request body")
