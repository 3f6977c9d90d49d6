package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/caretrail/accesscore"
)

const maxBodyBytes = 1 << 16

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses.
// Internal detail never leaves the process: storage failures and
// unknown errors collapse to a bare 500.
func writeEngineError(w http.ResponseWriter, err error) {
	var limited *accesscore.RateLimitedError
	switch {
	case errors.As(err, &limited):
		seconds := int64(math.Ceil(limited.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, accesscore.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, accesscore.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, accesscore.ErrNotFoundOrExpired):
		writeError(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, accesscore.ErrPasswordReuse):
		writeError(w, http.StatusBadRequest, "password matches a recently used password")
	case errors.Is(err, accesscore.ErrPasswordPolicy):
		writeError(w, http.StatusBadRequest, "password does not meet the policy")
	case errors.Is(err, accesscore.ErrValidationFailed):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, accesscore.ErrTwoFactorAlreadyEnabled):
		writeError(w, http.StatusConflict, "two-factor already enabled")
	case errors.Is(err, accesscore.ErrTwoFactorNotEnrolled):
		writeError(w, http.StatusConflict, "two-factor not enrolled")
	case errors.Is(err, accesscore.ErrTwoFactorInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid code")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
