package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/ports/adapter"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: validationFields(err)})
		return false
	}
	return true
}

func validationFields(err error) map[string]string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return map[string]string{"error": "invalid request"}
	}
	out := make(map[string]string, len(ves))
	for _, e := range ves {
		field := strings.ToLower(e.Field()[:1]) + e.Field()[1:]
		switch e.Tag() {
		case "required":
			out[field] = "required"
		case "oneof":
			out[field] = fmt.Sprintf("must be one of: %s", e.Param())
		default:
			out[field] = "invalid value"
		}
	}
	return out
}

// statusFor maps use case errors onto HTTP statuses for the admin and user
// endpoints.
func statusFor(err error) int {
	var pe *adapter.ProviderError
	switch {
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrSubscriptionNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case adapter.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnknownPlan):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrActiveSubscription), errors.Is(err, domain.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &pe):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func secretEqual(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
