// Package respond writes JSON responses and maps the domain error taxonomy
// onto HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayush/skill-swap/internal/models"
)

const maxBodyBytes = 1 << 20

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// Message writes a success body carrying only a message.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]any{"success": true, "message": msg})
}

// Fail writes the standard error body.
func Fail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]any{"success": false, "message": msg})
}

// Decode reads a JSON request body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	return decode(r, dst, true)
}

// DecodeLenient is Decode for bodies that may carry read-only fields the
// client echoes back, such as a full profile object. Unknown fields are
// ignored.
func DecodeLenient(r *http.Request, dst any) error {
	return decode(r, dst, false)
}

func decode(r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", models.ErrValidation)
	}
	return nil
}

// Error maps err onto the taxonomy. Anything unrecognised is logged and
// reported as a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := Status(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	Fail(w, status, msg)
}

// Status returns the HTTP status and client-safe message for err.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrReservedEmail):
		return http.StatusBadRequest, "This email is reserved."
	case errors.Is(err, models.ErrDuplicateEmail):
		return http.StatusBadRequest, "User already exists"
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, models.ErrBanned):
		return http.StatusForbidden, "Your account has been banned."
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, detail(err, models.ErrValidation, "Invalid request.")
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusBadRequest, detail(err, models.ErrInvalidState, "Invalid state for this action.")
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, detail(err, models.ErrUnauthorized, "Not authorized.")
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, detail(err, models.ErrForbidden, "Forbidden.")
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, notFound(err)
	case errors.Is(err, models.ErrPreconditionFailed):
		return http.StatusConflict, "The request was changed by someone else. Please reload and try again."
	}
	return http.StatusInternalServerError, "Server Error"
}

// detail turns "validation failed: a message is required" into
// "A message is required.".
func detail(err, sentinel error, fallback string) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	i := strings.LastIndex(msg, prefix)
	if i < 0 {
		return fallback
	}
	return sentence(msg[i+len(prefix):])
}

// notFound names the missing thing from the wrapping context, e.g.
// "responder: not found" becomes "Responder not found.".
func notFound(err error) string {
	msg := strings.TrimSuffix(err.Error(), models.ErrNotFound.Error())
	msg = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(msg), ":"))
	if msg == "" || strings.Contains(msg, ":") {
		return "Not found."
	}
	return sentence(msg + " not found")
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
