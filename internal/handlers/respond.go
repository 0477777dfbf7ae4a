package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alextreichler/coursehub/internal/apperr"
)

// statusClientClosedRequest is the non-standard status recorded when the client went
// away before the response was written.
const statusClientClosedRequest = 499

// maxBodyBytes caps request bodies. Lesson content is the largest field.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Kind    apperr.Kind       `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindIneligible:
		return http.StatusUnprocessableEntity
	case apperr.KindStorageConflict:
		return http.StatusConflict
	case apperr.KindStorageTimeout:
		return http.StatusServiceUnavailable
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the error envelope. Internal failures are logged with
// their cause and reported to the client without it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.As(err)
	status := statusFor(e.Kind)

	body := errorBody{Kind: e.Kind, Message: e.Message, Fields: e.Fields}
	switch e.Kind {
	case apperr.KindInternal:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Message = "internal error"
	case apperr.KindStorageTimeout, apperr.KindStorageConflict:
		slog.Warn("Storage unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
	case apperr.KindCanceled:
		slog.Debug("Request canceled by client", "method", r.Method, "path", r.URL.Path)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, status, errorEnvelope{Error: body})
}

// decodeJSON reads a single JSON object from the request body. Unknown fields are
// ignored; syntax and type errors are reported as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return apperr.Field(typeErr.Field, "has the wrong type")
		case errors.As(err, &maxErr):
			return apperr.Field("body", "is too large")
		case errors.Is(err, io.EOF):
			return apperr.Field("body", "is required")
		default:
			return apperr.Field("body", "must be a valid JSON object")
		}
	}
	if dec.More() {
		return apperr.Field("body", "must contain a single JSON object")
	}
	return nil
}

// queryBool reads a boolean query flag. Only "true" and "1" enable it.
func queryBool(r *http.Request, key string) bool {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	return v == "true" || v == "1"
}
