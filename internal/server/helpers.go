package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/seralab/tunex/internal/common"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the taxonomy kind alongside the message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with an explicit status code.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	kind := common.KindFatal
	switch {
	case statusCode == http.StatusNotFound:
		kind = common.KindNotFound
	case statusCode == http.StatusConflict:
		kind = common.KindConflict
	case statusCode == http.StatusServiceUnavailable:
		kind = common.KindTransient
	case statusCode >= 400 && statusCode < 500:
		kind = common.KindInvalidInput
	}
	WriteJSON(w, statusCode, ErrorResponse{Error: ErrorDetail{Kind: string(kind), Message: message}})
}

// WriteErr maps a taxonomy error to its HTTP status and writes the
// standard error body. Untyped errors surface as Fatal / 500.
func WriteErr(w http.ResponseWriter, err error) {
	detail := ErrorDetail{Kind: string(common.KindOf(err)), Message: err.Error()}

	var te *common.Error
	if errors.As(err, &te) {
		detail.Message = te.Message
		detail.Detail = te.Detail
	}

	status := http.StatusInternalServerError
	switch common.KindOf(err) {
	case common.KindInvalidInput:
		status = http.StatusBadRequest
	case common.KindNotFound:
		status = http.StatusNotFound
	case common.KindConflict:
		status = http.StatusConflict
	case common.KindTransient:
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, ErrorResponse{Error: detail})
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Schemas are closed: unknown fields are rejected with 422. Returns
// false after writing the error response when decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusUnprocessableEntity, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /experiment/status/{job_id}, calling
// PathParam(r, "/experiment/status/", "") extracts the {job_id} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	// No suffix: return up to the next /
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}
