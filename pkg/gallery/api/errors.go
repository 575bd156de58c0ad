package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// ErrorDetail is the stable error payload
type ErrorDetail struct {
	Kind    gallery.Kind `json:"kind"`
	Message string       `json:"message"`
}

// ErrorResponse is the response body for every failed request
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`

	// KnownTenants is a debug aid on gallery 404s, not a stable contract
	KnownTenants []string `json:"known_tenants,omitempty"`
}

// StatusFor maps an error kind to its HTTP status code
func StatusFor(kind gallery.Kind) int {
	switch kind {
	case gallery.KindUnauthorized:
		return http.StatusUnauthorized
	case gallery.KindNotFound:
		return http.StatusNotFound
	case gallery.KindQuotaExceeded:
		return http.StatusConflict
	case gallery.KindUnsupportedType:
		return http.StatusUnsupportedMediaType
	case gallery.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case gallery.KindInvalidArgument:
		return http.StatusBadRequest
	case gallery.KindBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// kindOf extends gallery.KindOf with transport-level failures
func kindOf(err error) gallery.Kind {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return gallery.KindFileTooLarge
	}
	return gallery.KindOf(err)
}

func newErrorResponse(err error) ErrorResponse {
	kind := kindOf(err)
	msg := err.Error()
	if kind == gallery.KindInternal {
		// internal details stay in the log
		msg = "internal error"
	}
	return ErrorResponse{Error: ErrorDetail{Kind: kind, Message: msg}}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorResponse(w, r, newErrorResponse(err), err)
}

func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, resp ErrorResponse, err error) {
	status := StatusFor(resp.Error.Kind)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "Request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"kind", resp.Error.Kind,
		"error", err)

	render.Status(r, status)
	render.JSON(w, r, resp)
}
