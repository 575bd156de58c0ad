package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

// Health reports whether the metadata backend is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.writeError(w, r, gallery.Unavailable(err))
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// GetGallery returns a tenant's public gallery
func (h *Handler) GetGallery(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.ListGallery(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		resp := newErrorResponse(err)
		if h.debug && errors.Is(err, gallery.ErrNotFound) {
			resp.KnownTenants = h.knownTenantIDs(r)
		}
		h.writeErrorResponse(w, r, resp, err)
		return
	}
	render.JSON(w, r, g)
}

func (h *Handler) knownTenantIDs(r *http.Request) []string {
	tenants, err := h.service.ListTenants(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to list tenants for debug response", "error", err)
		return nil
	}
	ids := make([]string, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	return ids
}

// GetSettings returns the branding settings with a resolved logo URL
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, settings)
}

// ServeFile streams a stored object for backends without public URLs
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	body, obj, err := h.service.OpenObject(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if key == gallery.BrandingLogoKey {
		// overwritten in place; clients re-fetch via the ?v= query
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		// asset keys are never reused
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	if !obj.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", obj.UpdatedAt.UTC().Format(http.TimeFormat))
	}

	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to stream object", "key", key, "error", err)
	}
}
