// Package api binds the gallery service to HTTP. Admin routes sit behind
// the operator credential; gallery, settings and file reads are public.
package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

const (
	defaultSessionTTL = 12 * time.Hour
	defaultFilesPath  = "/files"

	// multipart bodies beyond the file bytes themselves
	multipartOverhead int64 = 1 << 20
)

// Options configures the HTTP binding
type Options struct {
	SessionTTL         time.Duration
	DebugTenantListing bool
	MaxUploadBytes     int64
	FilesPath          string // mount point of the file read endpoint
	Logger             *slog.Logger
}

// Handler handles HTTP requests for the gallery service
type Handler struct {
	service    gallery.Service
	gate       *gallery.AccessGate
	sessions   *jwtauth.JWTAuth
	sessionTTL time.Duration
	debug      bool
	maxUpload  int64
	filesPath  string
	logger     *slog.Logger
}

// NewHandler creates a new gallery handler. Session tokens are signed
// with a key derived from the operator secret, so rotating the secret
// invalidates every outstanding session.
func NewHandler(service gallery.Service, gate *gallery.AccessGate, secret string, opts Options) *Handler {
	h := &Handler{
		service:    service,
		gate:       gate,
		sessionTTL: opts.SessionTTL,
		debug:      opts.DebugTenantListing,
		maxUpload:  opts.MaxUploadBytes,
		filesPath:  strings.TrimSuffix(opts.FilesPath, "/"),
		logger:     opts.Logger,
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = defaultSessionTTL
	}
	if h.maxUpload <= 0 {
		h.maxUpload = gallery.DefaultMaxUploadBytes
	}
	if h.filesPath == "" {
		h.filesPath = defaultFilesPath
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if secret != "" {
		h.sessions = jwtauth.New("HS256", sessionKey(secret), nil)
	}
	return h
}

// Routes returns the router for every gallery endpoint
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)
	r.Get(h.filesPath+"/*", h.ServeFile)
	r.Head(h.filesPath+"/*", h.ServeFile)

	r.Route("/api", func(r chi.Router) {
		// Public read path
		r.Get("/gallery/{tenantID}", h.GetGallery)
		r.Get("/settings", h.GetSettings)

		r.Post("/admin/session", h.CreateSession)

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(h.RequireOperator)

			r.Get("/admin/tenants", h.ListTenants)
			r.Post("/admin/tenants", h.CreateTenant)
			r.Delete("/admin/tenants/{tenantID}", h.DeleteTenant)

			r.Get("/admin/tenants/{tenantID}/assets", h.ListAssets)
			r.Post("/admin/tenants/{tenantID}/assets", h.UploadAssets)
			r.Delete("/admin/tenants/{tenantID}/assets/{key}", h.DeleteAsset)

			r.Post("/settings/logo", h.UploadLogo)
		})
	})

	return r
}
