package api

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/tendant/simple-gallery/pkg/gallery"
)

const operatorSubject = "operator"

func sessionKey(secret string) []byte {
	sum := sha256.Sum256([]byte("simple-gallery/session:" + secret))
	return sum[:]
}

// RequireOperator admits requests whose bearer credential is either the
// operator secret or a session token issued by CreateSession.
func (h *Handler) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		candidate := jwtauth.TokenFromHeader(r)
		if candidate == "" || !h.authorized(candidate) {
			h.writeError(w, r, fmt.Errorf("%w: missing or invalid operator credential", gallery.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) authorized(candidate string) bool {
	if h.gate.Verify(candidate) {
		return true
	}
	if h.sessions == nil {
		return false
	}
	token, err := jwtauth.VerifyToken(h.sessions, candidate)
	if err != nil || token == nil {
		return false
	}
	return token.Subject() == operatorSubject
}

// CreateSessionRequest is the request body for creating an operator session
type CreateSessionRequest struct {
	Secret string `json:"secret"`
}

// SessionResponse is the response body for an operator session
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateSession exchanges the operator secret for a short-lived token
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid request body", gallery.ErrInvalidArgument))
		return
	}
	if h.sessions == nil || !h.gate.Verify(req.Secret) {
		h.writeError(w, r, fmt.Errorf("%w: invalid operator secret", gallery.ErrUnauthorized))
		return
	}

	now := time.Now().UTC()
	expiresAt := now.Add(h.sessionTTL)
	claims := map[string]interface{}{"sub": operatorSubject}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, expiresAt)
	_, token, err := h.sessions.Encode(claims)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("encode session token: %w", err))
		return
	}

	h.logger.InfoContext(r.Context(), "Operator session created", "expires_at", expiresAt)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, SessionResponse{Token: token, ExpiresAt: expiresAt.Truncate(time.Second)})
}

// Tenant endpoints

// CreateTenantRequest is the request body for creating a tenant
type CreateTenantRequest struct {
	Name string `json:"name"`
}

// ListTenants returns every tenant with its asset count, newest first
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.ListTenants(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"tenants":     tenants,
		"max_tenants": gallery.MaxTenants,
	})
}

// CreateTenant creates a new tenant
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid request body", gallery.ErrInvalidArgument))
		return
	}

	tenant, err := h.service.CreateTenant(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, tenant)
}

// DeleteTenant removes a tenant and all of its assets
func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := h.service.DeleteTenant(r.Context(), tenantID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Asset endpoints

// ListAssets returns the tenant's gallery for the admin dashboard
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.ListGallery(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"tenant":     g.Tenant,
		"assets":     g.Assets,
		"max_assets": gallery.MaxAssetsPerTenant,
	})
}

// UploadResultResponse reports one file of an upload batch
type UploadResultResponse struct {
	Name  string         `json:"name"`
	Asset *gallery.Asset `json:"asset,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// UploadResponse is the response body for a batch upload
type UploadResponse struct {
	Results   []UploadResultResponse `json:"results"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
}

// UploadAssets stores the multipart "files" parts in submission order
func (h *Handler) UploadAssets(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*gallery.MaxAssetsPerTenant+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, r, multipartError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.writeError(w, r, fmt.Errorf("%w: no files in field \"files\"", gallery.ErrInvalidArgument))
		return
	}

	files, closeAll, err := openParts(headers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer closeAll()

	results, err := h.service.UploadAssets(r.Context(), tenantID, files)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := UploadResponse{Results: make([]UploadResultResponse, 0, len(results))}
	var firstErr error
	for _, res := range results {
		item := UploadResultResponse{Name: res.Name, Asset: res.Asset}
		if res.Err != nil {
			detail := newErrorResponse(res.Err).Error
			item.Error = &detail
			if firstErr == nil {
				firstErr = res.Err
			}
		}
		resp.Results = append(resp.Results, item)
	}
	summary := gallery.Summarize(results)
	resp.Succeeded, resp.Failed = summary.Succeeded, summary.Failed

	status := http.StatusCreated
	if summary.Succeeded == 0 && firstErr != nil {
		status = StatusFor(kindOf(firstErr))
	}
	h.logger.InfoContext(r.Context(), "Upload batch processed", "tenant_id", tenantID, "succeeded", summary.Succeeded, "failed", summary.Failed)
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// DeleteAsset removes one asset; a missing asset is not an error
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	key := chi.URLParam(r, "key")
	if err := h.service.DeleteAsset(r.Context(), tenantID, key); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Branding

// UploadLogo replaces the branding logo with the multipart "logo" part
func (h *Handler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, r, multipartError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["logo"]
	if len(headers) != 1 {
		h.writeError(w, r, fmt.Errorf("%w: expected exactly one file in field \"logo\"", gallery.ErrInvalidArgument))
		return
	}

	files, closeAll, err := openParts(headers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer closeAll()

	settings, err := h.service.UpdateBranding(r.Context(), files[0])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, settings)
}

// openParts opens every part and returns a function closing them all
func openParts(headers []*multipart.FileHeader) ([]gallery.File, func(), error) {
	files := make([]gallery.File, 0, len(headers))
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open part %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, gallery.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Reader:      f,
		})
	}
	return files, closeAll, nil
}

func multipartError(err error) error {
	if kindOf(err) == gallery.KindFileTooLarge {
		return fmt.Errorf("%w: request body too large", gallery.ErrFileTooLarge)
	}
	return fmt.Errorf("%w: invalid multipart form: %v", gallery.ErrInvalidArgument, err)
}
