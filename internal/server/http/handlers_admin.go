package http

import (
	"net/http"

	"github.com/dmitrijs2005/keyauth/internal/api"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.ListUsers(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	out := make([]api.UserInfo, 0, len(list))
	for _, u := range list {
		out = append(out, api.UserInfo{
			ID:           u.ID,
			Username:     u.UserName,
			Email:        u.Email,
			IsAdmin:      u.IsAdmin,
			CreatedAt:    u.CreatedAt,
			LicenseCount: u.LicenseCount,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) generateKey(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMappedError(w, r, err)
		return
	}
	fallbackString(r, &req.LicenseType, "license_type")
	if err := fallbackOptionalInt(r, &req.DurationDays, "duration_days"); err != nil {
		writeMappedError(w, r, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		writeMappedError(w, r, err)
		return
	}

	typ, err := models.ParseLicenseType(req.LicenseType)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	var days int
	if req.DurationDays != nil {
		days = *req.DurationDays
	}

	l, err := h.licenses.Generate(r.Context(), userFromContext(r.Context()), typ, days)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, api.GenerateResponse{
		ID:        l.ID,
		Key:       l.Key,
		Type:      string(l.Type),
		ExpiresAt: l.ExpiresAt,
	})
}

func (h *Handler) listLicenses(w http.ResponseWriter, r *http.Request) {
	views, err := h.licenses.List(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	out := make([]api.LicenseInfo, 0, len(views))
	for _, v := range views {
		out = append(out, api.LicenseInfo{
			ID:        v.ID,
			Key:       v.Key,
			Type:      string(v.Type),
			Status:    string(v.Status),
			HWID:      optionalString(v.HWID),
			CreatedAt: v.CreatedAt,
			ExpiresAt: v.ExpiresAt,
			UserID:    optionalString(v.UserID),
			IsValid:   v.Valid,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) revokeLicense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.licenses.Revoke(r.Context(), userFromContext(r.Context()), id); err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, api.MessageResponse{Message: "License revoked successfully"})
}

func (h *Handler) extendLicense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req api.ExtendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMappedError(w, r, err)
		return
	}
	if err := fallbackInt(r, &req.Days, "days"); err != nil {
		writeMappedError(w, r, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		writeMappedError(w, r, err)
		return
	}

	l, err := h.licenses.Extend(r.Context(), userFromContext(r.Context()), id, req.Days)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, api.ExtendResponse{
		Message:   "License extended successfully",
		NewExpiry: l.ExpiresAt,
	})
}

func (h *Handler) exportLicenses(w http.ResponseWriter, r *http.Request) {
	res, err := h.exports.Export(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, api.ExportResponse{
		ObjectKey:   res.ObjectKey,
		DownloadURL: res.DownloadURL,
		Count:       res.Count,
	})
}
