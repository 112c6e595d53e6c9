package http

import (
	"net/http"

	"github.com/dmitrijs2005/keyauth/internal/api"
)

func (h *Handler) bindLicenseRequest(r *http.Request) (*api.LicenseRequest, error) {
	var req api.LicenseRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	fallbackString(r, &req.LicenseKey, "license_key")
	fallbackString(r, &req.HWID, "hwid")
	if err := h.validateStruct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	req, err := h.bindLicenseRequest(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	l, err := h.licenses.Activate(r.Context(), userFromContext(r.Context()), req.LicenseKey, req.HWID)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, api.ActivateResponse{
		Message:   "License key activated successfully",
		Type:      string(l.Type),
		ExpiresAt: l.ExpiresAt,
	})
}

func (h *Handler) validateLicense(w http.ResponseWriter, r *http.Request) {
	req, err := h.bindLicenseRequest(r)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	res, err := h.licenses.Validate(r.Context(), userFromContext(r.Context()), req.LicenseKey, req.HWID)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	if !res.Valid {
		writeJSON(w, r, http.StatusOK, api.ValidateResponse{
			Valid:   false,
			Reason:  res.Reason,
			Message: "License key is not valid",
		})
		return
	}

	writeJSON(w, r, http.StatusOK, api.ValidateResponse{
		Valid:     true,
		Type:      string(res.License.Type),
		ExpiresAt: res.License.ExpiresAt,
		Message:   "License key is valid",
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	views, err := h.licenses.Status(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeMappedError(w, r, err)
		return
	}

	out := api.StatusResponse{Licenses: make([]api.LicenseSummary, 0, len(views))}
	for _, v := range views {
		out.Licenses = append(out.Licenses, api.LicenseSummary{
			Key:       v.Key,
			Type:      string(v.Type),
			Status:    string(v.Status),
			ExpiresAt: v.ExpiresAt,
			IsValid:   v.Valid,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}
