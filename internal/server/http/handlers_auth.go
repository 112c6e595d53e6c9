package http

import (
	"net/http"

	"github.com/dmitrijs2005/keyauth/internal/api"
	"github.com/dmitrijs2005/keyauth/internal/common"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMappedError(w, r, err)
		return
	}
	fallbackString(r, &req.Username, "username")
	fallbackString(r, &req.Email, "email")
	if req.Password == "" {
		req.Password = r.FormValue("password")
	}
	if err := h.validateStruct(&req); err != nil {
		writeMappedError(w, r, err)
		return
	}

	if _, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		writeMappedError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, api.MessageResponse{Message: "User registered successfully"})
}

// login accepts JSON or the OAuth2 password form (username, password).
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMappedError(w, r, err)
		return
	}
	fallbackString(r, &req.Username, "username")
	if req.Password == "" {
		req.Password = r.FormValue("password")
	}
	if err := h.validateStruct(&req); err != nil {
		writeMappedError(w, r, err)
		return
	}

	res, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		status, code, msg := mapDomainError(err)
		if status == http.StatusUnauthorized {
			msg = "invalid username or password"
		}
		writeError(w, r, status, code, msg)
		return
	}

	writeJSON(w, r, http.StatusOK, api.LoginResponse{
		AccessToken: res.AccessToken,
		TokenType:   api.TokenTypeBearer,
		UserID:      res.User.ID,
		Username:    res.User.UserName,
		IsAdmin:     res.User.IsAdmin,
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeMappedError(w, r, common.ErrorUnauthorized)
		return
	}

	writeJSON(w, r, http.StatusOK, api.MeResponse{
		ID:       user.ID,
		Username: user.UserName,
		Email:    user.Email,
		IsAdmin:  user.IsAdmin,
	})
}
