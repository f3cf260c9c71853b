package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go-pharmacy-catalog/internal/middleware"
	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/pkg/apierror"
)

const maxCredentialBody = 16 << 10

type authService interface {
	Signup(ctx context.Context, username string, password string, role string) (model.User, error)
	Login(ctx context.Context, username string, password string, role string) (model.IssuedToken, error)
}

type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Signup(r.Context(), payload.Username, payload.Password, payload.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.MessageResponse{Message: "User registered successfully", Role: user.Role})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	issued, err := h.service.Login(r.Context(), payload.Username, payload.Password, payload.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, issued)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, model.MeResponse{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()

	r.Body = http.MaxBytesReader(w, r.Body, maxCredentialBody)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if isPayloadTooLarge(err) {
			return err
		}
		return apierror.BadRequest("invalid JSON body", "")
	}
	return nil
}
