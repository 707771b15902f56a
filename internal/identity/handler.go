package identity

import (
	"log/slog"
	"net/http"

	"github.com/farmconnect/marketplace/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	session, err := h.service.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("user signed up", "user_id", session.User.ID)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("user logged in", "user_id", session.User.ID)
	httpx.WriteJSON(w, h.logger, http.StatusOK, session)
}
