package email

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/httpx"
)

type Handler struct {
	sender Sender
	logger *slog.Logger
}

func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{
		sender: sender,
		logger: logger,
	}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := httpx.DecodeJSON(r, &msg); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := validate(msg); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := h.sender.Send(r.Context(), msg); err != nil {
		h.logger.Error("email delivery failed", "error", err, "to", msg.To, "subject", msg.Subject)
		httpx.WriteMessage(w, h.logger, http.StatusBadGateway, "email delivery failed")
		return
	}

	h.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)
	httpx.WriteJSON(w, h.logger, http.StatusOK, sendResponse{Status: "sent"})
}

func validate(msg Message) error {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return fmt.Errorf("%w: to must be a valid email address", domain.ErrValidation)
	}
	if msg.ReplyTo != "" {
		if _, err := mail.ParseAddress(msg.ReplyTo); err != nil {
			return fmt.Errorf("%w: reply_to must be a valid email address", domain.ErrValidation)
		}
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	if strings.TrimSpace(msg.Body) == "" {
		return fmt.Errorf("%w: body is required", domain.ErrValidation)
	}
	return nil
}
