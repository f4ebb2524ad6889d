package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"leadbot/internal/lead"
	"leadbot/internal/transport/telegram"
	"leadbot/pkg/logx"
)

const (
	msgLeadSent      = "Заявка отправлена!"
	errMissingFields = "Заполните обязательные поля"
	errTimeout       = "Таймаут соединения с Telegram"
	errConnection    = "Ошибка подключения к Telegram"
	errInternal      = "Внутренняя ошибка сервера"
)

const maxFormMemory = 1 << 20

type leadResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleLead validates the form, formats the notification and makes one
// delivery attempt. Every outcome is answered with HTTP 200 and a JSON body.
func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		// Badly escaped pairs are dropped; the rest of the form still counts.
		var escErr url.EscapeError
		if !errors.As(err, &escErr) {
			s.log.Error("lead form parse failed", logx.Err(err))
			writeJSON(w, http.StatusOK, leadResponse{Error: errInternal})
			return
		}
		s.log.Debug("lead form has undecodable fields", logx.Err(err))
	}

	sub, err := lead.New(r.PostFormValue("name"), r.PostFormValue("phone"), r.PostFormValue("message"))
	if err != nil {
		writeJSON(w, http.StatusOK, leadResponse{Error: errMissingFields})
		return
	}

	at := s.opts.Now()
	text := lead.FormatNotification(sub, s.opts.SiteLabel, at)
	// The visitor hanging up must not abort delivery; the client timeout bounds it.
	err = s.delivery.SendMessage(context.WithoutCancel(r.Context()), text)
	if err == nil {
		s.log.Info("lead sent",
			logx.String("at", lead.Timestamp(at)),
			logx.String("name", sub.Name),
			logx.String("phone", sub.Phone),
		)
		writeJSON(w, http.StatusOK, leadResponse{OK: true, Message: msgLeadSent})
		return
	}

	writeJSON(w, http.StatusOK, leadResponse{Error: s.deliveryError(err)})
}

// deliveryError maps a delivery failure to the text shown to the visitor.
// Unknown failures are logged in full and answered generically.
func (s *Server) deliveryError(err error) string {
	var apiErr *telegram.APIError
	switch {
	case errors.As(err, &apiErr):
		msg := fmt.Sprintf("Ошибка Telegram API: %d", apiErr.StatusCode)
		s.log.Warn("lead delivery rejected", logx.Int("status", apiErr.StatusCode), logx.String("description", apiErr.Description))
		return msg
	case errors.Is(err, telegram.ErrTimeout):
		s.log.Warn("lead delivery timed out", logx.Err(err))
		return errTimeout
	case errors.Is(err, telegram.ErrConnection):
		s.log.Warn("lead delivery connection failed", logx.Err(err))
		return errConnection
	default:
		s.log.Error("lead delivery failed", logx.Err(err))
		return errInternal
	}
}
