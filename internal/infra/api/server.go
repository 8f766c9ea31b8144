package api

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/i18n"
	"telegram-digital-store/internal/infra/logging"
	"telegram-digital-store/internal/usecase"
)

// ReturnPage serves the page the provider redirects the customer to after
// checkout, addressed by payment_id or by order_id (latest payment). It polls
// the provider once so the order is usually up to date before the customer is
// back in Telegram. Texts follow Accept-Language.
type ReturnPage struct {
	payUC       usecase.PaymentUseCase
	botUsername string
	texts       *i18n.Bundle
	log         *zerolog.Logger
}

func NewReturnPage(payUC usecase.PaymentUseCase, botUsername string, texts *i18n.Bundle, logger *zerolog.Logger) *ReturnPage {
	l := logger.With().Str("component", "return_page").Logger()
	return &ReturnPage{payUC: payUC, botUsername: botUsername, texts: texts, log: &l}
}

// Register attaches handlers to the provided router.
func (s *ReturnPage) Register(r chi.Router) {
	r.Get("/payments/return", s.handleReturn)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func (s *ReturnPage) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	tr := s.texts.For(r.Header.Get("Accept-Language"))

	id := r.URL.Query().Get("payment_id")
	if orderID := r.URL.Query().Get("order_id"); id == "" && orderID != "" {
		latest, err := s.payUC.List(ctx, repository.PaymentFilter{OrderID: orderID, Limit: 1})
		if err == nil && len(latest) > 0 {
			id = latest[0].ID
		}
	}
	if id == "" {
		s.renderHTML(w, tr, http.StatusBadRequest, false, "missing_reference")
		return
	}

	status, err := s.payUC.PollPaymentStatus(ctx, id)
	if err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Str("payment_id", id).Msg("return page poll failed")
		s.renderHTML(w, tr, http.StatusOK, false, "payment_unconfirmed")
		return
	}

	switch status {
	case model.PaymentStatusSucceeded:
		s.renderHTML(w, tr, http.StatusOK, true, "payment_received")
	case model.PaymentStatusCancelled:
		s.renderHTML(w, tr, http.StatusOK, false, "payment_cancelled")
	default:
		s.renderHTML(w, tr, http.StatusOK, false, "payment_processing")
	}
}

var page = template.Must(template.New("ret").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .wait{color:#8a6d00}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}wait{{end}}">{{.Heading}}</h2>
  <p>{{.Msg}}</p>
  {{if .BotUsername}}
    <a class="btn" href="https://t.me/{{.BotUsername}}">{{.Back}}</a>
    <div class="small">{{.Hint}}</div>
  {{end}}
</div>
</body>
</html>`))

func (s *ReturnPage) renderHTML(w http.ResponseWriter, tr *i18n.Translator, code int, ok bool, msgKey string) {
	title, heading := tr.T("page_title"), tr.T("heading")
	if ok {
		title, heading = tr.T("page_title_ok"), tr.T("heading_ok")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, struct {
		OK          bool
		Title       string
		Heading     string
		Msg         string
		Back        string
		Hint        string
		BotUsername string
	}{
		OK:          ok,
		Title:       title,
		Heading:     heading,
		Msg:         tr.T(msgKey),
		Back:        tr.T("back_to_store"),
		Hint:        tr.T("open_hint", s.botUsername),
		BotUsername: s.botUsername,
	})
}
