package apiv1

import (
	"io"
	"net/http"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/infra/api"
	"telegram-digital-store/internal/infra/logging"
)

// handleWebhook acknowledges with {"status":"ok"} once the event is applied,
// ignored or refers to an unknown payment. Bad signatures and bodies get 400;
// anything else gets 500 so the provider redelivers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, r, domain.ErrInvalidArgument)
		return
	}
	if err := s.Payments.HandleWebhook(r.Context(), body, r.Header); err != nil {
		switch domain.KindOf(err) {
		case domain.KindInvalidSignature, domain.KindInvalidRequest:
			s.fail(w, r, err)
		default:
			logging.With(r.Context(), s.log).Error().Err(err).Msg("webhook processing failed")
			api.WriteError(w, r, domain.ErrInternal)
		}
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
