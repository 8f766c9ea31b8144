package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/infra/api"
	"telegram-digital-store/internal/infra/logging"
	red "telegram-digital-store/internal/infra/redis"
	"telegram-digital-store/internal/usecase"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	items, err := s.Products.ListActive(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, toProduct)})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.Products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toProduct(p))
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	u, r, err := s.customer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.Limiter != nil {
		ok, err := s.Limiter.Allow(r.Context(), red.UserActionKey(u.TelegramID, "create_order"), orderRateLimit, orderRateWindow)
		if err != nil {
			// fail open
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			s.fail(w, r, domain.ErrRateLimited)
			return
		}
	}

	var req createOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.Orders.CreateOrder(r.Context(), u.ID, usecase.CreateOrderInput{
		ProductID:         req.ProductID,
		PaymentType:       model.PaymentType(req.PaymentType),
		InstallmentMonths: req.InstallmentMonths,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, toOrder(o))
}

func (s *Server) listMyOrders(w http.ResponseWriter, r *http.Request) {
	u, r, err := s.customer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, limit := page(r)
	items, err := s.Orders.ListForUser(r.Context(), u.ID, offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, toOrder)})
}

func (s *Server) getMyOrder(w http.ResponseWriter, r *http.Request) {
	u, r, err := s.customer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.Orders.GetForUser(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toOrder(o))
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request) {
	u, r, err := s.customer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req createPaymentRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := logging.WithOrderID(r.Context(), req.OrderID)
	p, err := s.Payments.CreatePayment(ctx, u.ID, req.OrderID, req.ReturnURL, req.SourceToken)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, toPayment(p))
}

// paymentStatus asks the provider for the live status before answering.
func (s *Server) paymentStatus(w http.ResponseWriter, r *http.Request) {
	u, r, err := s.customer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.Payments.GetForUser(r.Context(), u.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.Payments.PollPaymentStatus(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.Payments.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toPayment(p))
}
