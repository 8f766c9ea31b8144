package apiv1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/api"
	"telegram-digital-store/internal/infra/logging"
	"telegram-digital-store/internal/usecase"
)

// ---- session ----

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Auth.Login(req.Email, req.Password); err != nil {
		logging.With(r.Context(), s.log).Warn().Str("email", req.Email).Msg("admin login failed")
		s.fail(w, r, err)
		return
	}
	token, exp, err := s.Auth.Mint(w, req.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": exp.UTC().Format(time.RFC3339)})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.Auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ---- orders ----

func (s *Server) adminListOrders(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	items, err := s.Orders.List(r.Context(), repository.OrderFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: model.OrderStatus(r.URL.Query().Get("status")),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, toOrder)})
}

func (s *Server) adminListOverdue(w http.ResponseWriter, r *http.Request) {
	items, err := s.Orders.ListOverdue(r.Context(), time.Now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, toOrder)})
}

func (s *Server) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := s.Orders.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pays, err := s.Payments.List(r.Context(), repository.PaymentFilter{OrderID: id, Limit: maxPageSize})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"order":    toOrder(o),
		"payments": mapSlice(pays, toPayment),
	})
}

func (s *Server) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), model.OrderStatus(req.Status))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toOrder(o))
}

// ---- payments ----

func (s *Server) adminListPayments(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	items, err := s.Payments.List(r.Context(), repository.PaymentFilter{
		OrderID: r.URL.Query().Get("order_id"),
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, toPayment)})
}

func (s *Server) adminRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if r.ContentLength > 0 {
		if err := s.decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	var amt *decimal.Decimal
	if req.Amount != nil {
		d, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: bad amount", domain.ErrInvalidArgument))
			return
		}
		amt = &d
	}
	ref, err := s.Payments.Refund(r.Context(), chi.URLParam(r, "id"), amt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, Refund{
		ID:                ref.ID,
		ProviderPaymentID: ref.ProviderPaymentID,
		Status:            ref.Status,
		Amount:            amount(ref.Amount),
	})
}

func (s *Server) adminPoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
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

// ---- notifications ----

func (s *Server) adminListNotifications(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	unread := r.URL.Query().Get("unread") == "true"
	items, err := s.Notifications.List(r.Context(), offset, limit, unread)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, toNotification)})
}

func (s *Server) adminMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.Notifications.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- products ----

func (s *Server) adminListProducts(w http.ResponseWriter, r *http.Request) {
	items, err := s.Products.ListAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, toProduct)})
}

func (s *Server) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := s.productInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.Products.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, toProduct(p))
}

func (s *Server) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := s.productInput(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.Products.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toProduct(p))
}

func (s *Server) adminSetProductActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.Products.SetActive(r.Context(), chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toProduct(p))
}

func (s *Server) productInput(r *http.Request) (usecase.ProductInput, error) {
	var req productRequest
	if err := s.decode(r, &req); err != nil {
		return usecase.ProductInput{}, err
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return usecase.ProductInput{}, fmt.Errorf("%w: bad price", domain.ErrInvalidArgument)
	}
	in := usecase.ProductInput{
		Name:              req.Name,
		Description:       req.Description,
		Type:              model.ProductType(req.Type),
		Price:             price,
		InstallmentMonths: req.InstallmentMonths,
		Features:          req.Features,
	}
	if req.InstallmentPrice != nil {
		ip, err := decimal.NewFromString(*req.InstallmentPrice)
		if err != nil {
			return usecase.ProductInput{}, fmt.Errorf("%w: bad installment_price", domain.ErrInvalidArgument)
		}
		in.InstallmentPrice = &ip
	}
	return in, nil
}
