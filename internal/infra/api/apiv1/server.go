package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/infra/api"
	"telegram-digital-store/internal/infra/logging"
	"telegram-digital-store/internal/usecase"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	orderRateLimit  = 10
	orderRateWindow = time.Minute
)

// RateLimiter is satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Deps are the collaborators of the HTTP API. Limiter may be nil.
type Deps struct {
	Products      usecase.ProductUseCase
	Orders        usecase.OrderUseCase
	Payments      usecase.PaymentUseCase
	Users         usecase.UserUseCase
	Notifications usecase.NotificationUseCase
	Analytics     usecase.AnalyticsUseCase
	Auth          *api.AuthManager
	WebApp        *api.WebAppVerifier
	Limiter       RateLimiter
}

// Server implements the customer, webhook and admin JSON endpoints.
type Server struct {
	Deps
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{Deps: d, validate: validator.New(), log: &l}
}

// RegisterAPIV1 mounts every route on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Post("/api/payments/webhook", s.handleWebhook)
	r.With(s.WebApp.Optional).Post("/api/analytics/click", s.trackClick)

	r.Group(func(r chi.Router) {
		r.Use(s.WebApp.Require)
		r.Get("/api/products", s.listProducts)
		r.Get("/api/products/{id}", s.getProduct)
		r.Post("/api/orders", s.createOrder)
		r.Get("/api/orders", s.listMyOrders)
		r.Get("/api/orders/{id}", s.getMyOrder)
		r.Post("/api/payments", s.createPayment)
		r.Get("/api/payments/{id}/status", s.paymentStatus)
	})

	r.Post("/admin/login", s.login)
	r.Post("/admin/logout", s.logout)
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(s.Auth.RequireAdmin)
		r.Get("/orders", s.adminListOrders)
		r.Get("/orders/overdue", s.adminListOverdue)
		r.Get("/orders/{id}", s.adminGetOrder)
		r.Patch("/orders/{id}/status", s.adminUpdateOrderStatus)
		r.Get("/payments", s.adminListPayments)
		r.Post("/payments/{id}/refund", s.adminRefund)
		r.Post("/payments/{id}/poll", s.adminPoll)
		r.Get("/notifications", s.adminListNotifications)
		r.Post("/notifications/{id}/read", s.adminMarkRead)
		r.Get("/analytics/dashboard", s.adminDashboard)
		r.Get("/analytics/clicks", s.adminListClicks)
		r.Get("/products", s.adminListProducts)
		r.Post("/products", s.adminCreateProduct)
		r.Put("/products/{id}", s.adminUpdateProduct)
		r.Patch("/products/{id}/active", s.adminSetProductActive)
	})
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: malformed json", domain.ErrInvalidArgument)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", domain.ErrInvalidArgument, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// fail logs unexpected errors and writes the error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	l := logging.With(r.Context(), s.log)
	switch domain.KindOf(err) {
	case domain.KindInternal:
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	case domain.KindGateway:
		l.Warn().Err(err).Str("path", r.URL.Path).Msg("payment provider error")
	default:
		l.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}
	api.WriteError(w, r, err)
}

// customer resolves the verified WebApp identity into a stored user.
func (s *Server) customer(r *http.Request) (*model.User, *http.Request, error) {
	info, ok := api.CustomerFrom(r.Context())
	if !ok {
		return nil, r, domain.ErrUnauthorized
	}
	u, err := s.Users.GetOrCreate(r.Context(), info)
	if err != nil {
		return nil, r, err
	}
	return u, r.WithContext(logging.WithUserID(r.Context(), u.ID)), nil
}

func page(r *http.Request) (offset, limit int) {
	q := r.URL.Query()
	offset, _ = strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, _ = strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
