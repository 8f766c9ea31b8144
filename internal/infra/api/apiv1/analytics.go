package apiv1

import (
	"net"
	"net/http"
	"strings"
	"time"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/api"
	"telegram-digital-store/internal/usecase"
)

// trackClick records a mini-app interaction. Init data is optional; verified
// visitors are attributed to their user.
func (s *Server) trackClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	in := usecase.ClickInput{
		ProductID: req.ProductID,
		Page:      req.Page,
		Action:    req.Action,
		Metadata:  req.Metadata,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if _, ok := api.CustomerFrom(r.Context()); ok {
		u, rr, err := s.customer(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		in.UserID, r = u.ID, rr
	}
	c, err := s.Analytics.TrackClick(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"status": "ok", "click_id": c.ID})
}

func (s *Server) adminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.Analytics.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toDashboard(d))
}

// adminListClicks accepts product_id, action and since (RFC 3339) filters.
func (s *Server) adminListClicks(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	q := r.URL.Query()
	f := repository.ClickFilter{
		ProductID: q.Get("product_id"),
		Action:    q.Get("action"),
		Offset:    offset,
		Limit:     limit,
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.fail(w, r, domain.ErrInvalidArgument)
			return
		}
		f.Since = since
	}
	items, err := s.Analytics.Clicks(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": mapSlice(items, toClick)})
}

// clientIP prefers the first X-Forwarded-For hop set by the ingress proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
