//go:build !integration

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"telegram-digital-store/internal/config"
	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/i18n"
	"telegram-digital-store/internal/usecase"
)

func nopLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func signed(token string, authDate time.Time, user string) string {
	vals := url.Values{}
	vals.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	vals.Set("user", user)
	keys := []string{"auth_date", "user"}
	sort.Strings(keys)
	lines := []string{}
	for _, k := range keys {
		lines = append(lines, k+"="+vals.Get(k))
	}
	sec := hmac.New(sha256.New, []byte("WebAppData"))
	sec.Write([]byte(token))
	mac := hmac.New(sha256.New, sec.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	vals.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return vals.Encode()
}

func TestWebAppVerifier_Verify(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	user := `{"id":42,"username":"alice","first_name":"Alice","last_name":"Doe"}`

	v := NewWebAppVerifier("bot:token", time.Hour, false, nopLogger())
	v.now = func() time.Time { return now }

	t.Run("valid data yields the customer", func(t *testing.T) {
		c, err := v.Verify(signed("bot:token", now.Add(-time.Minute), user))
		require.NoError(t, err)
		assert.EqualValues(t, 42, c.TelegramID)
		assert.Equal(t, "alice", c.Username)
		assert.Equal(t, "Doe", c.LastName)
	})

	t.Run("signed with another bot token", func(t *testing.T) {
		_, err := v.Verify(signed("other:token", now, user))
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("stale auth_date", func(t *testing.T) {
		_, err := v.Verify(signed("bot:token", now.Add(-2*time.Hour), user))
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("missing hash", func(t *testing.T) {
		_, err := v.Verify("auth_date=1&user=" + url.QueryEscape(user))
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("skip mode still needs a user", func(t *testing.T) {
		dev := NewWebAppVerifier("", 0, true, nopLogger())
		c, err := dev.Verify("user=" + url.QueryEscape(user))
		require.NoError(t, err)
		assert.EqualValues(t, 42, c.TelegramID)

		_, err = dev.Verify("query_id=x")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestAuthManager(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	a := NewAuthManager(config.AdminConfig{
		Email: "root@example.com", PasswordHash: string(hash),
		JWTSecret: "0123456789abcdef", TokenTTL: time.Minute,
	}, true)

	assert.NoError(t, a.Login(" ROOT@example.com ", "pw"))
	assert.ErrorIs(t, a.Login("root@example.com", "nope"), domain.ErrUnauthorized)
	assert.ErrorIs(t, a.Login("other@example.com", "pw"), domain.ErrUnauthorized)

	rec := httptest.NewRecorder()
	tok, exp, err := a.Mint(rec, "root@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	cookie := rec.Result().Cookies()[0]
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/api/orders", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		claims, err := a.ParseFromRequest(req)
		require.NoError(t, err)
		assert.Equal(t, "root@example.com", claims.Subject)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/api/orders", nil)
		req.AddCookie(cookie)
		_, err := a.ParseFromRequest(req)
		assert.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { a.now = time.Now }()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		_, err := a.ParseFromRequest(req)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, `"kind":"not_found"`},
		{fmt.Errorf("%w: bad", domain.ErrInvalidArgument), http.StatusBadRequest, `"kind":"invalid_request"`},
		{domain.ErrInvalidSignature, http.StatusBadRequest, `"kind":"invalid_signature"`},
		{&domain.GatewayError{Provider: "square", Op: "create_payment", StatusCode: 503}, http.StatusBadGateway, `"kind":"gateway_error"`},
		{domain.ErrRateLimited, http.StatusTooManyRequests, `"kind":"rate_limited"`},
		{errors.New("dial tcp 10.0.0.1:5432"), http.StatusInternalServerError, `"message":"internal error"`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, nil, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), tc.body)
		assert.NotContains(t, rec.Body.String(), "10.0.0.1")
	}
}

func TestMiddleware(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), TraceID(nopLogger()), Recover(nopLogger()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	assert.Contains(t, rec.Body.String(), "internal_error")
}

type pollOnly struct {
	usecase.PaymentUseCase
	status model.PaymentStatus
	err    error
	polled []string
}

func (p *pollOnly) PollPaymentStatus(ctx context.Context, id string) (model.PaymentStatus, error) {
	p.polled = append(p.polled, id)
	return p.status, p.err
}

func (p *pollOnly) List(ctx context.Context, f repository.PaymentFilter) ([]*model.Payment, error) {
	return []*model.Payment{{ID: "latest-of-" + f.OrderID}}, nil
}

func TestReturnPage(t *testing.T) {
	get := func(t *testing.T, uc usecase.PaymentUseCase, target string) *httptest.ResponseRecorder {
		t.Helper()
		texts, err := i18n.NewBundle(i18n.LocalesFS)
		require.NoError(t, err)
		r := chi.NewRouter()
		NewReturnPage(uc, "store_bot", texts, nopLogger()).Register(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("succeeded payment", func(t *testing.T) {
		uc := &pollOnly{status: model.PaymentStatusSucceeded}
		rec := get(t, uc, "/payments/return?payment_id=p1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Payment Successful")
		assert.Contains(t, rec.Body.String(), "https://t.me/store_bot")
		assert.Equal(t, []string{"p1"}, uc.polled)
	})

	t.Run("order id resolves the latest payment", func(t *testing.T) {
		uc := &pollOnly{status: model.PaymentStatusPending}
		rec := get(t, uc, "/payments/return?order_id=o9")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "being processed")
		assert.Equal(t, []string{"latest-of-o9"}, uc.polled)
	})

	t.Run("provider down still renders", func(t *testing.T) {
		uc := &pollOnly{err: &domain.GatewayError{Provider: "yookassa", Op: "get_payment", StatusCode: 503}}
		rec := get(t, uc, "/payments/return?payment_id=p1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "could not confirm")
	})

	t.Run("russian texts", func(t *testing.T) {
		texts, err := i18n.NewBundle(i18n.LocalesFS)
		require.NoError(t, err)
		r := chi.NewRouter()
		NewReturnPage(&pollOnly{status: model.PaymentStatusSucceeded}, "", texts, nopLogger()).Register(r)
		req := httptest.NewRequest(http.MethodGet, "/payments/return?payment_id=p1", nil)
		req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Contains(t, rec.Body.String(), "Платёж получен")
		assert.NotContains(t, rec.Body.String(), "t.me")
	})

	t.Run("no reference", func(t *testing.T) {
		rec := get(t, &pollOnly{}, "/payments/return")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
