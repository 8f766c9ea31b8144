package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/infra/logging"
	"telegram-digital-store/internal/usecase"
)

const InitDataHeader = "X-Telegram-Init-Data"

type customerKey struct{}

func WithCustomer(ctx context.Context, c usecase.CustomerInfo) context.Context {
	return context.WithValue(ctx, customerKey{}, c)
}

func CustomerFrom(ctx context.Context) (usecase.CustomerInfo, bool) {
	c, ok := ctx.Value(customerKey{}).(usecase.CustomerInfo)
	return c, ok
}

// WebAppVerifier checks Telegram Mini App init data.
type WebAppVerifier struct {
	secret []byte
	ttl    time.Duration
	skip   bool
	now    func() time.Time
	log    *zerolog.Logger
}

// NewWebAppVerifier derives the signing secret from the bot token. With skip
// set the hash is not checked, which only makes sense in development.
func NewWebAppVerifier(botToken string, ttl time.Duration, skip bool, logger *zerolog.Logger) *WebAppVerifier {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	l := logger.With().Str("component", "webapp_auth").Logger()
	if skip {
		l.Warn().Msg("WebApp init data signature check is DISABLED")
	}
	return &WebAppVerifier{secret: mac.Sum(nil), ttl: ttl, skip: skip, now: time.Now, log: &l}
}

type webAppUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Verify validates raw init data and returns the customer it describes.
func (v *WebAppVerifier) Verify(raw string) (usecase.CustomerInfo, error) {
	if raw == "" {
		return usecase.CustomerInfo{}, fmt.Errorf("%w: missing init data", domain.ErrUnauthorized)
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return usecase.CustomerInfo{}, fmt.Errorf("%w: malformed init data", domain.ErrUnauthorized)
	}

	if !v.skip {
		got := vals.Get("hash")
		if got == "" {
			return usecase.CustomerInfo{}, fmt.Errorf("%w: init data not signed", domain.ErrUnauthorized)
		}
		if !hmac.Equal([]byte(got), []byte(v.sign(vals))) {
			return usecase.CustomerInfo{}, fmt.Errorf("%w: init data signature mismatch", domain.ErrUnauthorized)
		}
		authDate, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64)
		if err != nil {
			return usecase.CustomerInfo{}, fmt.Errorf("%w: bad auth_date", domain.ErrUnauthorized)
		}
		if v.ttl > 0 && v.now().Sub(time.Unix(authDate, 0)) > v.ttl {
			return usecase.CustomerInfo{}, fmt.Errorf("%w: init data expired", domain.ErrUnauthorized)
		}
	}

	var u webAppUser
	if err := json.Unmarshal([]byte(vals.Get("user")), &u); err != nil || u.ID == 0 {
		return usecase.CustomerInfo{}, fmt.Errorf("%w: init data has no user", domain.ErrUnauthorized)
	}
	return usecase.CustomerInfo{
		TelegramID: u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}, nil
}

// sign computes the hex hash Telegram expects over the sorted key=value lines.
func (v *WebAppVerifier) sign(vals url.Values) string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+vals.Get(k))
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Require is the customer auth middleware.
func (v *WebAppVerifier) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := v.Verify(r.Header.Get(InitDataHeader))
		if err != nil {
			logging.With(r.Context(), v.log).Debug().Err(err).Msg("webapp auth rejected")
			WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCustomer(r.Context(), c)))
	})
}

// Optional attaches the customer when valid init data is present and lets
// anonymous or unverifiable requests through untouched.
func (v *WebAppVerifier) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(InitDataHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		c, err := v.Verify(raw)
		if err != nil {
			logging.With(r.Context(), v.log).Debug().Err(err).Msg("webapp auth ignored")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCustomer(r.Context(), c)))
	})
}
