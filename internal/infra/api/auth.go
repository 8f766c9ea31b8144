package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"telegram-digital-store/internal/config"
	"telegram-digital-store/internal/domain"
)

// ===== Admin session/JWT primitives =====

type AuthConfig struct {
	Email        string
	PasswordHash []byte
	HMACSecret   []byte
	CookieName   string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct {
	cfg AuthConfig
	now func() time.Time
}

func NewAuthManager(cfg config.AdminConfig, secure bool) *AuthManager {
	return &AuthManager{
		cfg: AuthConfig{
			Email:        strings.ToLower(strings.TrimSpace(cfg.Email)),
			PasswordHash: []byte(cfg.PasswordHash),
			HMACSecret:   []byte(cfg.JWTSecret),
			CookieName:   "admin_session",
			SecureCookie: secure, // true in prod (TLS)
			TTL:          cfg.TokenTTL,
		},
		now: time.Now,
	}
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Login checks the single admin account. Unknown email and wrong password
// are indistinguishable to the caller.
func (a *AuthManager) Login(email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.cfg.Email)) == 1
	pwErr := bcrypt.CompareHashAndPassword(a.cfg.PasswordHash, []byte(password))
	if !emailOK || pwErr != nil {
		return domain.ErrUnauthorized
	}
	return nil
}

// Mint signs a token for subject and sets it as an HttpOnly cookie too.
func (a *AuthManager) Mint(w http.ResponseWriter, subject string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.cfg.TTL)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Subject:   subject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/admin",
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, exp, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	// Cookie
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		return a.parse(c.Value)
	}
	return nil, domain.ErrUnauthorized
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Role != "admin" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid admin token.
func (a *AuthManager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.ParseFromRequest(r); err != nil {
			WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
