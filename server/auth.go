package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 12 * time.Hour

var errUnauthorized = errors.New("unauthorized")

// principal identifies an authenticated caller.
type principal struct {
	Subject string // "sync" for access-key callers, username for JWT
	Admin   bool
}

// loginRequest is the POST /api/auth/login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the issued bearer token.
type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin checks the admin credentials and issues a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid login body")
		return
	}

	auth := s.cfg.Auth
	if auth.AdminUser == "" || auth.AdminPass == "" {
		writeJSONError(w, http.StatusForbidden, "login disabled: no admin configured")
		return
	}
	if req.Username != auth.AdminUser ||
		bcrypt.CompareHashAndPassword([]byte(auth.AdminPass), []byte(req.Password)) != nil {
		s.logger.Warn("login rejected", slog.String("username", req.Username))
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	expiry := time.Now().Add(tokenTTL)
	token, err := s.issueToken(req.Username, expiry)
	if err != nil {
		s.logger.Error("issue token", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiry})
}

// handleMe reports who the bearer token belongs to.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := s.authenticate(bearerToken(r))
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject": p.Subject,
		"admin":   p.Admin,
	})
}

// authMiddleware rejects requests that carry neither the access key nor
// a valid JWT.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.authenticate(bearerToken(r)); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves a bearer token to a principal. The shared
// access key is tried first, then JWT verification.
func (s *Server) authenticate(token string) (principal, error) {
	if token == "" {
		return principal{}, errUnauthorized
	}

	if key := s.cfg.Auth.AccessKey; key != "" {
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
			return principal{Subject: "sync", Admin: true}, nil
		}
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret(), nil
	})
	if err != nil || !parsed.Valid {
		return principal{}, errUnauthorized
	}
	return principal{Subject: claims.Subject, Admin: true}, nil
}

// issueToken signs a short-lived HS256 token for the given subject.
func (s *Server) issueToken(subject string, expiry time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "centrald",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// jwtSecret returns the configured signing secret, generating an
// ephemeral one on first use when none is set. Ephemeral secrets mean
// tokens don't survive a restart, which is acceptable for dev setups.
func (s *Server) jwtSecret() []byte {
	if s.cfg.Auth.JWTSecret != "" {
		return []byte(s.cfg.Auth.JWTSecret)
	}
	s.secretOnce.Do(func() {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("generate jwt secret: %v", err))
		}
		s.generatedSecret = []byte(hex.EncodeToString(buf))
		s.logger.Warn("auth.jwt_secret not set, generated ephemeral secret")
	})
	return s.generatedSecret
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}
