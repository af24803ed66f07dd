package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"trattoria/globals"
	"trattoria/rdx"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

// JWT claims
type Claims struct {
	Username string   `json:"username"`
	UserID   string   `json:"userId"`
	Role     []string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return slices.Contains(c.Role, globals.RoleAdmin)
}

var errTokenFormat = errors.New("invalid token format")

// bearer extracts the raw token from an Authorization header value.
func bearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing token")
	}
	if !strings.HasPrefix(header, "Bearer ") || len(header) < 8 {
		return "", errTokenFormat
	}
	return header[7:], nil
}

// ParseToken verifies a raw JWT and returns its claims.
func ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return globals.JwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ValidateJWT accepts the full Authorization header value.
func ValidateJWT(header string) (*Claims, error) {
	raw, err := bearer(header)
	if err != nil {
		return nil, err
	}
	return ParseToken(raw)
}

// Revoked reports whether a token id was invalidated by logout. It checks
// the Redis denylist by default; main swaps it for the in-process store when
// Redis is unavailable.
var Revoked = func(ctx context.Context, jti string) bool {
	if rdx.Conn == nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	ok, err := rdx.Exists(cctx, "revoked:"+jti)
	if err != nil {
		log.Warn().Err(err).Msg("token revocation lookup failed")
		return false
	}
	return ok
}

func revoked(ctx context.Context, claims *Claims) bool {
	return claims.ID != "" && Revoked(ctx, claims.ID)
}

func withClaims(r *http.Request, claims *Claims) *http.Request {
	ctx := context.WithValue(r.Context(), globals.UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, globals.UsernameKey, claims.Username)
	ctx = context.WithValue(ctx, globals.RoleKey, claims.Role)
	ctx = context.WithValue(ctx, globals.TokenIDKey, claims.ID)
	return r.WithContext(ctx)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}

func Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		raw, err := bearer(r.Header.Get("Authorization"))
		if err != nil {
			unauthorized(w, err.Error())
			return
		}
		claims, err := ParseToken(raw)
		if err != nil {
			unauthorized(w, "Invalid token")
			return
		}
		if revoked(r.Context(), claims) {
			unauthorized(w, "Token has been revoked")
			return
		}
		next(w, withClaims(r, claims), ps)
	}
}

// RequireAdmin authenticates the caller and rejects non-admin roles.
func RequireAdmin(next httprouter.Handle) httprouter.Handle {
	return Authenticate(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roles, _ := r.Context().Value(globals.RoleKey).([]string)
		if !slices.Contains(roles, globals.RoleAdmin) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"Admin access required"}`))
			return
		}
		next(w, r, ps)
	})
}

func OptionalAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if raw, err := bearer(r.Header.Get("Authorization")); err == nil {
			if claims, err := ParseToken(raw); err == nil && !revoked(r.Context(), claims) {
				r = withClaims(r, claims)
			}
		}
		// Proceed regardless of token state
		next(w, r, ps)
	}
}

// Chain composes middlewares so the first one listed runs outermost.
func Chain(mws ...func(httprouter.Handle) httprouter.Handle) func(httprouter.Handle) httprouter.Handle {
	return func(h httprouter.Handle) httprouter.Handle {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
