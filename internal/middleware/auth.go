package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/friendlychat-dev/friendlychat/internal/auth"
	"github.com/friendlychat-dev/friendlychat/internal/domain"
	internal_errors "github.com/friendlychat-dev/friendlychat/internal/errors"
	"github.com/friendlychat-dev/friendlychat/internal/utils"
)

// Key to store the user claims in the request context
type key int

const UserClaimsKey key = 0

var errNoToken = &internal_errors.ErrorWithStatusCode{Message: "Missing access token", StatusCode: http.StatusUnauthorized}

type Auth struct {
	auth *auth.Service
}

func NewAuth(authService *auth.Service) *Auth {
	return &Auth{auth: authService}
}

// NeedAuth returns middleware that requires authentication.
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.extractUser(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), UserClaimsKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth populates the user context when a valid token is
// present but lets anonymous requests through.
func (a *Auth) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, err := a.extractUser(r); err == nil {
				ctx := context.WithValue(r.Context(), UserClaimsKey, user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Auth) extractUser(r *http.Request) (*domain.User, error) {
	// cookie for browser clients, Authorization header for API clients
	var tokenString string
	if accessCookie, err := r.Cookie("accessToken"); err == nil {
		tokenString = accessCookie.Value
	} else if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		tokenString = token
	}

	if tokenString == "" {
		return nil, errNoToken
	}

	return a.auth.UserFromTokenString(tokenString)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(UserClaimsKey).(*domain.User)
	return user
}
