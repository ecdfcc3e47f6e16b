package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"realty_content/internal/app"
	"realty_content/internal/domain"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
}

type userKey struct{}

// UserFrom returns the account attached by AdminAuth, if any.
func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(domain.User)
	return u, ok
}

// AdminAuth guards the admin API with HTTP basic auth checked against the
// users collection. A nil authenticator disables the check.
func AdminAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if a == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			u, err := a.Authenticate(r.Context(), email, password)
			if err != nil {
				if !errors.Is(err, app.ErrInvalidCredentials) {
					log.Error().Err(err).Msg("admin authentication failed")
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
				writeError(w, http.StatusUnauthorized, "Invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
		})
	}
}
