package authenticate

import (
	"log/slog"
	"net/http"
	"strings"

	"alphagate/entity"
	"alphagate/lib/api/cont"
	"alphagate/lib/api/response"
	"alphagate/lib/apperr"
	"alphagate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Authenticate interface {
	AuthenticateByToken(token string) (*entity.Principal, error)
}

// New rejects requests without a valid admin bearer token and stores the
// verified principal in the request context.
func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {
			logger := log.With(
				mod,
				slog.String("path", r.URL.Path),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			header := r.Header.Get("Authorization")
			if len(header) == 0 {
				logger.Debug("authorization header not found")
				authFailed(w, r, "Authorization header not found")
				return
			}
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				logger.Debug("token not found")
				authFailed(w, r, "Token not found")
				return
			}
			token = strings.TrimSpace(token)

			if auth == nil {
				authFailed(w, r, "Unauthorized: authentication not enabled")
				return
			}

			principal, err := auth.AuthenticateByToken(token)
			if err != nil {
				logger.With(sl.Secret("token", token)).Warn("token rejected", sl.Err(err))
				authFailed(w, r, apperr.Message(err))
				return
			}
			ctx := cont.PutPrincipal(r.Context(), principal)

			w.Header().Set("X-User", principal.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error(message))
}
