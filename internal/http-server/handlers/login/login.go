package login

import (
	"context"
	"log/slog"
	"net/http"

	"alphagate/entity"
	"alphagate/lib/api/remote"
	"alphagate/lib/api/response"
	"alphagate/lib/apperr"
	"alphagate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	Login(ctx context.Context, req *entity.LoginRequest, ip string) (*entity.LoginResult, error)
}

func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.login")
		ip := remote.IP(r)

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("ip", ip),
		)

		var req entity.LoginRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Debug("bind request", sl.Err(err))
			response.Fail(w, r, apperr.Validation("All fields are required"))
			return
		}

		result, err := handler.Login(r.Context(), &req, ip)
		if err != nil {
			logger.Debug("login failed", sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		render.JSON(w, r, result)
	}
}
