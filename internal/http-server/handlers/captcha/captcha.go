package captcha

import (
	"context"
	"log/slog"
	"net/http"

	"alphagate/entity"
	"alphagate/lib/api/response"
	"alphagate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	IssueCaptcha(ctx context.Context) (*entity.CaptchaView, error)
}

func Issue(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.captcha")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		view, err := handler.IssueCaptcha(r.Context())
		if err != nil {
			logger.Error("issue captcha", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		logger.Debug("captcha issued", slog.String("id", view.ID))

		w.Header().Set("Cache-Control", "no-store")
		render.JSON(w, r, view)
	}
}
