package booking

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
	Book(ctx context.Context, booking *entity.Booking, ip string) error
}

func Book(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.booking")
		ip := remote.IP(r)

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("ip", ip),
		)

		var booking entity.Booking
		if err := render.Bind(r, &booking); err != nil {
			logger.Debug("bind request", sl.Err(err))
			response.Fail(w, r, apperr.Validation("All fields are required"))
			return
		}

		if err := handler.Book(r.Context(), &booking, ip); err != nil {
			response.Fail(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok("Booking saved"))
	}
}
