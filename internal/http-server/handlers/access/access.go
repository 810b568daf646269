package access

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"alphagate/entity"
	"alphagate/lib/api/response"
	"alphagate/lib/apperr"
	"alphagate/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Core interface {
	RequestPass(ctx context.Context, req *entity.AccessRequest) error
}

// RequestPass stores an application for an access code.
func RequestPass(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.access")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.AccessRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Debug("bind request", sl.Err(err))
			response.Fail(w, r, apperr.Validation(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		if err := handler.RequestPass(r.Context(), &req); err != nil {
			logger.Error("request pass", sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok("Request saved"))
	}
}
