package admin

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"alphagate/entity"
	"alphagate/internal/export"
	"alphagate/lib/api/cont"
	"alphagate/lib/api/response"
	"alphagate/lib/apperr"
	"alphagate/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Core interface {
	AdminLogin(ctx context.Context, credentials *entity.AdminCredentials) (string, error)
	AccessRequests(ctx context.Context) ([]*entity.AccessRequest, error)
	LoginRecords(ctx context.Context) ([]*entity.LoginRecord, error)
	ApproveRequest(ctx context.Context, id string, approver *entity.Principal) (*entity.AccessCode, error)
	GenerateCode(ctx context.Context, spec *entity.IssueSpec, issuer *entity.Principal) (*entity.AccessCode, error)
	Export(ctx context.Context, w io.Writer) error
}

func requestLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.admin"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("admin", cont.GetPrincipal(r.Context()).Identity()),
	)
}

func Login(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var credentials entity.AdminCredentials
		if err := render.Bind(r, &credentials); err != nil {
			logger.Debug("bind request", sl.Err(err))
			response.Fail(w, r, apperr.Validation("Email and password are required"))
			return
		}

		token, err := handler.AdminLogin(r.Context(), &credentials)
		if err != nil {
			response.Fail(w, r, err)
			return
		}

		render.JSON(w, r, &entity.TokenResponse{Token: token})
	}
}

func Requests(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		requests, err := handler.AccessRequests(r.Context())
		if err != nil {
			logger.Error("list access requests", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		if requests == nil {
			requests = []*entity.AccessRequest{}
		}

		render.JSON(w, r, requests)
	}
}

func Logins(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		records, err := handler.LoginRecords(r.Context())
		if err != nil {
			logger.Error("list login records", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		if records == nil {
			records = []*entity.LoginRecord{}
		}

		render.JSON(w, r, records)
	}
}

func Approve(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logger := requestLogger(log, r).With(slog.String("request", id))

		code, err := handler.ApproveRequest(r.Context(), id, cont.GetPrincipal(r.Context()))
		if err != nil {
			logger.Warn("approve request", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		logger.Info("request approved", sl.Secret("code", code.Code))

		render.JSON(w, r, &entity.CodeResponse{Success: true, Code: code.Code})
	}
}

func Generate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var spec entity.IssueSpec
		if r.ContentLength != 0 {
			if err := render.Bind(r, &spec); err != nil {
				logger.Debug("bind request", sl.Err(err))
				response.Fail(w, r, apperr.Validation(err.Error()))
				return
			}
		}

		code, err := handler.GenerateCode(r.Context(), &spec, cont.GetPrincipal(r.Context()))
		if err != nil {
			logger.Error("generate code", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		logger.Info("code generated",
			slog.Bool("single_use", code.SingleUse),
			sl.Email("issued_to", code.IssuedToEmail),
		)

		render.JSON(w, r, &entity.CodeResponse{Success: true, Code: code.Code})
	}
}

// Export streams the spreadsheet; the body is buffered so failures still get a JSON error.
func Export(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var buf bytes.Buffer
		if err := handler.Export(r.Context(), &buf); err != nil {
			logger.Error("export", sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		if _, err := buf.WriteTo(w); err != nil {
			logger.Error("write export", sl.Err(err))
		}
	}
}
