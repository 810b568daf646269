package response

import (
	"net/http"

	"alphagate/lib/apperr"
	"alphagate/lib/clock"

	"github.com/go-chi/render"
)

type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func Ok(message string) Response {
	return Response{
		Success:   true,
		Message:   message,
		Timestamp: clock.Now(),
	}
}

func Error(message string) Response {
	return Response{
		Success:   false,
		Message:   message,
		Timestamp: clock.Now(),
	}
}

// FromError picks the status and client-safe message for err.
func FromError(err error) (int, Response) {
	return apperr.HTTPStatus(err), Error(apperr.Message(err))
}

// Fail writes the error response for err.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, body)
}
