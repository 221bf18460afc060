package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/permission"
	"github.com/MrEthical07/taskAuth/tasks"
	"github.com/go-playground/validator/v10"
)

// errUnknownUser marks a lookup miss for a user named in the request path,
// as opposed to the caller's own account disappearing.
var errUnknownUser = errors.New("user not found")

const (
	problemUnauthorized = "unauthorized"
	problemInternal     = "internal error"
)

// writeError maps err to a problem document.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		Problem(w, ProblemDetail{
			Status: http.StatusBadRequest,
			Title:  "invalid request",
			Errors: fieldErrors(verrs),
		})
	case errors.Is(err, errBadJSON), errors.Is(err, taskAuth.ErrInvalidRequest):
		Problem(w, ProblemDetail{Status: http.StatusBadRequest, Title: "invalid request", Detail: err.Error()})
	case errors.Is(err, errUnknownUser), errors.Is(err, tasks.ErrTaskNotFound):
		Problem(w, ProblemDetail{Status: http.StatusNotFound, Title: err.Error()})
	case taskAuth.IsUnauthenticated(err):
		Problem(w, ProblemDetail{Status: http.StatusUnauthorized, Title: problemUnauthorized})
	case taskAuth.IsForbidden(err):
		Problem(w, ProblemDetail{Status: http.StatusForbidden, Title: "forbidden", Detail: permission.ReasonOf(err)})
	case errors.Is(err, taskAuth.ErrDuplicateIdentity):
		Problem(w, ProblemDetail{Status: http.StatusConflict, Title: "username or email already registered"})
	case taskAuth.IsConflict(err):
		Problem(w, ProblemDetail{Status: http.StatusConflict, Title: "conflicting update", Retryable: true})
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		Problem(w, ProblemDetail{Status: http.StatusInternalServerError, Title: problemInternal})
	}
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = "is required"
		case "email":
			out[field] = "must be a valid email address"
		case "min":
			out[field] = "must be at least " + fe.Param() + " characters"
		case "max":
			out[field] = "must be at most " + fe.Param() + " characters"
		case "oneof":
			out[field] = "must be one of " + fe.Param()
		default:
			out[field] = "is invalid"
		}
	}
	return out
}
