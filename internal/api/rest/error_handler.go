package rest

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	domainErrors "github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// writeError maps an error onto an HTTP status and a JSON error envelope
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, body := classifyError(err)

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"status", status,
			"error", err,
			"request_id", RequestID(r.Context()),
		)
	}

	respondJSON(w, status, body)
}

func classifyError(err error) (int, errorBody) {
	var appErr *domainErrors.AppError
	if stderrors.As(err, &appErr) {
		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		detail := errorDetail{Code: appErr.Code, Message: appErr.Message}
		if len(appErr.Details) > 0 {
			parts := make([]string, 0, len(appErr.Details))
			for k, v := range appErr.Details {
				parts = append(parts, k+"="+toString(v))
			}
			detail.Details = strings.Join(parts, ", ")
		}
		return status, errorBody{Error: detail}
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field()+" failed "+fe.Tag())
		}
		return http.StatusBadRequest, errorBody{Error: errorDetail{
			Code:    "VALIDATION_FAILED",
			Message: "Request validation failed",
			Details: strings.Join(fields, "; "),
		}}
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout, errorBody{Error: errorDetail{
			Code:    "REQUEST_TIMEOUT",
			Message: "Request was canceled or timed out",
		}}
	}

	return http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "An internal error occurred",
	}}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
