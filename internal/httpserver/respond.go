package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prose-im/prose-pod-api/internal/apperrors"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, code string, message string) {
	Respond(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondAppError translates a tagged application error into an HTTP
// response and marks it logged so the request-logging middleware does not
// emit a second error line for the same failure.
func RespondAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	e := apperrors.Wrap(err)
	if !e.Logged() {
		logger.Log(context.Background(), e.Level, e.Message, "code", e.Code, "error", e.Cause)
		e.MarkLogged()
	}
	RespondError(w, e.Status, string(e.Code), e.Message)
}
