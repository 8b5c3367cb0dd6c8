package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bookie/internal/app"
	"bookie/pkg/auth"
	"bookie/pkg/ingest"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

// writeAppError maps engine errors onto HTTP statuses. Unrecognized errors
// are reported as internal without leaking their message.
func writeAppError(w http.ResponseWriter, err error) {
	var rejected *app.BookRejectedError
	switch {
	case errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrChapterNotFound),
		errors.Is(err, app.ErrProfileNotFound),
		errors.Is(err, app.ErrQuestionNotFound),
		errors.Is(err, app.ErrAnswerNotFound),
		errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &rejected):
		writeError(w, http.StatusConflict, rejected.Error())
	case errors.Is(err, app.ErrBookNotApproved),
		errors.Is(err, app.ErrAlreadySubscribed),
		errors.Is(err, app.ErrNotSubscribed),
		errors.Is(err, app.ErrSelfSubscription):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInsufficientPoints):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, app.ErrForbidden), errors.Is(err, app.ErrNotChapterOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrContentTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func errorCode(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case strings.Contains(message, "incorrect email address or password"):
		return "AUTH_INVALID_CREDENTIALS"
	case strings.Contains(message, "email already exists"):
		return "AUTH_EMAIL_EXISTS"
	case strings.Contains(message, "rate limit"):
		return "AUTH_RATE_LIMITED"
	case message == "book not found":
		return "BOOK_NOT_FOUND"
	case strings.Contains(message, "not been approved"):
		return "BOOK_NOT_APPROVED"
	case strings.Contains(message, "was rejected"):
		return "BOOK_REJECTED"
	case strings.Contains(message, "your own book"):
		return "SUBSCRIPTION_SELF"
	case strings.Contains(message, "already subscribed"):
		return "SUBSCRIPTION_EXISTS"
	case strings.Contains(message, "no subscription"):
		return "SUBSCRIPTION_MISSING"
	case strings.Contains(message, "insufficient points"):
		return "POINTS_INSUFFICIENT"
	case message == "chapter not found":
		return "CHAPTER_NOT_FOUND"
	case strings.Contains(message, "owned set"):
		return "CHAPTER_NOT_OWNED"
	case strings.Contains(message, "size limit"):
		return "UPLOAD_TOO_LARGE"
	case strings.Contains(message, "unsupported document format"):
		return "UPLOAD_UNSUPPORTED_FORMAT"
	case message == "question not found":
		return "QUESTION_NOT_FOUND"
	case message == "answer not found":
		return "QUESTION_ANSWER_NOT_FOUND"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "REQUEST_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}
