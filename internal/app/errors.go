package app

import (
	"net/http"

	"halaqa/internal/apperr"
)

// HTTPStatus maps a failure kind to its response status. Untyped errors are 500.
func HTTPStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict, apperr.ErrInvalidState:
		return http.StatusConflict
	case apperr.ErrInvalidCredential:
		return http.StatusUnauthorized
	case apperr.ErrSuspended:
		return http.StatusForbidden
	case apperr.ErrInvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// UserMessage returns the text shown to the client. Internal failures never
// leak their cause.
func UserMessage(err error) string {
	if apperr.KindOf(err) == nil {
		return "something went wrong, please try again"
	}
	return apperr.Message(err, apperr.KindOf(err).Error())
}
