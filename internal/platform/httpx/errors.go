// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/gramy/gramy/internal/shared"
)

// StatusFor maps an action failure kind to an HTTP status.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindAuthentication:
		return http.StatusUnauthorized
	case shared.KindAuthorization:
		return http.StatusForbidden
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as {"error": message} with the mapped status.
func RespondError(w http.ResponseWriter, err error) {
	Error(w, StatusFor(shared.KindOf(err)), shared.UserSafeMessage(err))
}
