package httpadapter

import (
	"net/http"

	"github.com/kirillkom/personal-ai-assistant/internal/core/domain"
)

// mapErrorToHTTPStatus maps the six retrieval-core error kinds (spec section
// 7) onto HTTP statuses. Cancelled uses 499 (nginx's client-closed-request
// convention) since net/http has no standard status for it.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrCancelled):
		return 499
	case domain.IsKind(err, domain.ErrNoChannels):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrDegraded):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
