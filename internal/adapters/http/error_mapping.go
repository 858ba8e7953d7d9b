package httpadapter

import (
	"net/http"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrArticleNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
