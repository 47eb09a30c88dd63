package server

import (
	"net/http"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
)

// HTTPStatus returns the HTTP status code for an error kind.
func HTTPStatus(kind string) int {
	switch kind {
	case crawlerr.KindValidation:
		return http.StatusBadRequest
	case crawlerr.KindBlocked:
		return http.StatusForbidden
	case crawlerr.KindTimeout:
		return http.StatusGatewayTimeout
	case crawlerr.KindBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
