package httpadapter

import (
	"net/http"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type errorKind struct {
	kind   error
	status int
	code   string
}

// Checked in order: an error wrapped with several kinds takes the first match.
// Unavailable outranks the capability kinds it may wrap.
var errorKinds = []errorKind{
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrCapabilityTimeout, http.StatusGatewayTimeout, "capability_timeout"},
	{domain.ErrAccessDenied, http.StatusBadGateway, "capability_access_denied"},
	{domain.ErrTemporary, http.StatusServiceUnavailable, "temporary"},
}

func classifyError(err error) (int, string) {
	for _, k := range errorKinds {
		if domain.IsKind(err, k.kind) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}
