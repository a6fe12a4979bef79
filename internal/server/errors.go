package server

import (
	"errors"
	"net/http"

	"github.com/vietddude/flagfetch/internal/core/domain"
	"github.com/vietddude/flagfetch/internal/infra/remote/retry"
)

// StatusClientClosedRequest is the non-standard code for requests the
// client abandoned.
const StatusClientClosedRequest = 499

// HealthStatus is the aggregate state reported by /health.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusCritical HealthStatus = "critical"
)

type healthResponse struct {
	Status HealthStatus      `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Error          string `json:"error"`
	Class          string `json:"class,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// statusFor maps a fetch error to the response code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidSubject):
		return http.StatusBadRequest
	case errors.Is(err, retry.ErrCancelled):
		return StatusClientClosedRequest
	case errors.Is(err, retry.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, retry.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	if !errors.Is(err, domain.ErrInvalidSubject) {
		re := retry.AsError(err)
		resp.Class = re.Class.String()
		resp.UpstreamStatus = re.StatusCode
	}

	switch {
	case code == StatusClientClosedRequest:
		s.logger.Debug("Request cancelled by client")
	case code >= http.StatusInternalServerError:
		s.logger.Warn("Request failed", "status", code, "class", resp.Class, "error", err)
	}
	writeJSON(w, code, resp)
}
