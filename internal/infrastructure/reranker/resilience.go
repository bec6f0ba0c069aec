package reranker

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/personal-ai-assistant/internal/infrastructure/resilience"
)

// ClassifyError maps a reranker call failure to a resilience.ErrorClassification.
// The orchestrator falls back to the fused order on a failed rerank (spec
// section 4.7's failure semantics for stage 7), so retries here exist only
// to smooth over transient blips before that fallback kicks in.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode != 0 {
			return resilience.ErrorClassification{
				Retryable:     isRetryableHTTPStatus(statusErr.StatusCode),
				RecordFailure: true,
			}
		}
		var netErr net.Error
		if errors.As(statusErr.cause, &netErr) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
