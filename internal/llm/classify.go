package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spherical/drawn-weight/internal/domain"
)

// StatusError is a non-success reply from an HTTP vision endpoint
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Classify maps a model call failure to a FailureReason. Structured codes
// win over message text; text matching covers SDKs that only stringify.
func Classify(err error) domain.FailureReason {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ReasonUnclassified
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if r := classifyStatus(statusErr.Code); r != domain.ReasonUnclassified {
			return r
		}
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if r := classifyStatus(apiErr.HTTPCode()); r != domain.ReasonUnclassified {
			return r
		}
		if st := apiErr.GRPCStatus(); st != nil {
			if r := classifyCode(st.Code()); r != domain.ReasonUnclassified {
				return r
			}
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if r := classifyStatus(gErr.Code); r != domain.ReasonUnclassified {
			return r
		}
	}

	if st, ok := status.FromError(err); ok {
		if r := classifyCode(st.Code()); r != domain.ReasonUnclassified {
			return r
		}
	}

	return classifyText(err.Error())
}

func classifyStatus(code int) domain.FailureReason {
	switch code {
	case http.StatusTooManyRequests: // 429
		return domain.ReasonQuotaExhausted
	case http.StatusNotFound: // 404
		return domain.ReasonModelUnavailable
	default:
		return domain.ReasonUnclassified
	}
}

func classifyCode(code codes.Code) domain.FailureReason {
	switch code {
	case codes.ResourceExhausted:
		return domain.ReasonQuotaExhausted
	case codes.NotFound, codes.Unimplemented:
		return domain.ReasonModelUnavailable
	default:
		return domain.ReasonUnclassified
	}
}

var (
	quotaSignals = []string{"429", "quota", "rate limit", "rate-limit", "resource_exhausted", "resource exhausted", "too many requests"}
	modelSignals = []string{"404", "not found", "not_found", "is not supported", "unsupported model", "no endpoints found"}
)

func classifyText(msg string) domain.FailureReason {
	msg = strings.ToLower(msg)
	for _, s := range quotaSignals {
		if strings.Contains(msg, s) {
			return domain.ReasonQuotaExhausted
		}
	}
	for _, s := range modelSignals {
		if strings.Contains(msg, s) {
			return domain.ReasonModelUnavailable
		}
	}
	return domain.ReasonUnclassified
}
