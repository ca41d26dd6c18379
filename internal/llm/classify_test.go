package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spherical/drawn-weight/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.FailureReason
	}{
		{"nil", nil, ""},
		{"http 429", &StatusError{Code: 429}, domain.ReasonQuotaExhausted},
		{"http 404", &StatusError{Code: 404, Body: "no such model"}, domain.ReasonModelUnavailable},
		{"http 500 with quota text", &StatusError{Code: 500, Body: "daily quota reached"}, domain.ReasonQuotaExhausted},
		{"http 500 plain", &StatusError{Code: 500, Body: "boom"}, domain.ReasonUnclassified},
		{"wrapped status error", domain.APIError("call", &StatusError{Code: 429}), domain.ReasonQuotaExhausted},
		{"googleapi 429", &googleapi.Error{Code: 429, Message: "slow down"}, domain.ReasonQuotaExhausted},
		{"googleapi 404", &googleapi.Error{Code: 404}, domain.ReasonModelUnavailable},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "x"), domain.ReasonQuotaExhausted},
		{"grpc not found", status.Error(codes.NotFound, "x"), domain.ReasonModelUnavailable},
		{"grpc unimplemented", status.Error(codes.Unimplemented, "x"), domain.ReasonModelUnavailable},
		{"grpc internal", status.Error(codes.Internal, "x"), domain.ReasonUnclassified},
		{"text rate limit", errors.New("Rate limit exceeded for model"), domain.ReasonQuotaExhausted},
		{"text resource exhausted", errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED"), domain.ReasonQuotaExhausted},
		{"text model missing", errors.New("models/gemini-x is not found for API version v1beta"), domain.ReasonModelUnavailable},
		{"text unsupported", errors.New("generateContent is not supported for this model"), domain.ReasonModelUnavailable},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), domain.ReasonUnclassified},
		{"cancelled", context.Canceled, domain.ReasonUnclassified},
		{"other", errors.New("connection reset by peer"), domain.ReasonUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "HTTP 503", (&StatusError{Code: 503}).Error())
	assert.Equal(t, "HTTP 429: too many", (&StatusError{Code: 429, Body: "too many"}).Error())
}
