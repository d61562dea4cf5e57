package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/jitter"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy — бюджет повторов вызова внешней модели.
type RetryPolicy struct {
	MaxAttempts int
	CallTimeout time.Duration // таймаут одной попытки
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func NewRetryPolicy(maxAttempts int, callTimeout time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		CallTimeout: callTimeout,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
	}
}

// Retry выполняет fn с таймаутом на каждую попытку. Повторяются только временные
// ошибки связи; остальные возвращаются сразу. Любая неудача оборачивается в
// e.ErrModelUnavailable, исходная ошибка остаётся в цепочке.
func Retry[T any](ctx context.Context, p RetryPolicy, log logger.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		res, err := callWithTimeout(ctx, p.CallTimeout, fn)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == p.MaxAttempts-1 {
			break
		}

		sleep := jitter.Exponential(p.BaseBackoff, p.MaxBackoff).Delay(attempt)
		log.Warnf("%s failed, retrying in %v (attempt %d): %v", op, sleep, attempt+1, err)
		if err := jitter.Sleep(ctx, sleep); err != nil {
			break
		}
	}

	return zero, fmt.Errorf("%s: %w: %w", op, e.ErrModelUnavailable, lastErr)
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

// IsTransient сообщает, стоит ли повторять вызов: сетевые сбои, таймауты,
// gRPC Unavailable/DeadlineExceeded/ResourceExhausted, HTTP 429 и 5xx.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableHTTPStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return IsRetryableMessage(err)
}

func retryableHTTPStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// IsRetryableMessage распознаёт временные сетевые ошибки по тексту.
func IsRetryableMessage(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
