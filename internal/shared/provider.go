package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ProviderError ошибка удалённого провайдера (эмбеддинги или генерация)
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is позволяет проверять errors.Is(err, ErrProvider)
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindProvider
}

// NewProviderError классифицирует ошибку по HTTP статусу
func NewProviderError(provider, op string, status int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Retryable:  RetryableStatus(status) || errors.Is(cause, context.DeadlineExceeded),
		Cause:      cause,
	}
}

// RetryableStatus true для 429 и 5xx
func RetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// IsRetryable проверяет, можно ли повторить вызов
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// RetryDelay экспоненциальная задержка: 200ms, 400ms, 800ms ... не больше 5s
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return 5 * time.Second
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// Retry вызывает fn до maxRetries+1 раз, пока ошибка retryable
func Retry[T any](ctx context.Context, maxRetries int, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == maxRetries {
			break
		}
		t := time.NewTimer(RetryDelay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	return zero, lastErr
}
