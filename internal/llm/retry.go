// Package llm содержит клиент Gemini и контроллер повторов вокруг вызова
// модели: линейный backoff и понижение модели при исчерпании квоты.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrEmptyResponse: вызов прошел по транспорту, но текста нет. Не
// ретраится — это другой класс сбоя, чем квота.
var ErrEmptyResponse = errors.New("model returned empty response")

// QuotaExhaustedError means every retry hit a rate/quota limit.
type QuotaExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("quota exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *QuotaExhaustedError) Unwrap() error { return e.LastErr }

// UpstreamError is a non-retryable backend failure: bad key, malformed
// request and the like will not self-resolve.
type UpstreamError struct {
	Model string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure on model %s: %v", e.Model, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// InvokeFunc — внешний вызов модели: (model, prompt) → текст ответа.
type InvokeFunc func(ctx context.Context, model, prompt string) (string, error)

// Caller drives an LLM call against transient quota failures. Attempt n
// (0-indexed) uses Models[min(n, len-1)]: the strongest model first,
// degrading to older tiers — quota exhaustion on one tier often leaves
// capacity on another.
type Caller struct {
	Models     []string
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      func(time.Duration) // overridable in tests; nil uses a ctx-aware wait
}

// CallWithRetry invokes the model, retrying quota-limited failures with
// linear backoff (BaseDelay × attempt) up to MaxRetries. Non-quota failures
// return an UpstreamError immediately; an empty response returns
// ErrEmptyResponse without retry. Success returns the text verbatim.
func (c *Caller) CallWithRetry(ctx context.Context, prompt string, invoke InvokeFunc) (string, error) {
	if len(c.Models) == 0 {
		return "", &UpstreamError{Err: errors.New("no models configured")}
	}

	for attempt := 0; ; attempt++ {
		model := c.Models[min(attempt, len(c.Models)-1)]
		log.Printf("llm call: attempt=%d model=%s", attempt, model)

		text, err := invoke(ctx, model, prompt)
		if err == nil {
			if strings.TrimSpace(text) == "" {
				return "", ErrEmptyResponse
			}
			return text, nil
		}

		if !IsQuotaLimited(err) {
			return "", &UpstreamError{Model: model, Err: err}
		}
		if attempt >= c.MaxRetries {
			return "", &QuotaExhaustedError{Attempts: attempt + 1, LastErr: err}
		}

		delay := c.BaseDelay * time.Duration(attempt+1)
		log.Printf("llm quota limited: attempt=%d wait=%s", attempt, delay)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

// IsQuotaLimited reports whether an error carries a rate/quota marker:
// HTTP 429 or a textual quota indication.
func IsQuotaLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

func (c *Caller) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		c.Sleep(d)
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
