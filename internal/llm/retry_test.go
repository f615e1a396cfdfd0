package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testCaller(sleeps *[]time.Duration) *Caller {
	return &Caller{
		Models:     []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-pro"},
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Sleep: func(d time.Duration) {
			*sleeps = append(*sleeps, d)
		},
	}
}

func TestCallWithRetryDowngradesModelOnQuota(t *testing.T) {
	var sleeps []time.Duration
	caller := testCaller(&sleeps)

	var models []string
	invoke := func(ctx context.Context, model, prompt string) (string, error) {
		models = append(models, model)
		if len(models) <= 2 {
			return "", errors.New("gemini status 429: resource exhausted")
		}
		return "ответ модели", nil
	}

	text, err := caller.CallWithRetry(context.Background(), "prompt", invoke)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if text != "ответ модели" {
		t.Fatalf("text: got %q", text)
	}

	want := []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-pro"}
	if len(models) != len(want) {
		t.Fatalf("models used: got %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Fatalf("attempt %d model: got %s, want %s", i, models[i], want[i])
		}
	}

	// Линейный backoff: base×1, base×2.
	if len(sleeps) != 2 {
		t.Fatalf("sleeps: got %v", sleeps)
	}
	if sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Fatalf("delays: got %v, want [1s 2s]", sleeps)
	}
}

func TestCallWithRetryQuotaExhausted(t *testing.T) {
	var sleeps []time.Duration
	caller := testCaller(&sleeps)

	calls := 0
	invoke := func(ctx context.Context, model, prompt string) (string, error) {
		calls++
		return "", errors.New("quota exceeded for project")
	}

	_, err := caller.CallWithRetry(context.Background(), "prompt", invoke)
	var exhausted *QuotaExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected QuotaExhaustedError, got %v", err)
	}
	if exhausted.Attempts != caller.MaxRetries+1 {
		t.Fatalf("attempts: got %d, want %d", exhausted.Attempts, caller.MaxRetries+1)
	}
	if calls != caller.MaxRetries+1 {
		t.Fatalf("invoke calls: got %d, want %d", calls, caller.MaxRetries+1)
	}
	// Последняя попытка не спит.
	if len(sleeps) != caller.MaxRetries {
		t.Fatalf("sleeps: got %d, want %d", len(sleeps), caller.MaxRetries)
	}
}

func TestCallWithRetryUpstreamErrorImmediate(t *testing.T) {
	var sleeps []time.Duration
	caller := testCaller(&sleeps)

	calls := 0
	invoke := func(ctx context.Context, model, prompt string) (string, error) {
		calls++
		return "", errors.New("gemini status 400: invalid api key")
	}

	_, err := caller.CallWithRetry(context.Background(), "prompt", invoke)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Model != "gemini-2.0-flash" {
		t.Fatalf("model: got %s", upstream.Model)
	}
	if calls != 1 {
		t.Fatalf("non-quota failure must not retry, got %d calls", calls)
	}
	if len(sleeps) != 0 {
		t.Fatalf("no sleep expected, got %v", sleeps)
	}
}

func TestCallWithRetryEmptyResponse(t *testing.T) {
	var sleeps []time.Duration
	caller := testCaller(&sleeps)

	calls := 0
	invoke := func(ctx context.Context, model, prompt string) (string, error) {
		calls++
		return "   \n", nil
	}

	_, err := caller.CallWithRetry(context.Background(), "prompt", invoke)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("empty response must not retry, got %d calls", calls)
	}
}

func TestCallWithRetryNoModels(t *testing.T) {
	caller := &Caller{}
	_, err := caller.CallWithRetry(context.Background(), "prompt", func(ctx context.Context, model, prompt string) (string, error) {
		t.Fatal("invoke must not run without models")
		return "", nil
	})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestIsQuotaLimited(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("gemini status 429: too many requests"), true},
		{errors.New("Quota exceeded"), true},
		{errors.New("gemini status 500: internal"), false},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsQuotaLimited(tc.err); got != tc.want {
			t.Fatalf("IsQuotaLimited(%v): got %v, want %v", tc.err, got, tc.want)
		}
	}
}
