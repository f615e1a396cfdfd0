// Package assemblyai — клиент транскрипционного бэкенда: загрузка аудио,
// запуск диаризованной транскрипции и блокирующее ожидание результата.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tetraminz/call_analyzer/internal/transcript"
)

const (
	defaultBaseURL      = "https://api.assemblyai.com"
	defaultPollInterval = 5 * time.Second

	statusCompleted = "completed"
	statusError     = "error"
)

// HTTPDoer allows tests to fake HTTP transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the AssemblyAI v2 API.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   HTTPDoer
	pollInterval time.Duration
	sleep        func(time.Duration) // overridable in tests
}

// NewClient creates a client with sane defaults.
func NewClient(apiKey, baseURL string, httpClient HTTPDoer) *Client {
	cleanBaseURL := strings.TrimSpace(baseURL)
	if cleanBaseURL == "" {
		cleanBaseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      strings.TrimRight(cleanBaseURL, "/"),
		httpClient:   httpClient,
		pollInterval: defaultPollInterval,
	}
}

// TranscriptionOptions configure a transcription job.
type TranscriptionOptions struct {
	ExpectedSpeakers int
	LanguageCode     string
	Punctuate        bool
}

// Result — завершенная транскрипция: реплики плюс сырой ответ API для
// сохранения рядом с отчетами.
type Result struct {
	Utterances []transcript.Utterance
	Raw        json.RawMessage
}

// UploadAudio uploads raw audio bytes and returns the opaque upload URL.
func (c *Client) UploadAudio(ctx context.Context, audio io.Reader) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("ASSEMBLYAI_API_KEY is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", audio)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("authorization", c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}

	var parsed struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.UploadURL == "" {
		return "", errors.New("upload response has no upload_url")
	}
	return parsed.UploadURL, nil
}

// StartTranscription submits a diarized transcription job and returns its id.
func (c *Client) StartTranscription(ctx context.Context, audioURL string, opts TranscriptionOptions) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"audio_url":         audioURL,
		"speaker_labels":    true,
		"speakers_expected": opts.ExpectedSpeakers,
		"language_code":     opts.LanguageCode,
		"punctuate":         opts.Punctuate,
		"format_text":       true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal transcription job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("start transcription: %w", err)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	if parsed.ID == "" {
		return "", errors.New("transcription response has no job id")
	}
	return parsed.ID, nil
}

// WaitTranscription polls the job until it completes or fails. The wait has
// no deadline of its own — cancellation is the caller's job via ctx.
func (c *Client) WaitTranscription(ctx context.Context, jobID string) (Result, error) {
	statusURL := fmt.Sprintf("%s/v2/transcript/%s", c.baseURL, jobID)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return Result{}, fmt.Errorf("build status request: %w", err)
		}
		req.Header.Set("authorization", c.apiKey)

		body, err := c.do(req)
		if err != nil {
			return Result{}, fmt.Errorf("poll transcription %s: %w", jobID, err)
		}

		var parsed struct {
			Status     string                 `json:"status"`
			Error      string                 `json:"error"`
			Utterances []transcript.Utterance `json:"utterances"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return Result{}, fmt.Errorf("decode status response: %w", err)
		}

		switch parsed.Status {
		case statusCompleted:
			return Result{Utterances: parsed.Utterances, Raw: json.RawMessage(body)}, nil
		case statusError:
			detail := parsed.Error
			if detail == "" {
				detail = "unknown error"
			}
			return Result{}, fmt.Errorf("transcription %s failed: %s", jobID, detail)
		}

		if err := c.wait(ctx); err != nil {
			return Result{}, err
		}
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("assemblyai status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.sleep != nil {
		c.sleep(c.pollInterval)
		return nil
	}
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
