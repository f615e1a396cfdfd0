package assemblyai

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type fakeResponse struct {
	status int
	body   string
}

// fakeHTTPDoer отдает ответы по очереди: один на каждый запрос.
type fakeHTTPDoer struct {
	responses []fakeResponse
	requests  []*http.Request
}

func (f *fakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return &http.Response{
		StatusCode: next.status,
		Body:       io.NopCloser(strings.NewReader(next.body)),
	}, nil
}

func TestUploadAudio(t *testing.T) {
	doer := &fakeHTTPDoer{responses: []fakeResponse{
		{http.StatusOK, `{"upload_url": "https://cdn.example/audio/42"}`},
	}}
	client := NewClient("aai-key", "http://example.test", doer)

	url, err := client.UploadAudio(context.Background(), strings.NewReader("mp3-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.example/audio/42" {
		t.Fatalf("upload url: got %q", url)
	}

	req := doer.requests[0]
	if req.URL.Path != "/v2/upload" {
		t.Fatalf("path: got %s", req.URL.Path)
	}
	if req.Header.Get("authorization") != "aai-key" {
		t.Fatalf("authorization header missing")
	}
}

func TestUploadAudioRequiresKey(t *testing.T) {
	client := NewClient("", "", &fakeHTTPDoer{})
	if _, err := client.UploadAudio(context.Background(), strings.NewReader("x")); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestStartTranscription(t *testing.T) {
	doer := &fakeHTTPDoer{responses: []fakeResponse{
		{http.StatusOK, `{"id": "job-7"}`},
	}}
	client := NewClient("aai-key", "http://example.test", doer)

	jobID, err := client.StartTranscription(context.Background(), "https://cdn.example/audio/42", TranscriptionOptions{
		ExpectedSpeakers: 2,
		LanguageCode:     "ru",
		Punctuate:        true,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if jobID != "job-7" {
		t.Fatalf("job id: got %q", jobID)
	}

	req := doer.requests[0]
	if req.URL.Path != "/v2/transcript" {
		t.Fatalf("path: got %s", req.URL.Path)
	}
}

func TestWaitTranscriptionPollsUntilCompleted(t *testing.T) {
	doer := &fakeHTTPDoer{responses: []fakeResponse{
		{http.StatusOK, `{"status": "queued"}`},
		{http.StatusOK, `{"status": "processing"}`},
		{http.StatusOK, `{
			"status": "completed",
			"utterances": [
				{"speaker": "A", "text": "Добрый день", "start": 100, "end": 900},
				{"speaker": "B", "text": "Здравствуйте", "start": 1000, "end": 1800}
			]
		}`},
	}}
	client := NewClient("aai-key", "http://example.test", doer)

	var sleeps int
	client.sleep = func(time.Duration) { sleeps++ }

	result, err := client.WaitTranscription(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(result.Utterances) != 2 {
		t.Fatalf("utterances: got %d", len(result.Utterances))
	}
	if result.Utterances[0].SpeakerTag != "A" || result.Utterances[0].StartMS != 100 {
		t.Fatalf("first utterance: %+v", result.Utterances[0])
	}
	if len(result.Raw) == 0 {
		t.Fatal("raw api body must be kept")
	}
	if sleeps != 2 {
		t.Fatalf("sleeps between polls: got %d, want 2", sleeps)
	}
}

func TestWaitTranscriptionFailure(t *testing.T) {
	doer := &fakeHTTPDoer{responses: []fakeResponse{
		{http.StatusOK, `{"status": "error", "error": "audio too short"}`},
	}}
	client := NewClient("aai-key", "http://example.test", doer)

	_, err := client.WaitTranscription(context.Background(), "job-7")
	if err == nil || !strings.Contains(err.Error(), "audio too short") {
		t.Fatalf("expected failure with api detail, got %v", err)
	}
}

func TestDoRejectsBadStatus(t *testing.T) {
	doer := &fakeHTTPDoer{responses: []fakeResponse{
		{http.StatusUnauthorized, `{"error": "bad key"}`},
	}}
	client := NewClient("aai-key", "http://example.test", doer)

	_, err := client.UploadAudio(context.Background(), strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}
