package stt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/scribe/internal/apiclient"
	"github.com/GriffinCanCode/scribe/internal/audio"
	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/resilience"
)

// wordCounter counts space-separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

type upload struct {
	path     string
	model    string
	prompt   string
	language string
	filename string
	size     int
}

func newAPI(t *testing.T, status int, body string, seen chan<- upload) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := upload{path: r.URL.Path}
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			u.model = r.FormValue("model")
			u.prompt = r.FormValue("prompt")
			u.language = r.FormValue("language")
			if f, hdr, err := r.FormFile("file"); err == nil {
				data, _ := io.ReadAll(f)
				u.filename = hdr.Filename
				u.size = len(data)
			}
		}
		if seen != nil {
			seen <- u
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return apiclient.New(apiclient.Options{
		BaseURL: srv.URL + "/v1",
		Retry:   resilience.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
}

func TestNewRejectsLongPrompt(t *testing.T) {
	prompt := strings.Repeat("word ", 226)
	_, err := New(nil, wordCounter{}, Options{Prompt: prompt})
	if !apperrors.IsCode(err, apperrors.CodePromptTooLong) {
		t.Errorf("New() error = %v, want PROMPT_TOO_LONG", err)
	}

	if _, err := New(nil, wordCounter{}, Options{Prompt: strings.Repeat("word ", 225)}); err != nil {
		t.Errorf("New() with 225 tokens error = %v, want nil", err)
	}
}

func TestTranscribe(t *testing.T) {
	seen := make(chan upload, 1)
	api := newAPI(t, http.StatusOK, `{"text":"hello world"}`, seen)
	c, err := New(api, wordCounter{}, Options{Prompt: "meeting notes", Language: "en"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	clip := audio.Clip{Data: []byte("RIFF0000WAVE"), Ext: "wav"}
	text, err := c.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello world" {
		t.Errorf("Transcribe() = %q, want %q", text, "hello world")
	}

	u := <-seen
	if u.path != "/v1/audio/transcriptions" {
		t.Errorf("path = %s, want /v1/audio/transcriptions", u.path)
	}
	if u.model != DefaultModel || u.prompt != "meeting notes" || u.language != "en" {
		t.Errorf("form = %+v", u)
	}
	if !strings.HasSuffix(u.filename, ".wav") || u.size != len(clip.Data) {
		t.Errorf("file = %q (%d bytes), want *.wav (%d bytes)", u.filename, u.size, len(clip.Data))
	}
}

func TestTranslate(t *testing.T) {
	seen := make(chan upload, 1)
	api := newAPI(t, http.StatusOK, `{"text":"translated"}`, seen)
	c, err := New(api, wordCounter{}, Options{Translate: true, Language: "ja"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	text, err := c.Transcribe(context.Background(), audio.Clip{Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "translated" {
		t.Errorf("Transcribe() = %q, want translated", text)
	}
	if u := <-seen; u.path != "/v1/audio/translations" {
		t.Errorf("path = %s, want /v1/audio/translations", u.path)
	}
}

func TestTranscribeRejectsOversizedClip(t *testing.T) {
	api := newAPI(t, http.StatusOK, `{"text":"unused"}`, nil)
	c, err := New(api, wordCounter{}, Options{MaxPayload: 4})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Transcribe(context.Background(), audio.Clip{Data: make([]byte, 5)})
	if !apperrors.IsCode(err, apperrors.CodeTranscriptionFailed) {
		t.Errorf("Transcribe() error = %v, want TRANSCRIPTION_FAILED", err)
	}
}

func TestTranscribeServiceFailure(t *testing.T) {
	api := newAPI(t, http.StatusServiceUnavailable, `{"error":{"message":"down"}}`, nil)
	c, err := New(api, wordCounter{}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Transcribe(context.Background(), audio.Clip{Data: []byte{0}})
	if !apperrors.IsCode(err, apperrors.CodeTranscriptionFailed) {
		t.Errorf("Transcribe() error = %v, want TRANSCRIPTION_FAILED", err)
	}
}
