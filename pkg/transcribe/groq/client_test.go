package groq

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

const verboseJSON = `{
	"text": " Hello world.",
	"language": "english",
	"duration": 3.2,
	"segments": [
		{"id": 0, "start": 0.0, "end": 1.5, "text": " Hello"},
		{"id": 1, "start": 1.5, "end": 3.2, "text": " world."}
	]
}`

func TestTranscribe(t *testing.T) {
	var gotPath, gotAuth string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("ParseMultipartForm failed: %v", err)
		}
		gotForm = r.MultipartForm.Value

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile failed: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "fake audio bytes" {
				t.Errorf("uploaded audio = %q", data)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, verboseJSON)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	result, err := client.Transcribe(context.Background(), "gsk_test", Request{
		Filename:       "clip.m4a",
		Audio:          strings.NewReader("fake audio bytes"),
		Language:       "auto",
		WordTimestamps: true,
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if gotPath != "/audio/transcriptions" {
		t.Errorf("path = %q, want /audio/transcriptions", gotPath)
	}
	if gotAuth != "Bearer gsk_test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if got := gotForm["model"]; len(got) != 1 || got[0] != DefaultModel {
		t.Errorf("model = %v, want %s", got, DefaultModel)
	}
	if got := gotForm["response_format"]; len(got) != 1 || got[0] != "verbose_json" {
		t.Errorf("response_format = %v", got)
	}
	if got := gotForm["timestamp_granularities[]"]; len(got) != 2 {
		t.Errorf("timestamp_granularities = %v, want segment and word", got)
	}
	if _, ok := gotForm["language"]; ok {
		t.Error("language=auto must be omitted so the provider detects it")
	}

	if result.Text != " Hello world." {
		t.Errorf("Text = %q", result.Text)
	}
	if len(result.Segments) != 2 || result.Segments[1].End != 3.2 {
		t.Errorf("Segments = %+v", result.Segments)
	}
}

func TestTranslateUsesTranslationsEndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, verboseJSON)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	if _, err := client.Translate(context.Background(), "gsk_test", Request{
		Audio: strings.NewReader("x"),
	}); err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if gotPath != "/audio/translations" {
		t.Errorf("path = %q, want /audio/translations", gotPath)
	}
}

func TestTranscribeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"Rate limit reached for model. Limit 7200, Used 7200, Requested 60. Please try again in 45s.","type":"seconds","code":"rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Transcribe(context.Background(), "gsk_test", Request{Audio: strings.NewReader("x")})
	if err == nil {
		t.Fatal("expected error")
	}

	var pe *scribepool.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %T, want *scribepool.ProviderError", err)
	}
	if pe.Status != 429 {
		t.Errorf("Status = %d, want 429", pe.Status)
	}
	if !strings.Contains(pe.Message, "Limit 7200") {
		t.Errorf("Message = %q, want the provider prose preserved", pe.Message)
	}
	if !scribepool.IsQuotaError(err) {
		t.Error("a 429 provider error must classify as a quota error")
	}
}

func TestTranscribeNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream unavailable")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Transcribe(context.Background(), "gsk_test", Request{Audio: strings.NewReader("x")})

	var pe *scribepool.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %T, want *scribepool.ProviderError", err)
	}
	if pe.Status != 502 || pe.Message != "upstream unavailable" {
		t.Errorf("error = %+v, want the raw body carried through", pe)
	}
}
