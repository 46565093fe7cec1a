// Package groq is a thin HTTP client for the Groq OpenAI-compatible audio
// endpoints. It does no retrying and no key management; callers run it
// through a scheduler.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible API root.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the cheapest whisper model with the large quota window.
	DefaultModel = "whisper-large-v3-turbo"
)

// Config contains Groq client configuration.
type Config struct {
	// BaseURL overrides the API root, for tests.
	BaseURL string

	// Timeout bounds a single HTTP exchange. Chunks are up to 24MB, so the
	// default is generous.
	Timeout time.Duration

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the Groq audio endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Groq client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Minute
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{baseURL: config.BaseURL, httpClient: httpClient}
}

// Request describes one audio file to transcribe or translate.
type Request struct {
	// Filename labels the upload; the provider uses the extension to sniff
	// the container format.
	Filename string

	// Audio is the encoded audio payload.
	Audio io.Reader

	// Model defaults to DefaultModel.
	Model string

	// Language is a BCP-47 code, or "auto" / empty for detection.
	Language string

	// Temperature is passed through verbatim, 0 to 1.
	Temperature float64

	// Prompt optionally steers spelling and style.
	Prompt string

	// WordTimestamps additionally requests per-word granularity.
	WordTimestamps bool
}

// Transcription is the verbose_json response shape shared by both endpoints.
type Transcription struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Segment is one timestamped span of transcribed text.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Transcribe sends audio to the transcriptions endpoint.
func (c *Client) Transcribe(ctx context.Context, apiKey string, req Request) (*Transcription, error) {
	return c.post(ctx, apiKey, "/audio/transcriptions", req)
}

// Translate sends audio to the translations endpoint, which always produces
// English text.
func (c *Client) Translate(ctx context.Context, apiKey string, req Request) (*Transcription, error) {
	return c.post(ctx, apiKey, "/audio/translations", req)
}

func (c *Client) post(ctx context.Context, apiKey, path string, req Request) (*Transcription, error) {
	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providerError(resp.StatusCode, respBody)
	}

	var result Transcription
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &result, nil
}

// providerError lifts a non-200 body into a typed error so the classifier
// and quota parser can see the provider's message.
func providerError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return &scribepool.ProviderError{Status: status, Message: er.Error.Message}
	}
	return &scribepool.ProviderError{Status: status, Message: string(body)}
}

func encodeMultipart(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "audio.m4a"
	}
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, req.Audio); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	fields := [][2]string{
		{"model", model},
		{"response_format", "verbose_json"},
		{"temperature", fmt.Sprintf("%g", req.Temperature)},
		{"timestamp_granularities[]", "segment"},
	}
	if req.WordTimestamps {
		fields = append(fields, [2]string{"timestamp_granularities[]", "word"})
	}
	if req.Language != "" && req.Language != "auto" {
		fields = append(fields, [2]string{"language", req.Language})
	}
	if req.Prompt != "" {
		fields = append(fields, [2]string{"prompt", req.Prompt})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
