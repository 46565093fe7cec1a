package api

import (
	"github.com/mihaimyh/scribepool/pkg/media"
	"github.com/mihaimyh/scribepool/pkg/scribepool"
	"github.com/mihaimyh/scribepool/pkg/transcribe"
)

// transcribeURLRequest is the JSON body of POST /v1/transcriptions/url.
type transcribeURLRequest struct {
	URL            string  `json:"url"`
	Model          string  `json:"model,omitempty"`
	Language       string  `json:"language,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	Prompt         string  `json:"prompt,omitempty"`
	WordTimestamps bool    `json:"word_timestamps,omitempty"`
	Translate      bool    `json:"translate,omitempty"`
}

func (r transcribeURLRequest) options() transcribe.Options {
	return transcribe.Options{
		Model:          r.Model,
		Language:       r.Language,
		Temperature:    r.Temperature,
		Prompt:         r.Prompt,
		WordTimestamps: r.WordTimestamps,
		Translate:      r.Translate,
	}
}

// credentialsRequest is the JSON body of PUT /v1/pool/credentials.
type credentialsRequest struct {
	Keys []string `json:"keys"`
}

// statusResponse is the JSON body of GET /v1/pool/status.
type statusResponse struct {
	Keys           []scribepool.KeyStatus `json:"keys"`
	MinWaitSeconds int                    `json:"min_wait_seconds"`
	Preferences    scribepool.Preferences `json:"preferences"`
}

// playlistResponse is the JSON body of GET /v1/playlist.
type playlistResponse struct {
	Playlist *media.Playlist `json:"playlist"`
	Count    int             `json:"count"`
}

// errorResponse is the JSON error envelope for every non-2xx response.
type errorResponse struct {
	Error             string `json:"error"`
	Suggestion        string `json:"suggestion,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}
