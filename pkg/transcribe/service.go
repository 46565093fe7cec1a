// Package transcribe turns audio files and video URLs into caption tracks.
// It plans uploads around the provider's file size cap, estimates each job's
// quota cost in audio seconds and runs every remote call through a
// credential scheduler.
package transcribe

import (
	"context"
	"fmt"
	"math"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/scribepool/pkg/media"
	"github.com/mihaimyh/scribepool/pkg/scribepool"
	"github.com/mihaimyh/scribepool/pkg/transcribe/groq"
)

// Options tunes one transcription job.
type Options struct {
	// Model defaults to the client's default whisper model.
	Model string

	// Language is a BCP-47 code, or "auto" / empty for detection.
	Language string

	// Temperature is passed through to the provider, 0 to 1.
	Temperature float64

	// Prompt optionally steers spelling and style.
	Prompt string

	// WordTimestamps additionally requests per-word granularity.
	WordTimestamps bool

	// Translate routes through the translations endpoint, producing
	// English regardless of the source language.
	Translate bool
}

// Result is a finished transcription.
type Result struct {
	Track    CaptionTrack `json:"track"`
	Text     string       `json:"text"`
	Language string       `json:"language"`
	Duration float64      `json:"duration"`
	Chunks   int          `json:"chunks"`
}

// Config wires a Service.
type Config struct {
	Scheduler *scribepool.Scheduler
	Client    *groq.Client
	Tools     *media.Tools
	Logger    scribepool.Logger

	// MaxParallel bounds concurrent chunk uploads (default 3).
	MaxParallel int
}

// Service orchestrates probing, chunking, uploading and merging.
type Service struct {
	scheduler   *scribepool.Scheduler
	client      *groq.Client
	tools       *media.Tools
	logger      scribepool.Logger
	maxParallel int
}

// NewService creates a transcription service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("groq client is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("media tools are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = &scribepool.NoopLogger{}
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 3
	}
	return &Service{
		scheduler:   cfg.Scheduler,
		client:      cfg.Client,
		tools:       cfg.Tools,
		logger:      cfg.Logger,
		maxParallel: cfg.MaxParallel,
	}, nil
}

// TranscribeFile transcribes a local audio file, splitting it into chunks
// when it exceeds the provider's upload cap. Chunks upload concurrently;
// each one is scheduled and costed independently so a five-key pool can
// absorb a long recording in parallel.
func (s *Service) TranscribeFile(ctx context.Context, path string, opts Options) (*Result, error) {
	duration, err := s.tools.Duration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}
	size, err := s.tools.FileSize(path)
	if err != nil {
		return nil, fmt.Errorf("stat audio: %w", err)
	}

	chunks := PlanChunks(size, duration)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("audio has no duration")
	}

	s.logger.Info("transcribing file",
		scribepool.Field{Key: "path", Value: path},
		scribepool.Field{Key: "duration_seconds", Value: duration},
		scribepool.Field{Key: "size_bytes", Value: size},
		scribepool.Field{Key: "chunks", Value: len(chunks)},
	)

	if len(chunks) == 1 {
		tr, err := s.transcribeOne(ctx, path, chunks[0], opts)
		if err != nil {
			return nil, err
		}
		return s.result([]Chunk{chunks[0]}, []*groq.Transcription{tr}, duration), nil
	}

	results := make([]*groq.Transcription, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			cut, err := s.tools.Cut(gctx, path, chunk.Start, chunk.Duration)
			if err != nil {
				return err
			}
			defer s.tools.Remove(cut)

			tr, err := s.transcribeOne(gctx, cut, chunk, opts)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			results[chunk.Index] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.result(chunks, results, duration), nil
}

// TranscribeURL downloads a video's audio, converts it to a compact speech
// encoding and transcribes it. Temp files are removed before returning.
func (s *Service) TranscribeURL(ctx context.Context, url string, opts Options) (*Result, error) {
	downloaded, err := s.tools.DownloadAudio(ctx, url)
	if err != nil {
		return nil, err
	}
	defer s.tools.Remove(downloaded)

	// Re-encode to mono 16kHz AAC: predictable bitrate makes the chunk
	// math reliable, and the upload shrinks to roughly 1MB per minute.
	converted, err := s.tools.ExtractAudio(ctx, downloaded)
	if err != nil {
		return nil, err
	}
	defer s.tools.Remove(converted)

	return s.TranscribeFile(ctx, converted, opts)
}

// TranscribeMedia takes any local media file, video included, extracts its
// audio track and transcribes it. Use TranscribeFile directly when the input
// is already compact speech-encoded audio.
func (s *Service) TranscribeMedia(ctx context.Context, path string, opts Options) (*Result, error) {
	converted, err := s.tools.ExtractAudio(ctx, path)
	if err != nil {
		return nil, err
	}
	defer s.tools.Remove(converted)

	return s.TranscribeFile(ctx, converted, opts)
}

// Playlist lists the videos of a playlist URL without downloading anything.
func (s *Service) Playlist(ctx context.Context, url string) (*media.Playlist, error) {
	return s.tools.ExtractPlaylist(ctx, url)
}

// Status exposes the scheduler's pool state.
func (s *Service) Status() []scribepool.KeyStatus {
	return s.scheduler.Status()
}

// transcribeOne schedules one chunk upload. The file is re-opened inside the
// scheduled call because the scheduler may run it more than once.
func (s *Service) transcribeOne(ctx context.Context, path string, chunk Chunk, opts Options) (*groq.Transcription, error) {
	name := "transcribe"
	if opts.Translate {
		name = "translate"
	}
	cost := int(math.Ceil(chunk.Duration))
	if cost < 1 {
		cost = 1
	}

	result, err := s.scheduler.Schedule(ctx, scribepool.Work{
		Name: name,
		Call: func(ctx context.Context, key string) (any, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open audio: %w", err)
			}
			defer f.Close()

			req := groq.Request{
				Filename:       "audio.m4a",
				Audio:          f,
				Model:          opts.Model,
				Language:       opts.Language,
				Temperature:    opts.Temperature,
				Prompt:         opts.Prompt,
				WordTimestamps: opts.WordTimestamps,
			}
			if opts.Translate {
				return s.client.Translate(ctx, key, req)
			}
			return s.client.Transcribe(ctx, key, req)
		},
	}, cost)
	if err != nil {
		return nil, err
	}
	return result.(*groq.Transcription), nil
}

func (s *Service) result(chunks []Chunk, results []*groq.Transcription, duration float64) *Result {
	track := MergeChunks(chunks, results)
	language := ""
	for _, r := range results {
		if r != nil && r.Language != "" {
			language = r.Language
			break
		}
	}
	return &Result{
		Track:    track,
		Text:     track.Text(),
		Language: language,
		Duration: duration,
		Chunks:   len(chunks),
	}
}
