// Package media shells out to ffmpeg, ffprobe and yt-dlp for audio
// extraction, probing, cutting and downloading. All output lands in TempDir
// under uuid-based names; callers own cleanup via Remove.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mihaimyh/scribepool/pkg/scribepool"
)

// Tools wraps the external binaries. The zero value is not usable; construct
// with NewTools.
type Tools struct {
	ffmpegPath  string
	ffprobePath string
	ytdlpPath   string
	tempDir     string
	logger      scribepool.Logger
}

// Config locates the external binaries. Empty paths fall back to $PATH
// lookups; an empty TempDir falls back to the system temp directory.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	YtDlpPath   string
	TempDir     string
	Logger      scribepool.Logger
}

// NewTools creates a Tools instance with defaults applied.
func NewTools(cfg Config) *Tools {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = &scribepool.NoopLogger{}
	}
	return &Tools{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		ytdlpPath:   cfg.YtDlpPath,
		tempDir:     cfg.TempDir,
		logger:      cfg.Logger,
	}
}

// tempName returns a fresh path in the temp directory with the given extension.
func (t *Tools) tempName(ext string) string {
	return filepath.Join(t.tempDir, uuid.NewString()+ext)
}

func (t *Tools) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.logger.Debug("running external tool",
		scribepool.Field{Key: "tool", Value: name},
		scribepool.Field{Key: "args", Value: args},
	)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, firstLine(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// Duration probes a media file and returns its duration in seconds.
func (t *Tools) Duration(ctx context.Context, path string) (float64, error) {
	out, err := t.run(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	return parseProbeDuration(out)
}

// FileSize returns the size of a file in bytes.
func (t *Tools) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ExtractAudio converts any media input to mono 16kHz 128kbps AAC in an M4A
// container. Speech models gain nothing from stereo or higher rates, and the
// result stays near 1MB per minute.
func (t *Tools) ExtractAudio(ctx context.Context, src string) (string, error) {
	out := t.tempName(".m4a")
	_, err := t.run(ctx, t.ffmpegPath,
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "aac",
		"-b:a", "128k",
		"-ac", "1",
		"-ar", "16000",
		out,
	)
	if err != nil {
		os.Remove(out)
		return "", fmt.Errorf("extract audio: %w", err)
	}
	return out, nil
}

// Cut copies a time slice out of an audio file without re-encoding.
func (t *Tools) Cut(ctx context.Context, src string, start, duration float64) (string, error) {
	out := t.tempName(filepath.Ext(src))
	_, err := t.run(ctx, t.ffmpegPath,
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-acodec", "copy",
		out,
	)
	if err != nil {
		os.Remove(out)
		return "", fmt.Errorf("cut chunk: %w", err)
	}
	return out, nil
}

// DownloadAudio fetches the lowest-quality audio stream of a video URL.
// Lowest quality downloads fastest and is sufficient for speech recognition;
// whatever native container arrives is returned as-is, unconverted.
func (t *Tools) DownloadAudio(ctx context.Context, url string) (string, error) {
	base := filepath.Join(t.tempDir, uuid.NewString())
	_, err := t.run(ctx, t.ytdlpPath,
		"-f", "worstaudio/worst",
		"--no-playlist",
		"-o", base+".%(ext)s",
		url,
	)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}

	// yt-dlp picks the extension; find what it produced.
	matches, err := filepath.Glob(base + ".*")
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("download audio: no output file for %s", url)
	}
	return matches[0], nil
}

// ExtractPlaylist lists the videos in a playlist without downloading anything.
func (t *Tools) ExtractPlaylist(ctx context.Context, url string) (*Playlist, error) {
	out, err := t.run(ctx, t.ytdlpPath,
		"-J",
		"--flat-playlist",
		url,
	)
	if err != nil {
		return nil, fmt.Errorf("extract playlist: %w", err)
	}
	return parsePlaylistJSON(out)
}

// Sweep removes leftover temp files older than maxAge. Only files whose base
// name is a uuid are touched, so a shared temp directory stays safe. Crashes
// mid-job orphan files; a startup sweep reclaims them.
func (t *Tools) Sweep(maxAge time.Duration) {
	entries, err := os.ReadDir(t.tempDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stem := name[:len(name)-len(filepath.Ext(name))]
		if _, err := uuid.Parse(stem); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(t.tempDir, name)
		if err := os.Remove(path); err == nil {
			t.logger.Debug("swept stale temp file",
				scribepool.Field{Key: "path", Value: path},
			)
		}
	}
}

// Remove deletes temp files, ignoring errors; missing files are fine.
func (t *Tools) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("failed to remove temp file",
				scribepool.Field{Key: "path", Value: p},
				scribepool.Field{Key: "error", Value: err.Error()},
			)
		}
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}
