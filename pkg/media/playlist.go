package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Playlist is the flattened result of a playlist probe.
type Playlist struct {
	Title    string  `json:"title"`
	Platform string  `json:"platform"`
	Videos   []Video `json:"videos"`
}

// Video is one playlist entry.
type Video struct {
	ID       string  `json:"id"`
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// playlistJSON mirrors the parts of yt-dlp's -J output we consume.
type playlistJSON struct {
	Title     string          `json:"title"`
	Extractor string          `json:"extractor"`
	Entries   []playlistEntry `json:"entries"`
}

type playlistEntry struct {
	ID         string  `json:"id"`
	URL        string  `json:"url"`
	WebpageURL string  `json:"webpage_url"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
}

func parseProbeDuration(out []byte) (float64, error) {
	s := strings.TrimSpace(string(out))
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse probe duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative probe duration %q", s)
	}
	return d, nil
}

func parsePlaylistJSON(out []byte) (*Playlist, error) {
	var raw playlistJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse playlist JSON: %w", err)
	}
	if raw.Entries == nil {
		return nil, fmt.Errorf("URL does not appear to be a playlist")
	}

	pl := &Playlist{
		Title:    raw.Title,
		Platform: raw.Extractor,
		Videos:   make([]Video, 0, len(raw.Entries)),
	}
	if pl.Title == "" {
		pl.Title = "Unknown Playlist"
	}

	for _, entry := range raw.Entries {
		url := entry.URL
		if url == "" {
			url = entry.WebpageURL
		}
		// Flat extraction sometimes yields only an ID.
		if url == "" && entry.ID != "" && strings.Contains(strings.ToLower(raw.Extractor), "youtube") {
			url = "https://www.youtube.com/watch?v=" + entry.ID
		}
		if url == "" {
			continue
		}

		title := entry.Title
		if title == "" {
			title = "Unknown Title"
		}
		pl.Videos = append(pl.Videos, Video{
			ID:       entry.ID,
			URL:      url,
			Title:    title,
			Duration: entry.Duration,
		})
	}
	return pl, nil
}
