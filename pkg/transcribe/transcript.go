package transcribe

import "github.com/mihaimyh/scribepool/pkg/transcribe/groq"

// CaptionSeg is one run of text inside a caption event.
type CaptionSeg struct {
	UTF8 string `json:"utf8"`
}

// CaptionEvent is one timed caption in the YouTube timedtext shape.
type CaptionEvent struct {
	StartMs    int          `json:"tStartMs"`
	DurationMs int          `json:"dDurationMs"`
	Segs       []CaptionSeg `json:"segs"`
}

// CaptionTrack is a full caption track, ready to serialize for players that
// consume the timedtext format.
type CaptionTrack struct {
	Events []CaptionEvent `json:"events"`
}

// fallbackDurationMs is used when the provider returned plain text with no
// segment timing.
const fallbackDurationMs = 5000

// ToCaptionTrack converts one provider response into a caption track,
// shifting every timestamp by offset seconds. Responses without segments
// degrade to a single event holding the full text.
func ToCaptionTrack(result *groq.Transcription, offset float64) CaptionTrack {
	var events []CaptionEvent

	if len(result.Segments) > 0 {
		events = make([]CaptionEvent, 0, len(result.Segments))
		for _, seg := range result.Segments {
			events = append(events, CaptionEvent{
				StartMs:    int((seg.Start + offset) * 1000),
				DurationMs: int((seg.End - seg.Start) * 1000),
				Segs:       []CaptionSeg{{UTF8: seg.Text}},
			})
		}
	} else if result.Text != "" {
		events = []CaptionEvent{{
			StartMs:    int(offset * 1000),
			DurationMs: fallbackDurationMs,
			Segs:       []CaptionSeg{{UTF8: result.Text}},
		}}
	}

	return CaptionTrack{Events: events}
}

// MergeChunks stitches per-chunk results into one track. chunks and results
// are parallel slices; each result's timestamps are offset by its chunk's
// start.
func MergeChunks(chunks []Chunk, results []*groq.Transcription) CaptionTrack {
	var merged CaptionTrack
	for i, result := range results {
		if result == nil {
			continue
		}
		track := ToCaptionTrack(result, chunks[i].Start)
		merged.Events = append(merged.Events, track.Events...)
	}
	return merged
}

// Text flattens a track back to plain text, one event per line.
func (t CaptionTrack) Text() string {
	var out []byte
	for i, ev := range t.Events {
		if i > 0 {
			out = append(out, '\n')
		}
		for _, seg := range ev.Segs {
			out = append(out, seg.UTF8...)
		}
	}
	return string(out)
}
