package transcribe

import "math"

// maxUploadBytes is the provider's per-request file size cap, minus nothing:
// the chunk planner stays strictly below it.
const maxUploadBytes = 24 << 20

// Chunk is one slice of the source audio, in seconds from the start.
type Chunk struct {
	Index    int
	Start    float64
	Duration float64
}

// NeedsSplit reports whether a file is too large to upload whole.
func NeedsSplit(sizeBytes int64) bool {
	return sizeBytes >= maxUploadBytes
}

// PlanChunks slices an oversized file into uploads that fit under the size
// cap. The chunk length is derived from the file's average bitrate, so a
// constant-bitrate encode lands comfortably under the cap; duration is in
// seconds. Returns a single full-length chunk when no split is needed.
func PlanChunks(sizeBytes int64, duration float64) []Chunk {
	if duration <= 0 {
		return nil
	}
	if !NeedsSplit(sizeBytes) {
		return []Chunk{{Index: 0, Start: 0, Duration: duration}}
	}

	bytesPerSecond := float64(sizeBytes) / duration
	chunkDuration := math.Floor(maxUploadBytes / bytesPerSecond)
	if chunkDuration < 1 {
		chunkDuration = 1
	}
	numChunks := int(math.Ceil(duration / chunkDuration))

	chunks := make([]Chunk, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := float64(i) * chunkDuration
		length := chunkDuration
		if start+length > duration {
			length = duration - start
		}
		chunks = append(chunks, Chunk{Index: i, Start: start, Duration: length})
	}
	return chunks
}
