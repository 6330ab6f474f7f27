package audio

// SampleChunkMultiple is the required alignment for outbound media chunk
// sizes: every chunk but the last MUST be a multiple of this many bytes.
const SampleChunkMultiple = 320

// ChunkSizeForRate returns the chunk size in bytes corresponding to 100ms of
// 16-bit mono PCM at sampleRate (1600 @ 8kHz, 3200 @ 16kHz).
func ChunkSizeForRate(sampleRate int) int {
	return sampleRate * 2 / 10
}

// Chunk splits pcm into fixed-size frames of chunkSize bytes. The final
// frame may be shorter. Concatenating the returned frames reproduces pcm
// exactly, and frame order matches input order.
func Chunk(pcm []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 {
		return [][]byte{pcm}
	}
	var frames [][]byte
	for start := 0; start < len(pcm); start += chunkSize {
		end := start + chunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		frames = append(frames, pcm[start:end])
	}
	return frames
}
