package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func synthPCM(n int) []byte {
	pcm := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i*7-500)))
	}
	return pcm
}

func TestPCMToWAVRoundTrip(t *testing.T) {
	pcm := synthPCM(1600)
	wavBytes := PCMToWAV(pcm, 16000)
	if len(wavBytes) == 0 {
		t.Fatal("PCMToWAV returned empty output")
	}

	out, rate, err := WAVToPCM(wavBytes)
	if err != nil {
		t.Fatalf("WAVToPCM: %v", err)
	}
	if rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	if !bytes.Equal(out, pcm) {
		t.Fatalf("round-tripped PCM differs from input")
	}
}

func TestChunkLosslessConcatenation(t *testing.T) {
	pcm := synthPCM(997) // deliberately not a multiple of the chunk size
	chunkSize := ChunkSizeForRate(16000)

	frames := Chunk(pcm, chunkSize)
	var rebuilt []byte
	for i, f := range frames {
		if i < len(frames)-1 && len(f) != chunkSize {
			t.Fatalf("frame %d has size %d, want %d", i, len(f), chunkSize)
		}
		if len(f) > chunkSize {
			t.Fatalf("frame %d exceeds chunk size", i)
		}
		rebuilt = append(rebuilt, f...)
	}
	if !bytes.Equal(rebuilt, pcm) {
		t.Fatal("concatenated chunks do not reproduce input")
	}
}

func TestChunkSizeIsMultipleOf320(t *testing.T) {
	for _, rate := range []int{8000, 16000} {
		size := ChunkSizeForRate(rate)
		if size%SampleChunkMultiple != 0 {
			t.Fatalf("chunk size %d for rate %d is not a multiple of %d", size, rate, SampleChunkMultiple)
		}
	}
}

func TestResampleIdempotentLength(t *testing.T) {
	pcm := synthPCM(16000)
	up := Resample(pcm, 8000, 16000)
	back := Resample(up, 16000, 8000)

	inLen := len(pcm) / 2
	outLen := len(back) / 2
	if diff := inLen - outLen; diff < -1 || diff > 1 {
		t.Fatalf("round-trip resample length drifted: in=%d out=%d", inLen, outLen)
	}
}

func TestResampleSameRateIsNoop(t *testing.T) {
	pcm := synthPCM(100)
	out := Resample(pcm, 16000, 16000)
	if !bytes.Equal(out, pcm) {
		t.Fatal("Resample with equal rates mutated input")
	}
}
