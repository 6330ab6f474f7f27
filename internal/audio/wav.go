// Package audio implements PCM/WAV framing, resampling, and fixed-size
// chunking over raw 16-bit signed little-endian mono PCM byte buffers.
package audio

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth       = 16
	numChans       = 1
	pcmFormat      = 1 // linear PCM
	bytesPerSample = 2
)

// PCMToWAV wraps raw 16-bit LE mono PCM in a RIFF/WAVE container at sampleRate.
func PCMToWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	enc := wav.NewEncoder(&buf, sampleRate, bitDepth, numChans, pcmFormat)

	ints := make([]int, len(pcm)/bytesPerSample)
	for i := range ints {
		lo := pcm[i*2]
		hi := pcm[i*2+1]
		ints[i] = int(int16(uint16(lo) | uint16(hi)<<8))
	}

	intBuf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: numChans},
		Data:           ints,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(intBuf); err != nil {
		// Encoding an in-memory int buffer to an in-memory buffer cannot fail
		// under normal operation; return nil rather than panic.
		return nil
	}
	if err := enc.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}

// WAVToPCM decodes a WAV byte slice into raw 16-bit LE mono PCM and reports
// the source sample rate carried in the WAV header.
func WAVToPCM(data []byte) (pcm []byte, sampleRate int, err error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("audio: not a valid WAV file")
	}
	intBuf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, 0, fmt.Errorf("audio: decode WAV: %w", err)
	}

	pcm = make([]byte, len(intBuf.Data)*bytesPerSample)
	for i, s := range intBuf.Data {
		v := uint16(int16(s))
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return pcm, int(dec.SampleRate), nil
}
